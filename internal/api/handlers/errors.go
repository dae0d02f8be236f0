package handlers

import (
	"auction-engine/internal/domain"
	"auction-engine/pkg/logger"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// respondError writes {"error": msg} with the status of the error's kind.
// Internal failures are logged and reported without detail.
func respondError(c echo.Context, log logger.Logger, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return c.JSON(de.HTTPStatus(), map[string]string{"error": de.Message})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return c.JSON(he.Code, map[string]string{"error": http.StatusText(he.Code)})
	}
	log.Error("Request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return domain.NewValidationError("Invalid request body")
	}
	return c.Validate(req)
}
