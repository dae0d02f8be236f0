package domain

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by stores when a row does not exist.
var ErrNotFound = errors.New("not found")

type ErrorKind string

const (
	KindNotFound              ErrorKind = "not_found"
	KindNotAcceptingBids      ErrorKind = "not_accepting_bids"
	KindNotEligible           ErrorKind = "not_eligible"
	KindForbidden             ErrorKind = "forbidden"
	KindBelowMinimumIncrement ErrorKind = "below_minimum_increment"
	KindConflict              ErrorKind = "conflict"
	KindValidation            ErrorKind = "validation"
)

// Error is a caller-facing failure. Anything that is not an *Error is an
// internal failure.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindNotEligible, KindForbidden:
		return http.StatusForbidden
	case KindNotAcceptingBids, KindBelowMinimumIncrement, KindConflict, KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of err, or "" for internal errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NewNotFoundError(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func NewNotAcceptingBidsError() *Error {
	return &Error{Kind: KindNotAcceptingBids, Message: "Auction is not accepting bids"}
}

func NewNotEligibleError() *Error {
	return &Error{Kind: KindNotEligible, Message: "You are not eligible to bid on this auction"}
}

func NewForbiddenError(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NewBelowMinimumError(min decimal.Decimal) *Error {
	return &Error{Kind: KindBelowMinimumIncrement, Message: fmt.Sprintf("Bid must be at least %s", min.String())}
}

// NewTransitionError reports an illegal lifecycle move, e.g. "Cannot end draft auction".
func NewTransitionError(verb string, from AuctionStatus) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf("Cannot %s %s auction", verb, from)}
}

func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func NewValidationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}
