package main

import (
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
)

// NotificationService consumes auction events from Redis and keeps the most
// recent ones for inspection. Delivery to end users (mail, push) hangs off
// handle.
type NotificationService struct {
	subscriber domain.EventSubscriber
	history    *services.DeliveryHistory
	log        logger.Logger
}

func NewNotificationService(subscriber domain.EventSubscriber, history *services.DeliveryHistory, log logger.Logger) *NotificationService {
	return &NotificationService{
		subscriber: subscriber,
		history:    history,
		log:        log,
	}
}

func (ns *NotificationService) Start(ctx context.Context) error {
	ns.log.Info("Starting notification consumer")
	return ns.subscriber.Subscribe(ctx, ns.handle)
}

func (ns *NotificationService) handle(n *domain.Notification) error {
	ns.log.Info("Notification received",
		"event", n.Event,
		"recipient_id", n.RecipientID,
		"auction_id", n.AuctionID,
		"amount", n.Amount)
	ns.history.Record(*n)
	return nil
}

func (ns *NotificationService) routes() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "notification-service"})
	}).Methods(http.MethodGet)
	router.HandleFunc("/deliveries", ns.listDeliveries).Methods(http.MethodGet)
	router.HandleFunc("/deliveries/{recipientID}", ns.listDeliveries).Methods(http.MethodGet)
	return router
}

func (ns *NotificationService) listDeliveries(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		limit = n
	}
	items := ns.history.Recent(mux.Vars(r)["recipientID"], limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()

	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() { _ = rdb.Close() }()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "address", cfg.Redis.Address, "error", err)
		os.Exit(1)
	}

	ns := NewNotificationService(
		redis.NewRedisEventSubscriber(rdb, cfg.Notifications.Channel, log),
		services.NewDeliveryHistory(cfg.Notifications.History),
		log,
	)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           ns.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := ns.Start(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		log.Info("Starting notification service", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down notification service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("Notification service failed", "error", err)
		os.Exit(1)
	}
	log.Info("Notification service stopped")
}
