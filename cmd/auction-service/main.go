package main

import (
	"auction-engine/internal/api"
	"auction-engine/internal/config"
	"auction-engine/internal/domain"
	"auction-engine/internal/infrastructure/leader"
	"auction-engine/internal/infrastructure/memory"
	"auction-engine/internal/infrastructure/mysql"
	"auction-engine/internal/infrastructure/redis"
	"auction-engine/internal/services"
	"auction-engine/pkg/logger"
	"auction-engine/pkg/utils"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	redisClient "github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	leaderKey     = "auction_scheduler_leader"
	stateCacheTTL = time.Hour
)

type stores struct {
	auctions  domain.AuctionRepository
	bids      domain.BidRepository
	scheduler domain.SchedulerRepository
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Log.Level)
	defer func() { _ = log.Sync() }()
	log.Info("Starting auction service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// Without Redis, fees come from the built-in schedule and every instance
	// runs the scheduler.
	var (
		rdb        *redisClient.Client
		stateCache domain.AuctionStateCache
		notifier   domain.Notifier
		election   domain.LeaderElection
		fees       *services.FeeSchedule
	)
	if cfg.Redis.Enabled {
		rdb = redisClient.NewClient(&redisClient.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Error("Failed to connect to Redis", "address", cfg.Redis.Address, "error", err)
			os.Exit(1)
		}
		defer func() { _ = rdb.Close() }()
		log.Info("Connected to Redis", "address", cfg.Redis.Address)

		stateCache = redis.NewRedisStateCache(rdb, stateCacheTTL)
		notifier = redis.NewEventPublisher(rdb, cfg.Notifications.Channel)
		if cfg.Leader.Enabled {
			election = leader.NewRedisLeaderElection(rdb, leaderKey, cfg.Leader.TTL)
		}
		fees, err = services.NewFeeSchedule(rdb, cfg.Fees.ScheduleKey, cfg.Fees.CacheSize)
		if err != nil {
			log.Error("Failed to build fee schedule", "error", err)
			os.Exit(1)
		}
		if err := fees.LoadSchedule(ctx); err != nil {
			log.Error("Failed to load fee schedule", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("Redis disabled, running standalone")
		notifier = services.NewLogNotifier(log)
		fees = services.NewStaticFeeSchedule(services.DefaultFeeEntries())
	}

	dispatcher := services.NewNotificationDispatcher(notifier, cfg.Notifications.QueueSize,
		cfg.Notifications.Workers, cfg.Notifications.Timeout, log)
	dispatcher.Start()

	extension := services.NewExtensionPolicy(cfg.Auction.MaxExtensions)
	resolver := services.NewWinnerResolver()
	coordinator := services.NewParallelCoordinator(st.auctions, extension, resolver, log)

	bidService := services.NewBidService(st.auctions, st.bids, stateCache, fees, coordinator, extension, dispatcher, log)
	auctionManager := services.NewAuctionManager(st.auctions, st.bids, stateCache, fees, coordinator, resolver,
		dispatcher, notifier, services.AuctionRules{
			DefaultMinimumBidIncrement: decimal.NewFromFloat(cfg.Auction.DefaultMinimumBidIncrement),
			DefaultBidTimeBuffer:       cfg.Auction.DefaultBidTimeBuffer,
			MinBidTimeBuffer:           cfg.Auction.MinBidTimeBuffer,
			MaxBidTimeBuffer:           cfg.Auction.MaxBidTimeBuffer,
		}, log)

	scheduler := services.NewAuctionScheduler(st.scheduler, st.bids, auctionManager, coordinator, dispatcher,
		election, cfg.Instance.ID, services.SchedulerSpecs{
			Activation:       cfg.Scheduler.ActivationSpec,
			Expiry:           cfg.Scheduler.ExpirySpec,
			EndingSoon:       cfg.Scheduler.EndingSoonSpec,
			Reconcile:        cfg.Scheduler.ReconcileSpec,
			EndingSoonWindow: cfg.Scheduler.EndingSoonWindow,
		}, log)
	if err := scheduler.Start(context.Background()); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	e := api.NewRouter(api.RouterDeps{
		AuctionManager: auctionManager,
		BidService:     bidService,
		Log:            log,
		ServiceName:    "auction-service",
		AccessLog:      true,
	})

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(); err != nil {
		log.Error("Failed to stop scheduler", "error", err)
	}
	dispatcher.Stop()

	log.Info("Auction service stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Storage.Driver == "memory" {
		log.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		return &stores{auctions: store, bids: store, scheduler: store, close: func() {}}, nil
	}

	db, err := utils.InitializeMysql(ctx, cfg.MySQL)
	if err != nil {
		return nil, err
	}
	if cfg.MySQL.AutoMigrate {
		if err := mysql.Migrate(db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("Database migrations applied")
	}
	log.Info("Connected to MySQL")

	return &stores{
		auctions:  mysql.NewMySQLAuctionRepository(db),
		bids:      mysql.NewMySQLBidRepository(db),
		scheduler: mysql.NewMySQLSchedulerRepository(db),
		close: func() {
			if err := db.Close(); err != nil {
				log.Error("Failed to close MySQL connection", "error", err)
			}
		},
	}, nil
}
