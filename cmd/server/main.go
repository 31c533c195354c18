package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bikerental/internal/app"
	"bikerental/internal/config"
	"bikerental/internal/gateway"
	"bikerental/internal/handler"
	"bikerental/internal/middleware"
	"bikerental/internal/notify"
	internalRedis "bikerental/internal/redis"
	"bikerental/internal/repository"
	"bikerental/internal/repository/memory"
	"bikerental/internal/repository/postgres"
	"bikerental/internal/service"
)

func main() {
	cfg := config.Load()

	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic comes first so the database and Redis clients are instrumented.
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			logger.Warn("failed to initialize New Relic", zap.Error(err))
			nrApp = nil
		} else {
			logger.Info("New Relic enabled", zap.String("app", cfg.NewRelic.AppName))
		}
	}

	var store repository.Store
	switch cfg.Store.Driver {
	case "memory":
		store = memory.NewStore()
		logger.Warn("using in-memory store; data is lost on restart")
	case "postgres":
		db, err := app.NewDatabase(ctx, cfg.Database, nrApp, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		store = postgres.NewStore(db)
		logger.Info("connected to PostgreSQL", zap.String("host", cfg.Database.Host))
	default:
		logger.Fatal("unknown store driver", zap.String("driver", cfg.Store.Driver))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = app.NewRedisClient(ctx, cfg.Redis, nrApp)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	sink, sinkCloser, err := app.NewNotificationSink(cfg.RabbitMQ, logger)
	if err != nil {
		logger.Fatal("failed to set up notifications", zap.Error(err))
	}
	defer closeQuietly(logger, "notification sink", sinkCloser)

	server := wireServer(cfg, store, redisClient, sink, nrApp, logger)

	go func() {
		logger.Info("starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	logger.Info("server exited")
}

// wireServer wires all dependencies and returns the HTTP server. A nil
// redisClient runs the service single-node: no cross-process bike locks, no
// live location index, drafts and idempotency replay kept in process.
func wireServer(
	cfg *config.Config,
	store repository.Store,
	redisClient *redis.Client,
	sink notify.Sink,
	nrApp *newrelic.Application,
	logger *zap.Logger,
) *http.Server {
	policy := rentalPolicy(cfg)

	var (
		locker     internalRedis.LockStoreInterface
		liveIndex  internalRedis.LocationStoreInterface
		drafts     internalRedis.DraftStoreInterface = service.NewMemoryDraftStore()
		replayable middleware.ResponseCache          = middleware.NewMemoryResponseCache()
	)
	if redisClient != nil {
		locker = internalRedis.NewLockStore(redisClient)
		liveIndex = internalRedis.NewLocationStore(redisClient)
		drafts = internalRedis.NewDraftStore(redisClient)
		replayable = middleware.NewRedisResponseCache(redisClient)
	}

	var gw gateway.Client
	switch cfg.Gateway.Mode {
	case "http":
		gw = gateway.NewHTTPClient(gateway.HTTPConfig{
			BaseURL:   cfg.Gateway.BaseURL,
			SecretKey: cfg.Gateway.SecretKey,
			Timeout:   cfg.Gateway.Timeout,
		})
	default:
		logger.Warn("using sandbox payment gateway", zap.String("mode", cfg.Gateway.Mode))
		gw = gateway.NewSandbox()
	}

	// Services.
	notifier := service.NewNotificationService(sink, logger.Named("notification"))
	userService := service.NewUserService(store, logger.Named("user"), cfg.Auth.AllowAdminSignup)
	bikeService := service.NewBikeService(store, logger.Named("bike"))
	ledgerService := service.NewLedgerService(store)
	bookingService := service.NewBookingService(store, locker, liveIndex, notifier, policy, logger.Named("booking"))
	draftService := service.NewDraftService(store, drafts, bookingService, policy, logger.Named("draft"))
	paymentService := service.NewPaymentService(store, gw, notifier, policy, logger.Named("payment"))
	disputeService := service.NewDisputeService(store, notifier, logger.Named("dispute"))
	locationService := service.NewLocationService(store, liveIndex, notifier, logger.Named("location"))
	receiptService := service.NewReceiptService(store)

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger.Named("auth"))

	router := app.NewRouter(app.RouterDeps{
		UserHandler:      handler.NewUserHandler(userService, auth, logger.Named("handler")),
		BikeHandler:      handler.NewBikeHandler(bikeService, service.NewAvailabilityService(store)),
		BookingHandler:   handler.NewBookingHandler(bookingService, receiptService, locationService),
		DraftHandler:     handler.NewDraftHandler(draftService),
		PaymentHandler:   handler.NewPaymentHandler(paymentService),
		WalletHandler:    handler.NewWalletHandler(ledgerService, paymentService),
		DamageHandler:    handler.NewDamageHandler(disputeService, paymentService),
		AdminHandler:     handler.NewAdminHandler(locationService),
		Auth:             auth,
		IdempotencyCache: replayable,
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		NewRelicApp:      nrApp,
		Logger:           logger.Named("http"),
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

func rentalPolicy(cfg *config.Config) service.Policy {
	p := service.DefaultPolicy()
	p.ServiceFeeRate = cfg.Rental.ServiceFeeRate
	p.MaxQuantity = cfg.Rental.MaxQuantity
	p.MaxHours = cfg.Rental.MaxHours
	p.StartGrace = cfg.Rental.StartGrace
	p.DraftTTL = cfg.Rental.DraftTTL
	p.PointsUnit = cfg.Rental.PointsUnit
	p.EscrowUserID = cfg.Rental.EscrowUserID
	p.BikeLockTTL = cfg.Rental.BikeLockTTL
	p.BikeLockRetries = cfg.Rental.BikeLockRetries
	p.BikeLockRetryDelay = cfg.Rental.BikeLockRetryDelay
	p.Currency = cfg.Gateway.Currency
	p.ReturnURL = cfg.Gateway.ReturnURL
	return p
}

func closeQuietly(logger *zap.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("failed to close "+name, zap.Error(err))
	}
}
