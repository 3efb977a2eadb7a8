package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/ecofinds/marketplace/internal/audit"
	"github.com/ecofinds/marketplace/internal/cache"
	"github.com/ecofinds/marketplace/internal/config"
	"github.com/ecofinds/marketplace/internal/consumer"
	"github.com/ecofinds/marketplace/internal/health"
	h "github.com/ecofinds/marketplace/internal/http"
	"github.com/ecofinds/marketplace/internal/imagekit"
	"github.com/ecofinds/marketplace/internal/logger"
	"github.com/ecofinds/marketplace/internal/notify"
	"github.com/ecofinds/marketplace/internal/publisher"
	"github.com/ecofinds/marketplace/internal/repository"
	"github.com/ecofinds/marketplace/internal/service"
)

const (
	auctionSweepInterval = time.Minute
	healthRefresh        = 10 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health endpoint and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger.New(os.Stdout, cfg.LogLevel))
		},
	}
}

// infra holds the connections every command opens.
type infra struct {
	db    *mongo.Database
	redis *redis.Client
	audit *audit.Store
}

func connect(ctx context.Context, cfg *config.Config) (*infra, error) {
	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}

	store, err := audit.NewStore(cfg.AuditDriver, cfg.AuditDSN)
	if err != nil {
		_ = db.Client().Disconnect(ctx)
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}

	return &infra{db: db, audit: store}, nil
}

func (i *infra) connectRedis(ctx context.Context, cfg *config.Config) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	i.redis = rdb
	return nil
}

func (i *infra) Close(ctx context.Context) {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	_ = i.audit.Close()
	_ = i.db.Client().Disconnect(ctx)
}

func buildNotifiers(cfg *config.Config, log *slog.Logger) (notify.Mailer, notify.Texter) {
	fallback := notify.NewLogSender(log)
	var mailer notify.Mailer = fallback
	var texter notify.Texter = fallback

	if cfg.SMTPConfigured() {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Warn("smtp disabled, logging emails instead", "error", err)
		} else {
			mailer = notify.NewBreakerMailer(m, notify.BreakerSettings("smtp", log))
		}
	} else {
		log.Info("smtp not configured, logging emails instead")
	}

	if cfg.TwilioConfigured() {
		t := notify.NewTwilioTexter(notify.TwilioConfig{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		})
		texter = notify.NewBreakerTexter(t, notify.BreakerSettings("twilio", log))
	} else {
		log.Info("twilio not configured, logging sms instead")
	}
	return mailer, texter
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("ecofinds starting")

	deps, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer deps.Close(context.Background())

	if err := deps.connectRedis(ctx, cfg); err != nil {
		return err
	}
	if err := repository.CreateIndexes(ctx, deps.db); err != nil {
		return err
	}
	if err := deps.audit.RunMigrations(cfg.MigrationsPath); err != nil {
		return err
	}
	log.Info("storage ready", "mongo_db", cfg.MongoDBName, "audit_driver", cfg.AuditDriver)

	// Repositories
	users := repository.NewUserRepository(deps.db)
	products := repository.NewProductRepository(deps.db)
	carts := repository.NewCartRepository(deps.db)
	orders := repository.NewOrderRepository(deps.db)
	messages := repository.NewMessageRepository(deps.db)
	ratings := repository.NewRatingRepository(deps.db)
	disputes := repository.NewDisputeRepository(deps.db)
	complaints := repository.NewComplaintRepository(deps.db)
	notifications := repository.NewNotificationRepository(deps.db)
	outbox := repository.NewOutboxRepository(deps.db)

	productCache := cache.NewRedisCache(deps.redis)
	guard := cache.NewRedisGuard(deps.redis)
	mailer, texter := buildNotifiers(cfg, log)
	emit := service.NewEmitter(outbox, log)
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpiresIn)

	// Services
	authSvc := service.NewAuthService(users, guard, guard, mailer, texter, deps.audit, tokens,
		service.AuthConfig{FrontendURL: cfg.FrontendURL}, log)
	productSvc := service.NewProductService(products, users, productCache, deps.audit, emit, log)
	cartSvc := service.NewCartService(carts, products, log)
	orderSvc := service.NewOrderService(orders, carts, products, productCache, guard, deps.audit, emit, log)
	userSvc := service.NewUserService(users, products, ratings, emit, log)
	messageSvc := service.NewMessageService(messages, products, users, emit, log)
	disputeSvc := service.NewDisputeService(disputes, orders, products, deps.audit, emit, log)
	complaintSvc := service.NewComplaintService(complaints)
	notificationSvc := service.NewNotificationService(notifications)
	adminSvc := service.NewAdminService(productSvc, complaintSvc, disputeSvc, deps.audit, log)

	checks := map[string]health.Check{
		"mongo": func(ctx context.Context) error { return deps.db.Client().Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return deps.redis.Ping(ctx).Err() },
		"audit": deps.audit.Ping,
	}
	httpChecks := make(map[string]h.HealthCheck, len(checks))
	for name, check := range checks {
		httpChecks[name] = h.HealthCheck(check)
	}

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		CORSOrigins:    cfg.CORSOrigins,
	}, tokens, h.Handlers{
		Auth:          h.NewAuthHandler(authSvc, log),
		Products:      h.NewProductHandler(productSvc, log),
		Users:         h.NewUserHandler(userSvc, log),
		Messages:      h.NewMessageHandler(messageSvc, log),
		Carts:         h.NewCartHandler(cartSvc, log),
		Orders:        h.NewOrderHandler(orderSvc, log),
		Disputes:      h.NewDisputeHandler(disputeSvc, complaintSvc, log),
		Notifications: h.NewNotificationHandler(notificationSvc, log),
		Admin:         h.NewAdminHandler(adminSvc, log),
		Uploads: h.NewUploadHandler(
			imagekit.NewSigner(cfg.ImageKitPublicKey, cfg.ImageKitPrivateKey, cfg.ImageKitURLEndpoint), log),
	}, httpChecks, log)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	healthSrv := health.NewServer(checks, log)
	grpcServer := health.NewGRPCServer(healthSrv)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	var wg sync.WaitGroup

	poller := publisher.NewOutboxPoller(outbox, cfg.KafkaTopic, log, cfg.KafkaBrokers...)
	defer poller.Close()
	eventConsumer := consumer.NewConsumer(notifications, deps.audit, cfg.KafkaTopic, cfg.KafkaGroupID, log, cfg.KafkaBrokers...)
	defer eventConsumer.Close()

	workers := map[string]func(context.Context){
		"outbox-poller":   poller.Run,
		"event-consumer":  eventConsumer.Run,
		"auction-sweeper": func(ctx context.Context) { productSvc.RunAuctionSweeper(ctx, auctionSweepInterval) },
		"health-refresh":  func(ctx context.Context) { healthSrv.Run(ctx, healthRefresh) },
	}
	for name, run := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("worker started", "worker", name)
			run(workerCtx)
			log.Info("worker stopped", "worker", name)
		}()
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		log.Info("grpc health server listening", "port", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	healthSrv.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	stopWorkers()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("workers stopped cleanly")
	case <-shutdownCtx.Done():
		log.Warn("timed out waiting for workers")
	}

	log.Info("ecofinds stopped")
	return runErr
}
