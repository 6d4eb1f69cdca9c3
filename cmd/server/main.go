package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/api"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/config"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/handler"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/auth"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/kafka"
	redisclient "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/infrastructure/redis"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/observability"
	"github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository"
	core "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository/postgres"
	redisrepo "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/repository/redis"
	service "github.com/bonjourjoel/lesechos-jabenhaim-backend/internal/services"
	_ "github.com/lib/pq"
)

const serviceName = "auth-service"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// logs, metrics, traces
	obs, err := observability.Init(ctx, serviceName, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		obs.Shutdown(shutdownCtx)
	}()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := core.EnsureSchema(ctx, db); err != nil {
		return err
	}

	userRepo := core.NewPostgresUserRepository(db)

	var refreshRepo repository.RefreshTokenRepository
	switch cfg.RefreshStore {
	case config.StoreRedis:
		client, err := redisclient.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer client.Close()
		refreshRepo = redisrepo.NewRefreshTokenRepository(client, userRepo, cfg.JWT.RefreshTTL)
	default:
		refreshRepo = core.NewPostgresRefreshTokenRepository(db)
	}
	slog.Info("refresh token store selected", "store", cfg.RefreshStore)

	var events kafka.EventPublisher = kafka.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		events = kafka.NewAuthEventPublisher(producer, cfg.Kafka.AuthTopic)

		if cfg.Kafka.AuditGroup != "" {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.AuthTopic, cfg.Kafka.AuditGroup, kafka.LogEvent)
			go consumer.Consume(ctx)
			defer consumer.Close()
		}
	} else {
		slog.Info("kafka brokers not configured, auth events disabled")
	}

	passwords, err := auth.NewPasswordHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens := auth.NewJWTService(cfg.JWT)
	refreshStore := auth.NewRefreshTokenStore(refreshRepo, auth.NewTokenHasher(cfg.JWT.HashSecret))

	authSvc := service.NewAuthService(userRepo, passwords, tokens, refreshStore, events)
	userSvc := service.NewUserService(userRepo, passwords, events)
	h := handler.NewHandler(authSvc, userSvc, userRepo)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.SetupRouter(h, tokens),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
