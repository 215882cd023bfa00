package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/pretix-unofficial/pretix-capacity-reports/internal/auth"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/config"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/database/migrations"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/kafka"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/logger"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports/api"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/reports/progress"
	"github.com/pretix-unofficial/pretix-capacity-reports/internal/store"
)

func connectPostgres(cfg config.DatabaseConfig, logger *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) progress.Sink {
	if !cfg.Enabled {
		logger.Warn("REDIS", "Redis disabled, report progress will not be recorded")
		return progress.NopSink{}
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}

	logger.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return progress.NewRedisSink(client, cfg.ProgressTTL)
}

func setupKafka(cfg config.KafkaConfig, logger *logger.Logger) *kafka.Producer {
	if !cfg.Enabled {
		logger.Warn("KAFKA", "Kafka disabled, report lifecycle events will not be published")
		return nil
	}

	producer := kafka.NewProducer(cfg.Brokers)
	logger.Info("KAFKA", "Kafka producer initialized successfully")

	requiredTopics := []string{
		cfg.Topics.ReportCompleted,
		cfg.Topics.ReportFailed,
	}
	if err := kafka.EnsureTopicsExist(cfg.Brokers, requiredTopics); err != nil {
		logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		logger.Info("KAFKA", "Required topics ensured successfully")
	}
	return producer
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Capacity Reports Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, logger)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, cfg.Reports.MigrationsDir)
	if err := runner.MigrateUp(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Schema migration failed: %v", err))
	}
	if version, err := runner.Version(); err == nil {
		logger.Info("DATABASE", fmt.Sprintf("Schema at migration version %d", version))
	}

	progressSink := connectRedis(ctx, cfg.Redis, logger)
	producer := setupKafka(cfg.Kafka, logger)
	if producer != nil {
		defer producer.Close()
	}

	reportStore := store.New(bunDB)
	registry := reports.NewRegistry(
		&reports.UtilizationReport{
			Store:             reportStore,
			MetaName:          cfg.Reports.MetaName,
			IncludeParentless: cfg.Reports.IncludeParentless,
		},
		&reports.CreationReport{
			Store:    reportStore,
			MetaName: cfg.Reports.MetaName,
		},
	)
	for _, e := range registry.List() {
		logger.Info("REPORT", fmt.Sprintf("Registered report type %q (%s)", e.Identifier(), e.VerboseName()))
	}

	handler := api.NewHandler(registry, progressSink, producer, cfg.Kafka.Topics, logger)

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if cfg.Auth.Enabled {
		authMiddleware, err := auth.Middleware(cfg.Auth.OIDCIssuer)
		if err != nil {
			logger.Fatal("AUTH", fmt.Sprintf("Failed to initialize OIDC middleware: %v", err))
		}
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			handler.RegisterRoutes(r)
		})
		logger.Info("AUTH", "OIDC middleware applied to report API routes")
	} else {
		handler.RegisterRoutes(r)
		logger.Warn("AUTH", "Authentication disabled, report API routes are open")
	}
	logger.Info("ROUTER", "Report routes registered under /api/reports")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Capacity Reports Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Capacity Reports Service shutdown complete")
	}
}
