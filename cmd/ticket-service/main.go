package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ms-camp-tickets/internal/auth"
	"ms-camp-tickets/internal/comments/comment_api"
	commentdb "ms-camp-tickets/internal/comments/db"
	"ms-camp-tickets/internal/config"
	"ms-camp-tickets/internal/database/migrations"
	"ms-camp-tickets/internal/kafka"
	"ms-camp-tickets/internal/logger"
	"ms-camp-tickets/internal/notifications/email"
	handlers "ms-camp-tickets/internal/payment/handler"
	payredis "ms-camp-tickets/internal/payment/redis"
	paystripe "ms-camp-tickets/internal/payment/stripe"
	paywebhook "ms-camp-tickets/internal/payment/webhook"
	ticketdb "ms-camp-tickets/internal/tickets/db"
	qr "ms-camp-tickets/internal/tickets/qr_generator"
	tickets "ms-camp-tickets/internal/tickets/service"
	"ms-camp-tickets/internal/tickets/ticket_api"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

// connectRedis returns nil when Redis is unreachable; webhooks are then
// processed without the redelivery guard.
func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unavailable at %s, event ledger disabled: %v", cfg.Addr, err))
		_ = client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger("ticket-service", "logs")
	defer log.Close()

	log.Info("APP", "Starting Ticket Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	bunDB := connectPostgres(cfg.Database, log)

	if cfg.Migrations.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Migrations.Dir,
			AutoMigrate:   true,
		}, log)
		if err := runner.MigrateUp(); err != nil {
			log.Fatal("MIGRATE", fmt.Sprintf("Migrations failed: %v", err))
		}
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", fmt.Sprintf("Failed to release migration connection: %v", err))
		}
	}
	defer bunDB.Close()

	var ledger handlers.EventLedger
	if redisClient := connectRedis(ctx, cfg.Redis, log); redisClient != nil {
		defer redisClient.Close()
		ledger = payredis.NewEventLedger(redisClient, cfg.Redis.EventTTL)
	}

	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.Emails}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}
	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Emails, log)
	defer producer.Close()

	var qrGen *qr.QRGenerator
	if cfg.QR.SecretKey != "" {
		qrGen = qr.NewQRGenerator(cfg.QR.SecretKey)
	} else {
		log.Warn("CONFIG", "QR_SECRET_KEY not set, emails carry no QR pass")
	}

	store := &ticketdb.DB{Bun: bunDB}
	gateway := paystripe.NewGateway(cfg.Stripe.APIKey, nil, log)
	dispatcher := email.NewDispatcher(email.NewRenderer(cfg.Email.TemplatesDir), producer, qrGen, cfg.Email.ConfirmationSubject, log)
	purchases := tickets.NewPurchaseService(store, gateway, dispatcher, log)

	rt := routes{
		webhook:  handlers.NewWebhookHandler(paywebhook.NewVerifier(cfg.Stripe.WebhookSecret), purchases, ledger, log),
		tickets:  ticket_api.NewHandler(store, qrGen, log),
		comments: comment_api.NewHandler(&commentdb.HistoryStore{Bun: bunDB}, log),
	}
	if cfg.Auth.OIDCIssuer != "" {
		verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		rt.verifier = verifier
	}

	var workers sync.WaitGroup
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	if cfg.Email.WorkerEnabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Emails, cfg.Kafka.GroupID, log)
		worker := email.NewWorker(consumer, email.NewSMTPSender(email.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.From,
			Timeout:  cfg.Email.SMTPTimeout,
		}), log)

		workers.Add(1)
		go func() {
			defer workers.Done()
			defer consumer.Close()
			if err := worker.Run(workerCtx); err != nil {
				log.Error("EMAIL", fmt.Sprintf("Email worker stopped: %v", err))
			}
		}()
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      newRouter(rt, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Ticket Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	}

	stopWorkers()
	if !waitWithTimeout(ctxShutdown, &workers) {
		log.Warn("EMAIL", "Email worker did not stop before the shutdown deadline")
	}
	log.Info("HTTP", "✅ Ticket Service shutdown complete")
}

// waitWithTimeout reports whether wg finished before ctx ended.
func waitWithTimeout(ctx context.Context, wg *sync.WaitGroup) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
