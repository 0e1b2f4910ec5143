package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/avocatel/internal/config"
	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/payments"
	"github.com/illegalcall/avocatel/internal/worker"
	"github.com/illegalcall/avocatel/pkg/database"
	"github.com/illegalcall/avocatel/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	setupLogger(cfg)

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to databases")

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Failures during replay are retried here, not republished.
	reconciler := ledger.NewReconciler(
		ledger.NewPostgresStore(db.DB),
		ledger.NewStatusCache(db.Redis, cfg.Redis.LockTTL, cfg.Redis.StatusTTL),
		nil,
		slog.Default().With("component", "worker"),
	)
	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	w := worker.NewWorker(cfg, consumer, gateway, reconciler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
