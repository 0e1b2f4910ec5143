package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/illegalcall/avocatel/internal/alert"
	"github.com/illegalcall/avocatel/internal/api"
	"github.com/illegalcall/avocatel/internal/config"
	"github.com/illegalcall/avocatel/internal/payments"
	"github.com/illegalcall/avocatel/internal/pkg/supabase"
	"github.com/illegalcall/avocatel/pkg/database"
	"github.com/illegalcall/avocatel/pkg/kafka"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("✅ Connected to databases")

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}

	// Failure channel for reconciliations
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	notifiers := alert.Multi{alert.NewKafkaNotifier(producer, cfg.Kafka.Topic)}
	if cfg.Alert.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewHTTPNotifier(cfg.Alert.WebhookURL))
	}

	identity, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, slog.Default())
	if err != nil {
		slog.Error("Failed to initialize Supabase client", "error", err)
		os.Exit(1)
	}
	if err := identity.Ping(); err != nil {
		slog.Warn("Supabase connection test failed", "error", err)
	}

	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)

	server, err := api.NewServer(cfg, db, gateway, identity, notifiers)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("🚀 Server listening", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("🛑 Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown error", "error", err)
	}
}

func setupLogger(cfg *config.Config) {
	var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
	if cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
