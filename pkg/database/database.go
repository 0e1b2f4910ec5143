package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/illegalcall/avocatel/internal/config"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL string, redisCfg config.RedisConfig) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// Close releases both connections.
func (c *Clients) Close() error {
	redisErr := c.Redis.Close()
	if err := c.DB.Close(); err != nil {
		return err
	}
	return redisErr
}

// Schema creates the profile and payment-marker tables. The primary keys
// carry the uniqueness guarantees the ledger relies on.
const Schema = `CREATE TABLE IF NOT EXISTS profiles (
		id TEXT PRIMARY KEY,
		credits INTEGER NOT NULL DEFAULT 3 CHECK (credits >= 0),
		language TEXT NOT NULL DEFAULT 'ro',
		is_lawyer BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS processed_payments (
		session_id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL REFERENCES profiles(id),
		credits INTEGER NOT NULL,
		source TEXT NOT NULL,
		processed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS processed_payments_user_id_idx ON processed_payments (user_id);`

func (c *Clients) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create ledger tables: %w", err)
	}

	slog.Info("✅ Ledger tables are ready!")
	return nil
}
