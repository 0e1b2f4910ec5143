package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/avocatel/internal/models"
)

var (
	ErrProfileNotFound     = errors.New("profile not found")
	ErrAlreadyProcessed    = errors.New("payment already processed")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrPaymentNotFound     = errors.New("payment not processed")
)

// Store is the persistence boundary for profiles and payment markers.
type Store interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	// GetOrCreateProfile returns the existing row or inserts defaults.
	// The bool reports whether this call created the row.
	GetOrCreateProfile(ctx context.Context, defaults models.Profile) (*models.Profile, bool, error)
	DebitCredit(ctx context.Context, userID string) (int, error)
	// ApplyPurchase records the payment marker and credits the profile in
	// one transaction, returning the new balance.
	ApplyPurchase(ctx context.Context, p models.Purchase) (int, error)
	GetProcessedPayment(ctx context.Context, sessionID string) (*models.ProcessedPayment, error)
	ListProcessedPayments(ctx context.Context, userID string) ([]models.ProcessedPayment, error)
}

const (
	selectProfileQuery = "SELECT id, credits, language, is_lawyer, created_at FROM profiles WHERE id = $1"
	insertProfileQuery = "INSERT INTO profiles (id, credits, language, is_lawyer) VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING"
	debitCreditQuery   = "UPDATE profiles SET credits = credits - 1 WHERE id = $1 AND credits > 0 RETURNING credits"
	lockCreditsQuery   = "SELECT credits FROM profiles WHERE id = $1 FOR UPDATE"
	insertMarkerQuery  = "INSERT INTO processed_payments (session_id, event_id, user_id, credits, source) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (session_id) DO NOTHING"
	updateCreditsQuery = "UPDATE profiles SET credits = $1 WHERE id = $2"
	selectMarkerQuery  = "SELECT session_id, event_id, user_id, credits, source, processed_at FROM processed_payments WHERE session_id = $1"
	selectMarkersQuery = "SELECT session_id, event_id, user_id, credits, source, processed_at FROM processed_payments WHERE user_id = $1 ORDER BY processed_at DESC"
	profileExistsQuery = "SELECT COUNT(*) FROM profiles WHERE id = $1"
)

// PostgresStore implements Store on top of sqlx.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.db.GetContext(ctx, &profile, selectProfileQuery, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}
	return &profile, nil
}

func (s *PostgresStore) GetOrCreateProfile(ctx context.Context, defaults models.Profile) (*models.Profile, bool, error) {
	profile, err := s.GetProfile(ctx, defaults.ID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, false, err
	}

	// A concurrent first login may win the insert; the conflict is
	// swallowed and the winner's row is reloaded below.
	res, err := s.db.ExecContext(ctx, insertProfileQuery,
		defaults.ID, defaults.Credits, defaults.Language, defaults.IsLawyer)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create profile: %w", err)
	}
	created := false
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		created = true
	}

	profile, err = s.GetProfile(ctx, defaults.ID)
	if err != nil {
		return nil, false, err
	}
	return profile, created, nil
}

func (s *PostgresStore) DebitCredit(ctx context.Context, userID string) (int, error) {
	var credits int
	err := s.db.GetContext(ctx, &credits, debitCreditQuery, userID)
	if err == nil {
		return credits, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to debit credit: %w", err)
	}

	var count int
	if err := s.db.GetContext(ctx, &count, profileExistsQuery, userID); err != nil {
		return 0, fmt.Errorf("failed to check profile: %w", err)
	}
	if count == 0 {
		return 0, ErrProfileNotFound
	}
	return 0, ErrInsufficientCredits
}

func (s *PostgresStore) ApplyPurchase(ctx context.Context, p models.Purchase) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock serializes concurrent deliveries for the same user.
	var current int
	if err := tx.GetContext(ctx, &current, lockCreditsQuery, p.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to fetch profile: %w", err)
	}

	res, err := tx.ExecContext(ctx, insertMarkerQuery, p.SessionID, p.EventID, p.UserID, p.Credits, p.Source)
	if err != nil {
		return 0, fmt.Errorf("failed to record payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to record payment: %w", err)
	}
	if n == 0 {
		return current, ErrAlreadyProcessed
	}

	balance := current + p.Credits
	if _, err := tx.ExecContext(ctx, updateCreditsQuery, balance, p.UserID); err != nil {
		return 0, fmt.Errorf("failed to update credits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return balance, nil
}

func (s *PostgresStore) GetProcessedPayment(ctx context.Context, sessionID string) (*models.ProcessedPayment, error) {
	var payment models.ProcessedPayment
	if err := s.db.GetContext(ctx, &payment, selectMarkerQuery, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to fetch payment: %w", err)
	}
	return &payment, nil
}

func (s *PostgresStore) ListProcessedPayments(ctx context.Context, userID string) ([]models.ProcessedPayment, error) {
	payments := []models.ProcessedPayment{}
	if err := s.db.SelectContext(ctx, &payments, selectMarkersQuery, userID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
