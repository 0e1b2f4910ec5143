package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/illegalcall/avocatel/internal/models"
)

// Outcome describes what a reconciliation did to the ledger.
type Outcome string

const (
	OutcomeApplied        Outcome = "applied"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeInFlight       Outcome = "in_flight"
	OutcomeProfileMissing Outcome = "profile_missing"
	OutcomeFailed         Outcome = "failed"
)

// Confirmation is a finalized payment handed to the reconciler by the
// webhook, the success page, the retry worker or an operator.
type Confirmation struct {
	SessionID string
	EventID   string
	Source    string
	Metadata  map[string]string
}

type Result struct {
	SessionID string  `json:"sessionId"`
	UserID    string  `json:"userId,omitempty"`
	Credits   int     `json:"credits"`
	Balance   int     `json:"balance,omitempty"`
	Outcome   Outcome `json:"outcome"`
}

// FailureNotifier receives reconciliation failures that need an operator
// or a retry.
type FailureNotifier interface {
	Notify(ctx context.Context, failure models.ReconciliationFailure) error
}

type Reconciler struct {
	store    Store
	cache    *StatusCache
	notifier FailureNotifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler wires the ledger. cache and notifier are optional.
func NewReconciler(store Store, cache *StatusCache, notifier FailureNotifier, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		cache:    cache,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// Reconcile applies a confirmed payment exactly once. The returned error is
// non-nil only for store failures; callers acknowledging the payment
// processor must still answer with success.
func (r *Reconciler) Reconcile(ctx context.Context, c Confirmation) (Result, error) {
	start := r.now()
	res, err := r.reconcile(ctx, c)
	reconciliations.WithLabelValues(c.Source, string(res.Outcome)).Inc()
	reconcileDuration.WithLabelValues(c.Source).Observe(r.now().Sub(start).Seconds())

	switch res.Outcome {
	case OutcomeProfileMissing:
		r.report(ctx, c, res, models.ReasonProfileMissing, ErrProfileNotFound)
	case OutcomeInFlight:
		// Webhooks are acknowledged either way; the worker replays this one.
		if c.Source == models.SourceWebhook {
			r.report(ctx, c, res, models.ReasonInFlight, nil)
		}
	case OutcomeFailed:
		r.report(ctx, c, res, models.ReasonStoreError, err)
	}
	return res, err
}

func (r *Reconciler) reconcile(ctx context.Context, c Confirmation) (Result, error) {
	meta := ParseMetadata(c.Metadata)
	res := Result{SessionID: c.SessionID, UserID: meta.UserID, Credits: meta.Credits}
	log := r.logger.With("session_id", c.SessionID, "user_id", meta.UserID, "credits", meta.Credits, "source", c.Source)

	if !meta.Valid() {
		log.Warn("Missing or invalid metadata. Skipping credit update.")
		res.Outcome = OutcomeSkipped
		return res, nil
	}
	if c.SessionID == "" {
		log.Warn("Confirmation has no checkout session id. Skipping credit update.")
		res.Outcome = OutcomeSkipped
		return res, nil
	}

	if r.cache != nil {
		token, err := r.cache.Acquire(ctx, c.SessionID)
		switch {
		case err != nil:
			log.Warn("Reconciliation lock unavailable, relying on store marker", "error", err)
		case token == "":
			log.Info("Reconciliation already in flight")
			res.Outcome = OutcomeInFlight
			return res, nil
		default:
			defer func() {
				if err := r.cache.Release(context.WithoutCancel(ctx), c.SessionID, token); err != nil {
					log.Warn("Failed to release reconciliation lock", "error", err)
				}
			}()
		}
	}

	balance, err := r.store.ApplyPurchase(ctx, models.Purchase{
		SessionID: c.SessionID,
		EventID:   c.EventID,
		UserID:    meta.UserID,
		Credits:   meta.Credits,
		Source:    c.Source,
	})
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		log.Info("Payment already applied", "balance", balance)
		res.Outcome = OutcomeDuplicate
		res.Balance = balance
		return res, nil
	case errors.Is(err, ErrProfileNotFound):
		log.Error("No profile found for user")
		res.Outcome = OutcomeProfileMissing
		return res, nil
	case err != nil:
		log.Error("Error updating credits", "error", err)
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("reconcile checkout session %s: %w", c.SessionID, err)
	}

	res.Outcome = OutcomeApplied
	res.Balance = balance
	log.Info("Credits updated", "balance", balance)

	if r.cache != nil {
		if err := r.cache.MarkApplied(ctx, res); err != nil {
			log.Warn("Failed to cache reconciliation status", "error", err)
		}
	}
	return res, nil
}

func (r *Reconciler) report(ctx context.Context, c Confirmation, res Result, reason string, cause error) {
	if r.notifier == nil {
		return
	}
	failure := models.ReconciliationFailure{
		ID:         uuid.NewString(),
		SessionID:  c.SessionID,
		EventID:    c.EventID,
		UserID:     res.UserID,
		Credits:    res.Credits,
		Source:     c.Source,
		Reason:     reason,
		OccurredAt: r.now().UTC(),
	}
	if cause != nil {
		failure.Error = cause.Error()
	}
	if err := r.notifier.Notify(ctx, failure); err != nil {
		notifyFailures.Inc()
		r.logger.Error("Failed to publish reconciliation failure",
			"session_id", c.SessionID, "reason", reason, "error", err)
	}
}

// Status reports whether a checkout session has been applied, checking the
// Redis status first and the payment markers second. It never mutates.
func (r *Reconciler) Status(ctx context.Context, sessionID string) (*models.ProcessedPayment, error) {
	if r.cache != nil {
		cached, err := r.cache.Status(ctx, sessionID)
		if err != nil {
			r.logger.Warn("Failed to read cached status", "session_id", sessionID, "error", err)
		} else if cached != nil {
			return &models.ProcessedPayment{
				SessionID: cached.SessionID,
				UserID:    cached.UserID,
				Credits:   cached.Credits,
			}, nil
		}
	}
	payment, err := r.store.GetProcessedPayment(ctx, sessionID)
	if errors.Is(err, ErrPaymentNotFound) {
		return nil, nil
	}
	return payment, err
}
