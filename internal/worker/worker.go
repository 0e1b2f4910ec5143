package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/illegalcall/avocatel/internal/config"
	"github.com/illegalcall/avocatel/internal/ledger"
	"github.com/illegalcall/avocatel/internal/models"
	"github.com/illegalcall/avocatel/internal/payments"
)

var (
	errNotSettled     = errors.New("checkout session is not settled")
	errProfileMissing = errors.New("profile still missing")
	errInFlight       = errors.New("reconciliation in flight elsewhere")
)

var retriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "avocatel",
	Name:      "reconciliation_retries_exhausted_total",
	Help:      "Failed reconciliations the worker gave up on.",
})

// Worker consumes reconciliation failures and replays them against the
// payment processor's view of the checkout session.
type Worker struct {
	cfg        *config.Config
	consumer   sarama.ConsumerGroup
	gateway    payments.Gateway
	reconciler *ledger.Reconciler
	ready      chan struct{}
	readyOnce  sync.Once
	sleep      func(time.Duration)
}

// NewWorker builds a worker. The reconciler should not publish failures
// back to the topic this worker consumes.
func NewWorker(cfg *config.Config, consumer sarama.ConsumerGroup, gateway payments.Gateway, reconciler *ledger.Reconciler) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:        cfg,
		consumer:   consumer,
		gateway:    gateway,
		reconciler: reconciler,
		ready:      make(chan struct{}),
		sleep:      time.Sleep,
	}
}

// Start consumes until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			// Consume returns on rebalance and must be called again.
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context done, exiting consumer loop", "error", ctx.Err())
				return
			}
		}
	}()

	select {
	case <-w.ready:
		slog.Info("Worker setup complete; consumer ready")
	case <-ctx.Done():
		slog.Info("Context cancelled before consumer was ready")
		return nil
	}

	<-ctx.Done()
	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session setup complete")
	w.readyOnce.Do(func() { close(w.ready) })
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session cleanup complete")
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processFailure(session.Context(), message); err != nil {
			slog.Error("Failed to replay reconciliation", "offset", message.Offset, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

func (w *Worker) processFailure(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var failure models.ReconciliationFailure
	if err := json.Unmarshal(msg.Value, &failure); err != nil {
		slog.Error("JSON unmarshalling failed", "error", err, "raw", string(msg.Value))
		return fmt.Errorf("failed to parse failure event: %w", err)
	}
	if failure.SessionID == "" {
		slog.Warn("Failure event without checkout session", "id", failure.ID)
		return nil
	}

	log := slog.With("failure_id", failure.ID, "session_id", failure.SessionID, "reason", failure.Reason)

	attempts := max(w.cfg.Kafka.RetryMax, 1)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var res ledger.Result
		res, err = w.replay(ctx, failure)
		if err == nil {
			log.Info("Reconciliation replayed", "attempt", attempt, "outcome", res.Outcome, "balance", res.Balance)
			return nil
		}
		if errors.Is(err, errNotSettled) {
			log.Warn("Checkout session not settled, dropping failure event")
			return nil
		}
		log.Warn("Replay attempt failed", "attempt", attempt, "error", err)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		backoff := w.cfg.Kafka.RetryBackoff
		if errors.Is(err, errInFlight) {
			// A crashed holder's lock only clears after LockTTL.
			backoff = max(backoff, w.cfg.Redis.LockTTL)
		}
		w.sleep(backoff)
	}

	retriesExhausted.Inc()
	log.Error("Reconciliation retries exhausted", "attempts", attempts, "error", err)
	return err
}

func (w *Worker) replay(ctx context.Context, failure models.ReconciliationFailure) (ledger.Result, error) {
	checkout, err := w.gateway.GetCheckoutSession(ctx, failure.SessionID)
	if err != nil {
		return ledger.Result{}, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	if !checkout.Settled() {
		return ledger.Result{}, errNotSettled
	}

	res, err := w.reconciler.Reconcile(ctx, ledger.Confirmation{
		SessionID: checkout.ID,
		EventID:   failure.EventID,
		Source:    models.SourceWorker,
		Metadata:  checkout.Metadata,
	})
	if err != nil {
		return res, err
	}

	switch res.Outcome {
	case ledger.OutcomeProfileMissing:
		return res, errProfileMissing
	case ledger.OutcomeInFlight:
		return res, errInFlight
	}
	return res, nil
}
