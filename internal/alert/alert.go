package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/illegalcall/avocatel/internal/models"
)

// Notifier publishes reconciliation failures.
type Notifier interface {
	Notify(ctx context.Context, failure models.ReconciliationFailure) error
}

// KafkaNotifier publishes failures to the retry topic, keyed by checkout
// session.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (n *KafkaNotifier) Notify(_ context.Context, failure models.ReconciliationFailure) error {
	payload, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal failure event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(failure.SessionID),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := n.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to queue failure event: %w", err)
	}
	slog.Info("Reconciliation failure queued",
		"session_id", failure.SessionID, "reason", failure.Reason, "partition", partition, "offset", offset)
	return nil
}

// HTTPNotifier posts failures as JSON to an operator webhook.
type HTTPNotifier struct {
	url    string
	client *http.Client
}

func NewHTTPNotifier(url string) *HTTPNotifier {
	return &HTTPNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *HTTPNotifier) Notify(ctx context.Context, failure models.ReconciliationFailure) error {
	jsonData, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// Multi fans a failure out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, failure models.ReconciliationFailure) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, failure); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MockNotifier records failures for tests.
type MockNotifier struct {
	mu       sync.Mutex
	Failures []models.ReconciliationFailure
	Err      error
}

func (m *MockNotifier) Notify(_ context.Context, failure models.ReconciliationFailure) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Failures = append(m.Failures, failure)
	return m.Err
}

func (m *MockNotifier) Calls() []models.ReconciliationFailure {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]models.ReconciliationFailure(nil), m.Failures...)
}
