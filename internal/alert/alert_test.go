package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/avocatel/internal/models"
)

var testFailure = models.ReconciliationFailure{
	ID:         "f-1",
	SessionID:  "cs_1",
	EventID:    "evt_1",
	UserID:     "u1",
	Credits:    10,
	Source:     models.SourceWebhook,
	Reason:     models.ReasonStoreError,
	Error:      "connection reset",
	OccurredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
}

func TestKafkaNotifier(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "cs_1" {
			return errors.New("failure event must be keyed by session id")
		}
		if msg.Topic != "ledger-failures" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})
	t.Cleanup(func() { producer.Close() })

	err := NewKafkaNotifier(producer, "ledger-failures").Notify(context.Background(), testFailure)
	assert.NoError(t, err)
}

func TestKafkaNotifierError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	t.Cleanup(func() { producer.Close() })

	err := NewKafkaNotifier(producer, "ledger-failures").Notify(context.Background(), testFailure)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
}

func TestHTTPNotifier(t *testing.T) {
	var received models.ReconciliationFailure
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewHTTPNotifier(srv.URL).Notify(context.Background(), testFailure)
	require.NoError(t, err)
	assert.Equal(t, testFailure, received)
}

func TestHTTPNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPNotifier(srv.URL).Notify(context.Background(), testFailure)
	assert.ErrorContains(t, err, "status 502")
}

func TestMulti(t *testing.T) {
	ok := &MockNotifier{}
	failing := &MockNotifier{Err: errors.New("down")}

	err := Multi{failing, ok}.Notify(context.Background(), testFailure)
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.Calls(), 1, "a failing notifier must not stop the others")
	assert.Len(t, failing.Calls(), 1)

	assert.NoError(t, Multi{}.Notify(context.Background(), testFailure))
}
