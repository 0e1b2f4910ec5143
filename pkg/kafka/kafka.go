package kafka

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

const (
	clientID   = "avocatel"
	maxRetries = 10
	retryDelay = 3 * time.Second
)

// waitForKafka blocks until a broker accepts a connection, since the
// brokers may still be starting when the services come up.
func waitForKafka(brokers []string) error {
	for i := 0; i < maxRetries; i++ {
		cfg := sarama.NewConfig()
		cfg.ClientID = clientID
		cfg.Net.DialTimeout = 1 * time.Second
		client, err := sarama.NewClient(brokers, cfg)
		if err == nil {
			client.Close()
			return nil
		}
		slog.Info("Waiting for Kafka to be ready...", "attempt", i+1, "brokers", brokers)
		time.Sleep(retryDelay)
	}
	return fmt.Errorf("kafka not available after %d attempts", maxRetries)
}

// ProducerConfig returns the producer settings for failure events.
// Events are keyed by checkout session so retries for one payment stay
// ordered on a single partition.
func ProducerConfig(retryMax int, retryBackoff time.Duration) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Retry.Max = retryMax
	cfg.Producer.Retry.Backoff = retryBackoff
	return cfg
}

// ConsumerConfig returns the consumer group settings for the retry worker.
// Offsets start at the oldest message so failures published while no
// worker was running are still replayed.
func ConsumerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

func NewProducer(broker string, retryMax int, retryBackoff time.Duration) (sarama.SyncProducer, error) {
	brokers := []string{broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}
	return sarama.NewSyncProducer(brokers, ProducerConfig(retryMax, retryBackoff))
}

func NewConsumer(broker, group string) (sarama.ConsumerGroup, error) {
	brokers := []string{broker}
	if err := waitForKafka(brokers); err != nil {
		return nil, err
	}
	return sarama.NewConsumerGroup(brokers, group, ConsumerConfig())
}
