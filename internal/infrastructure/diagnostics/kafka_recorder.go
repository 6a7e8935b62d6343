package diagnostics

import (
	"context"
	"sync"
	"time"

	"portfolio_aggregator/internal/app/port"
	"portfolio_aggregator/internal/domain/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// attemptMessage is the published shape of a FetchAttempt.
type attemptMessage struct {
	Network   entity.NetworkID      `json:"network"`
	Operation entity.Operation      `json:"operation"`
	Source    string                `json:"source"`
	StartedAt time.Time             `json:"startedAt"`
	LatencyMs int64                 `json:"latencyMs"`
	Outcome   entity.AttemptOutcome `json:"outcome"`
	Error     string                `json:"error,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaRecorder publishes every fetch attempt as a JSON message keyed by network.
// The writer runs in async mode so RecordAttempt never waits on the broker.
type KafkaRecorder struct {
	writer messageWriter
	mu     sync.Mutex
	closed bool
	logger port.Logger
}

// NewKafkaRecorder creates a recorder writing to topic on brokers.
func NewKafkaRecorder(brokers []string, topic string, logger port.Logger) *KafkaRecorder {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Async:        true,
		BatchTimeout: 200 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Failed to publish fetch attempts", "count", len(messages), "error", err)
			}
		},
	}
	return newKafkaRecorder(w, logger)
}

func newKafkaRecorder(w messageWriter, logger port.Logger) *KafkaRecorder {
	return &KafkaRecorder{writer: w, logger: logger}
}

// RecordAttempt implements port.AttemptRecorder.
func (k *KafkaRecorder) RecordAttempt(a entity.FetchAttempt) {
	value, err := json.Marshal(attemptMessage{
		Network:   a.Network,
		Operation: a.Operation,
		Source:    a.Source,
		StartedAt: a.StartedAt.UTC(),
		LatencyMs: a.Latency.Milliseconds(),
		Outcome:   a.Outcome,
		Error:     a.Error,
	})
	if err != nil {
		k.logger.Warn("Failed to marshal fetch attempt", "error", err)
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return
	}
	err = k.writer.WriteMessages(context.Background(), kafka.Message{
		Key:   []byte(a.Network),
		Value: value,
	})
	if err != nil {
		k.logger.Warn("Failed to enqueue fetch attempt", "network", a.Network, "source", a.Source, "error", err)
	}
}

// Close flushes pending messages and closes the writer.
func (k *KafkaRecorder) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true
	return k.writer.Close()
}
