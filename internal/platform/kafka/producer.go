// Package kafka mirrors committed domain events to a Kafka topic for
// downstream consumers (analytics, audit archiving). The live-connection
// fan-out never depends on it.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"citeline/internal/platform/config"
	"citeline/internal/submission/models"
)

// Producer publishes domain events to a single topic, keyed by submission id
// so per-submission ordering survives partitioning.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) { p.logger = logger }
}

// NewProducer connects to the configured brokers. Returns nil when no brokers
// are configured; the nil receiver is safe to publish to.
func NewProducer(cfg config.KafkaConfig, opts ...Option) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &Producer{
		client: client,
		topic:  cfg.Topic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Publish mirrors the event asynchronously. Delivery failures are logged, not
// surfaced: the mutation that produced the event has already committed.
func (p *Producer) Publish(ctx context.Context, event models.Event) {
	if p == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event for kafka", "error", err)
		return
	}

	record := &kgo.Record{
		Key:   []byte(event.Submission.ID.String()),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.WarnContext(ctx, "kafka event delivery failed",
				"error", err,
				"action", string(event.Action),
				"submission_id", event.Submission.ID.String(),
			)
		}
	})
}

// Close flushes outstanding records and releases the client. Safe on nil.
func (p *Producer) Close(ctx context.Context) {
	if p == nil {
		return
	}
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "flush kafka producer", "error", err)
	}
	p.client.Close()
}
