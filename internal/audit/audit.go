// Package audit publishes workflow milestones to a Kafka topic. Publishing
// is fail-open: a broker outage is logged and the event dropped, it never
// fails or delays the operation that produced it.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Event is the wire format of one audit record.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Publisher writes audit events to a single topic, keyed by process so one
// process's trail stays ordered within a partition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

// NewPublisher connects a producer to the given brokers.
func NewPublisher(brokers []string, topic string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *Publisher) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return err
	}
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return t.Err
		}
	}
	return nil
}

// Publish asynchronously appends one event to the trail. Errors are logged
// and the event dropped.
func (p *Publisher) Publish(ctx context.Context, eventType string, fields map[string]string) {
	payload, err := json.Marshal(Event{
		Type:      eventType,
		Timestamp: p.now().UTC(),
		Fields:    fields,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode audit event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return
	}

	key := eventType
	if processID, ok := fields["process_id"]; ok && processID != "" {
		key = processID
	}
	record := &kgo.Record{Key: []byte(key), Value: payload}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.WarnContext(ctx, "audit publish failed",
				slog.String("event_type", eventType),
				slog.String("error", err.Error()))
		}
	})
}

// Close flushes buffered events and releases the producer.
func (p *Publisher) Close(ctx context.Context) error {
	err := p.client.Flush(ctx)
	p.client.Close()
	return err
}
