package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// ProducerConfig configures the order event producer.
type ProducerConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
}

// Producer publishes order lifecycle events to a single topic keyed by order id,
// so every event of one order lands on one partition in order.
type Producer struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.EventBus = (*Producer)(nil)

func NewProducer(cfg ProducerConfig, logger *slog.Logger) (*Producer, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.ProducerBatchMaxBytes(1_000_000),
	}

	if cfg.Username != "" && cfg.Password != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &Producer{
		client: client,
		topic:  cfg.Topic,
		logger: logger,
		now:    time.Now,
	}, nil
}

func (p *Producer) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	return p.publish(ctx, EventOrderCreated, order.ID, order)
}

func (p *Producer) PublishOrderStatusChanged(ctx context.Context, order domain.Order, from domain.OrderStatus) error {
	return p.publish(ctx, EventOrderStatusChanged, order.ID, statusChangedPayload{
		From:          from,
		To:            order.Status,
		PaymentStatus: order.PaymentStatus,
		StockDeducted: order.StockDeducted,
	})
}

func (p *Producer) PublishOrderDeleted(ctx context.Context, orderID string) error {
	return p.publish(ctx, EventOrderDeleted, orderID, nil)
}

func (p *Producer) publish(ctx context.Context, eventType, orderID string, payload any) error {
	env, err := newEnvelope(eventType, orderID, payload, p.now())
	if err != nil {
		return err
	}
	record, err := p.record(env)
	if err != nil {
		return err
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "event published",
		"event_id", env.EventID,
		"event_type", eventType,
		"order_id", orderID,
		"partition", record.Partition,
		"offset", record.Offset,
	)
	return nil
}

func (p *Producer) record(env Envelope) (*kgo.Record, error) {
	value, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}

	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(env.OrderID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(env.EventID)},
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "version", Value: []byte(schemaVersion)},
		},
		Timestamp: env.OccurredAt,
	}, nil
}

// Ping checks that at least one seed broker answers.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes buffered records and closes the client.
func (p *Producer) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.WarnContext(ctx, "flush kafka producer", "error", err)
	}
	p.client.Close()
}
