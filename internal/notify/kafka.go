package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"housing/internal/workflow/models"
	"housing/pkg/platform/circuit"
)

const (
	DefaultNoticesTopic         = "housing.notices"
	DefaultPaymentRequiredTopic = "housing.billing.payment_required"
)

// ErrBrokerUnavailable is returned while the breaker keeps calls off the
// broker.
var ErrBrokerUnavailable = errors.New("event broker unavailable")

// Producer is the subset of *kgo.Client used for publishing.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaPublisher publishes notices and payment requests as JSON records keyed
// by request id, so all events for one request land on one partition.
type KafkaPublisher struct {
	producer     Producer
	noticesTopic string
	billingTopic string
	breaker      *circuit.Breaker
	logger       *slog.Logger
}

type KafkaOption func(*KafkaPublisher)

func WithTopics(notices, billing string) KafkaOption {
	return func(p *KafkaPublisher) {
		if notices != "" {
			p.noticesTopic = notices
		}
		if billing != "" {
			p.billingTopic = billing
		}
	}
}

func WithBreaker(b *circuit.Breaker) KafkaOption {
	return func(p *KafkaPublisher) {
		p.breaker = b
	}
}

func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func NewKafkaPublisher(producer Producer, opts ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{
		producer:     producer,
		noticesTopic: DefaultNoticesTopic,
		billingTopic: DefaultPaymentRequiredTopic,
		breaker:      circuit.New("kafka"),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *KafkaPublisher) Notify(ctx context.Context, notice models.Notice) error {
	return p.publish(ctx, p.noticesTopic, notice.RequestID.String(), string(notice.Type), notice)
}

func (p *KafkaPublisher) PaymentRequired(ctx context.Context, req models.PaymentRequest) error {
	return p.publish(ctx, p.billingTopic, req.RequestID.String(), "payment_required", req)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key, eventType string, v any) error {
	if !p.breaker.Allow() {
		return ErrBrokerUnavailable
	}
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", eventType, err)
	}
	record := &kgo.Record{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: "event_type", Value: []byte(eventType)}},
	}
	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "event broker circuit opened", "breaker", p.breaker.Name(), "topic", topic, "error", err)
		}
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "event broker circuit closed", "breaker", p.breaker.Name(), "topic", topic)
	}
	return nil
}

// NewKafkaClient connects a franz-go client to the given seed brokers.
func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("housing"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopics creates the given topics if they do not exist yet.
func EnsureTopics(ctx context.Context, client *kgo.Client, topics ...string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, -1, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
