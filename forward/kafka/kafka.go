// Package kafka forwards delegation notifications to Kafka topics using
// github.com/segmentio/kafka-go.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/AshkanYarmoradi/go-herald"
	"github.com/AshkanYarmoradi/go-herald/adapters"
)

var _ herald.Publisher = (*Publisher)(nil)

// messageWriter is the part of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher publishes notifications to Kafka topics.
// Destination format: "kafka:topic-name"
//
// Messages are keyed by the notification's correlation ID so the
// delegations of one request land on the same partition in order.
type Publisher struct {
	brokers      []string
	balancer     kafkago.Balancer
	batchTimeout time.Duration
	transport    kafkago.RoundTripper
	newWriter    func(topic string) messageWriter
	mu           sync.RWMutex
	writers      map[string]messageWriter
}

// Option configures a Kafka Publisher.
type Option func(*Publisher)

// WithBrokers sets the Kafka broker addresses.
func WithBrokers(brokers ...string) Option {
	return func(p *Publisher) {
		p.brokers = brokers
	}
}

// WithBalancer sets the message balancer (partitioner).
func WithBalancer(balancer kafkago.Balancer) Option {
	return func(p *Publisher) {
		p.balancer = balancer
	}
}

// WithBatchTimeout sets the batch timeout for the writer.
func WithBatchTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		p.batchTimeout = d
	}
}

// WithTransport sets the transport used by the writers.
func WithTransport(transport kafkago.RoundTripper) Option {
	return func(p *Publisher) {
		p.transport = transport
	}
}

// New creates a new Kafka Publisher.
func New(opts ...Option) *Publisher {
	p := &Publisher{
		brokers:      []string{"localhost:9092"},
		balancer:     &kafkago.Hash{},
		batchTimeout: 10 * time.Millisecond,
		writers:      make(map[string]messageWriter),
	}
	p.newWriter = p.kafkaWriter

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Destination returns the destination prefix this publisher handles.
func (p *Publisher) Destination() string {
	return "kafka"
}

// Publish writes notifications to the Kafka topic named in each destination.
// All topics are attempted even if some fail; errors are joined.
func (p *Publisher) Publish(ctx context.Context, notifications []*herald.Notification) error {
	grouped := make(map[string][]kafkago.Message)
	var (
		topics []string
		errs   []error
	)

	for _, n := range notifications {
		topic := adapters.DestinationTarget(n.Destination, "kafka")
		if topic == "" {
			errs = append(errs, fmt.Errorf("kafka: invalid destination %q: missing topic", n.Destination))
			continue
		}

		if _, seen := grouped[topic]; !seen {
			topics = append(topics, topic)
		}
		grouped[topic] = append(grouped[topic], toMessage(n))
	}

	for _, topic := range topics {
		writer := p.getWriter(topic)
		if err := writer.WriteMessages(ctx, grouped[topic]...); err != nil {
			errs = append(errs, fmt.Errorf("kafka: failed to write to topic %s: %w", topic, err))
		}
	}

	return errors.Join(errs...)
}

// Close closes all Kafka writers. It is safe to call Close multiple times.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.writers, topic)
	}
	return errors.Join(errs...)
}

// toMessage converts a notification to a Kafka message.
func toMessage(n *herald.Notification) kafkago.Message {
	msg := kafkago.Message{
		Key:   []byte(n.Key()),
		Value: n.Payload,
		Time:  n.OccurredAt,
	}

	msg.Headers = append(msg.Headers, kafkago.Header{Key: "notification-id", Value: []byte(n.ID)})
	for k, v := range n.Headers {
		msg.Headers = append(msg.Headers, kafkago.Header{
			Key:   k,
			Value: []byte(v),
		})
	}
	return msg
}

// getWriter returns or creates a writer for the given topic.
func (p *Publisher) getWriter(topic string) messageWriter {
	p.mu.RLock()
	if w, ok := p.writers[topic]; ok {
		p.mu.RUnlock()
		return w
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	// Double-check after acquiring write lock
	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := p.newWriter(topic)
	p.writers[topic] = w
	return w
}

func (p *Publisher) kafkaWriter(topic string) messageWriter {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               p.balancer,
		BatchTimeout:           p.batchTimeout,
		Transport:              p.transport,
		AllowAutoTopicCreation: true,
	}
}
