// Package outbox delivers events recorded in the store's outbox to Kafka.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/coder/quartz"
	"github.com/segmentio/kafka-go"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 25
	defaultLease        = time.Minute
)

// Message represents a row claimed from the outbox.
type Message struct {
	ID           int64
	EventID      string
	EventType    string
	Topic        string
	PartitionKey string
	Payload      json.RawMessage
}

// Source claims outbox rows and records their delivery.
type Source interface {
	ClaimOutbox(ctx context.Context, limit int, lease time.Duration) ([]Message, error)
	MarkPublished(ctx context.Context, ids []int64) error
	ReleaseOutbox(ctx context.Context, ids []int64) error
}

type messageWriter interface {
	WriteMessages(context.Context, string, ...kafka.Message) error
}

// Option configures optional behaviour for the Dispatcher.
type Option func(*Dispatcher)

// WithLogger overrides the dispatcher logger.
func WithLogger(logger *log.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clock
	}
}

// WithPollInterval sets the delay between outbox polls.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithBatchSize caps the number of rows claimed per poll.
func WithBatchSize(size int) Option {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

// Dispatcher drains the outbox table and delivers events to Kafka.
type Dispatcher struct {
	source           Source
	producer         messageWriter
	clock            quartz.Clock
	logger           *log.Logger
	pollInterval     time.Duration
	batchSize        int
	lease            time.Duration
	shutdownComplete chan struct{}
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(source Source, producer messageWriter, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:           source,
		producer:         producer,
		clock:            quartz.NewReal(),
		logger:           log.New(log.Writer(), "[outbox] ", log.LstdFlags|log.Lshortfile),
		pollInterval:     defaultPollInterval,
		batchSize:        defaultBatchSize,
		lease:            defaultLease,
		shutdownComplete: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the polling loop until ctx is cancelled. It should be called in
// a goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	defer close(d.shutdownComplete)

	poll := func() error {
		if _, err := d.ProcessBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Printf("outbox dispatcher error: %v", err)
		}
		return nil
	}

	_ = poll()
	_ = d.clock.TickerFunc(ctx, d.pollInterval, poll, "outbox", "poll").Wait()
}

// Wait waits until the dispatcher stops.
func (d *Dispatcher) Wait() {
	<-d.shutdownComplete
}

// ProcessBatch delivers one batch and returns the number of events published.
// Rows of a failed delivery are released so the next poll retries them.
func (d *Dispatcher) ProcessBatch(ctx context.Context) (int, error) {
	start := d.clock.Now()

	messages, err := d.source.ClaimOutbox(ctx, d.batchSize, d.lease)
	if err != nil {
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}
	defer func() {
		batchDuration.Observe(d.clock.Now().Sub(start).Seconds())
	}()

	ids := make([]int64, 0, len(messages))
	for _, msg := range messages {
		ids = append(ids, msg.ID)
	}

	if err := d.deliver(ctx, messages); err != nil {
		failedCounter.Add(float64(len(messages)))
		d.logger.Printf("delivery failure for %d events: %v", len(messages), err)
		if releaseErr := d.source.ReleaseOutbox(context.WithoutCancel(ctx), ids); releaseErr != nil {
			return 0, errors.Join(err, releaseErr)
		}
		return 0, err
	}

	deliveredCounter.Add(float64(len(messages)))
	if err := d.source.MarkPublished(context.WithoutCancel(ctx), ids); err != nil {
		return 0, err
	}
	return len(messages), nil
}

func (d *Dispatcher) deliver(ctx context.Context, messages []Message) error {
	batches := make(map[string][]kafka.Message)
	var topics []string

	for _, msg := range messages {
		record := kafka.Message{
			Key:   []byte(msg.PartitionKey),
			Value: []byte(msg.Payload),
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(msg.EventType)},
				{Key: "event_id", Value: []byte(msg.EventID)},
			},
			Time: d.clock.Now().UTC(),
		}
		if _, ok := batches[msg.Topic]; !ok {
			topics = append(topics, msg.Topic)
		}
		batches[msg.Topic] = append(batches[msg.Topic], record)
	}

	for _, topic := range topics {
		if err := d.producer.WriteMessages(ctx, topic, batches[topic]...); err != nil {
			return err
		}
	}
	return nil
}
