// Package consumer reads activity events from Kafka and maintains the
// daily summary read model.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/segmentio/kafka-go"

	"github.com/csgen/Airi/internal/retry"
)

// ErrMalformed marks events that can never be handled. The processor commits
// them instead of retrying.
var ErrMalformed = errors.New("malformed event")

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded messages from Kafka.
type Handler interface {
	Handle(context.Context, Message) error
}

// Message is the decoded representation of a record published by the outbox dispatcher.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Key       string
	EventType string
	EventID   string
	Payload   json.RawMessage
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(p *Processor) {
		p.clock = clock
	}
}

// WithRetryDelay sets the wait before a failed message is handled again.
func WithRetryDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.retryDelay = d
		}
	}
}

// Processor pulls messages from Kafka, decodes them, and dispatches to a Handler.
type Processor struct {
	reader     Reader
	handler    Handler
	clock      quartz.Clock
	logger     *log.Logger
	retryDelay time.Duration
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:     reader,
		handler:    handler,
		clock:      quartz.NewReal(),
		logger:     log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is cancelled.
// A message whose handler fails is retried until it succeeds, so offsets are
// never committed past an unapplied event.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeMessage(msg)
		if decodeErr != nil {
			p.skip(ctx, msg, decodeErr)
			continue
		}

		if err := p.handle(ctx, event); err != nil {
			if errors.Is(err, ErrMalformed) {
				p.skip(ctx, msg, err)
				continue
			}
			return err
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		} else {
			recordProcessed(event)
		}
	}
}

// handle retries failed events until they apply or ctx is done, so the
// offset never moves past an unapplied event.
func (p *Processor) handle(ctx context.Context, event Message) error {
	apply := func() error {
		err := p.handler.Handle(ctx, event)
		if errors.Is(err, ErrMalformed) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, _ time.Duration) {
		p.logger.Printf("handler error (event_type=%s, event_id=%s, offset=%d): %v", event.EventType, event.EventID, event.Offset, err)
		recordHandlerError(event)
	}
	return retry.Do(p.clock, retry.Constant(ctx, p.retryDelay, 0), apply, notify, "consumer", "retry")
}

// skip commits a message that can never be handled to avoid poison-pill loops.
func (p *Processor) skip(ctx context.Context, msg kafka.Message, cause error) {
	p.logger.Printf("skipping message (topic=%s, partition=%d, offset=%d): %v", msg.Topic, msg.Partition, msg.Offset, cause)
	recordDecodeError(msg.Topic)
	if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
		p.logger.Printf("commit error after decode failure: %v", commitErr)
	}
}

func decodeMessage(msg kafka.Message) (Message, error) {
	if len(msg.Value) == 0 {
		return Message{}, errors.New("empty payload")
	}
	if !json.Valid(msg.Value) {
		return Message{}, fmt.Errorf("payload is not JSON (%d bytes)", len(msg.Value))
	}

	eventType, ok := headerValue(msg, "event_type")
	if !ok {
		return Message{}, errors.New("missing event_type header")
	}
	eventID, _ := headerValue(msg, "event_id")

	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Key:       string(msg.Key),
		EventType: string(eventType),
		EventID:   string(eventID),
		Payload:   json.RawMessage(append([]byte(nil), msg.Value...)),
	}, nil
}

func headerValue(msg kafka.Message, key string) ([]byte, bool) {
	for _, header := range msg.Headers {
		if header.Key == key {
			return header.Value, true
		}
	}
	return nil, false
}
