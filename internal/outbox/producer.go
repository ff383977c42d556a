package outbox

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ProducerConfig describes how activity events are written to the brokers.
type ProducerConfig struct {
	Brokers      []string
	Compression  kafka.Compression
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	Logger       *log.Logger
}

// ParseCompression maps a codec name such as "snappy" to its kafka-go value.
// "none" and the empty string disable compression.
func ParseCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "snappy":
		return kafka.Snappy, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	}
	return 0, fmt.Errorf("unknown kafka compression %q", name)
}

// KafkaProducer keeps one writer per topic. Messages are hashed on their key,
// so events of one local date land on one partition in order.
type KafkaProducer struct {
	cfg     ProducerConfig
	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer. Zero timeouts fall back to the
// kafka-go defaults.
func NewKafkaProducer(cfg ProducerConfig) *KafkaProducer {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[kafka] ", log.LstdFlags|log.Lshortfile)
	}
	return &KafkaProducer{
		cfg:     cfg,
		writers: make(map[string]*kafka.Writer),
	}
}

// WriteMessages writes messages to topic, creating its writer on first use.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writerForTopic(topic).WriteMessages(ctx, msgs...)
}

func (p *KafkaProducer) writerForTopic(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if writer, ok := p.writers[topic]; ok {
		return writer
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(p.cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  p.cfg.Compression,
		BatchTimeout: p.cfg.BatchTimeout,
		WriteTimeout: p.cfg.WriteTimeout,
		ErrorLogger:  kafka.LoggerFunc(p.cfg.Logger.Printf),
	}
	p.writers[topic] = writer
	return writer
}

// Close releases all writers.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.writers, topic)
	}
	return firstErr
}
