// Package recorder buffers sealed activity records and flushes them to the
// per-day activity files.
package recorder

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/csgen/Airi/internal/activityfile"
	"github.com/csgen/Airi/internal/domain"
	"github.com/csgen/Airi/internal/observability"
)

const defaultFlushInterval = 300 * time.Second

// Classifier assigns the activity type of a record.
type Classifier interface {
	Categorize(application string) domain.Category
}

// Sealer closes the interval still open when the monitor stops.
type Sealer interface {
	Seal(at time.Time) (domain.ActivityRecord, bool)
}

// Option configures optional behaviour for the Recorder.
type Option func(*Recorder)

// WithLogger overrides the logger used to report flushes.
func WithLogger(logger *log.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(r *Recorder) {
		r.clock = clock
	}
}

// WithFlushInterval sets the periodic flush interval.
func WithFlushInterval(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.flushInterval = d
		}
	}
}

// Recorder is the segmenter's sink. Append and Flush are mutually exclusive:
// a flush writes a consistent snapshot and clears it only once written.
type Recorder struct {
	dir           string
	classifier    Classifier
	clock         quartz.Clock
	logger        *log.Logger
	flushInterval time.Duration

	mu     sync.Mutex
	buffer []domain.ActivityRecord
}

// New constructs a Recorder writing into dir.
func New(dir string, classifier Classifier, opts ...Option) *Recorder {
	r := &Recorder{
		dir:           dir,
		classifier:    classifier,
		clock:         quartz.NewReal(),
		logger:        log.New(log.Writer(), "[recorder] ", log.LstdFlags|log.Lshortfile),
		flushInterval: defaultFlushInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Append classifies record and adds it to the buffer.
func (r *Recorder) Append(record domain.ActivityRecord) {
	if record.ActivityType == "" {
		record.ActivityType = r.classifier.Categorize(record.Application)
	}
	r.mu.Lock()
	r.buffer = append(r.buffer, record)
	r.mu.Unlock()
}

// Pending returns the number of buffered records.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffer)
}

// Flush appends the buffer to today's file. The buffer is cleared only after
// the write succeeded; on error it is kept for the next flush.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buffer) == 0 {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		observability.RecordFlushFailure()
		return err
	}

	path := activityfile.PathFor(r.dir, r.clock.Now())
	written, err := activityfile.Append(path, r.buffer)
	if err != nil {
		observability.RecordFlushFailure()
		return err
	}

	r.logger.Printf("saved %d records to %s (buffered=%d)", written, path, len(r.buffer))
	observability.RecordFlush(written)
	r.buffer = nil
	return nil
}

// Run flushes every flush interval until ctx is cancelled. Flush errors are
// logged and retried on the next tick. Run does not flush on exit; callers
// flush once more after the segmenter has stopped.
func (r *Recorder) Run(ctx context.Context) error {
	waiter := r.clock.TickerFunc(ctx, r.flushInterval, func() error {
		if err := r.Flush(); err != nil {
			r.logger.Printf("flush error: %v", err)
		}
		return nil
	}, "recorder", "flush")

	err := waiter.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Shutdown seals the trailing interval through sealer, when one is given, and
// flushes the buffer a last time. Call it after the segmenter has stopped.
func (r *Recorder) Shutdown(sealer Sealer) error {
	if sealer != nil {
		if record, ok := sealer.Seal(r.clock.Now()); ok {
			r.logger.Printf("sealed trailing interval app=%q duration=%.1fs", record.Application, record.DurationSeconds)
		}
	}
	if err := r.Flush(); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return nil
}
