// Package segment turns foreground-focus and input signals into sealed activity intervals.
package segment

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/csgen/Airi/internal/domain"
	"github.com/csgen/Airi/internal/observability"
)

// UnknownApplication stands in for windows that report no title.
const UnknownApplication = "Unknown"

const (
	defaultPollInterval = 2 * time.Second
	defaultMinDuration  = time.Second
)

// ForegroundProbe reports the application currently holding foreground focus.
type ForegroundProbe interface {
	CurrentForegroundApplication(ctx context.Context) (string, error)
}

// Sink receives sealed records.
type Sink interface {
	Append(domain.ActivityRecord)
}

// Option configures optional behaviour for the Segmenter.
type Option func(*Segmenter)

// WithLogger overrides the logger used to report focus changes and probe errors.
func WithLogger(logger *log.Logger) Option {
	return func(s *Segmenter) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(s *Segmenter) {
		s.clock = clock
	}
}

// WithPollInterval sets how often the foreground probe is queried.
func WithPollInterval(d time.Duration) Option {
	return func(s *Segmenter) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMinDuration sets the threshold at or below which sealed intervals are discarded.
func WithMinDuration(d time.Duration) Option {
	return func(s *Segmenter) {
		if d >= 0 {
			s.minDuration = d
		}
	}
}

// Segmenter owns the single open interval. Focus and Input may be called
// from different goroutines.
type Segmenter struct {
	probe        ForegroundProbe
	sink         Sink
	clock        quartz.Clock
	logger       *log.Logger
	pollInterval time.Duration
	minDuration  time.Duration

	mu         sync.Mutex
	current    string
	hasCurrent bool
	start      time.Time
	pending    int
}

// New constructs a Segmenter that polls probe and emits into sink.
func New(probe ForegroundProbe, sink Sink, opts ...Option) *Segmenter {
	s := &Segmenter{
		probe:        probe,
		sink:         sink,
		clock:        quartz.NewReal(),
		logger:       log.New(log.Writer(), "[segment] ", log.LstdFlags|log.Lshortfile),
		pollInterval: defaultPollInterval,
		minDuration:  defaultMinDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Focus reports that application holds focus at time at. When focus moves away
// from the current application its interval is sealed, and emitted if it is
// longer than the minimum duration.
func (s *Segmenter) Focus(application string, at time.Time) (domain.ActivityRecord, bool) {
	if application == "" {
		application = UnknownApplication
	}
	at = at.Truncate(time.Microsecond)

	s.mu.Lock()
	if s.hasCurrent && s.current == application {
		s.mu.Unlock()
		return domain.ActivityRecord{}, false
	}

	var (
		record  domain.ActivityRecord
		emitted bool
	)
	if s.hasCurrent {
		record, emitted = s.sealLocked(at)
	}
	s.current = application
	s.hasCurrent = true
	s.start = at
	s.mu.Unlock()

	observability.RecordFocusChange()
	s.logger.Printf("focus => %s", application)
	if emitted {
		s.sink.Append(record)
	}
	return record, emitted
}

// Input counts a keyboard or mouse event. Only presses count.
func (s *Segmenter) Input(kind InputKind, _ time.Time) {
	if !kind.Counts() {
		return
	}
	s.mu.Lock()
	s.pending++
	s.mu.Unlock()
}

// Seal closes the open interval at time at, leaving no current application.
// It is used on shutdown; the next Focus call starts a fresh interval.
func (s *Segmenter) Seal(at time.Time) (domain.ActivityRecord, bool) {
	at = at.Truncate(time.Microsecond)

	s.mu.Lock()
	if !s.hasCurrent {
		s.mu.Unlock()
		return domain.ActivityRecord{}, false
	}
	record, emitted := s.sealLocked(at)
	s.hasCurrent = false
	s.current = ""
	s.start = time.Time{}
	s.mu.Unlock()

	if emitted {
		s.sink.Append(record)
	}
	return record, emitted
}

// Current returns the application holding the open interval, if any.
func (s *Segmenter) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.hasCurrent
}

// sealLocked closes [start, end) for the current application. A new interval
// starts either way, so the input counter is reset even for discarded intervals.
func (s *Segmenter) sealLocked(end time.Time) (domain.ActivityRecord, bool) {
	duration := end.Sub(s.start)
	inputs := s.pending
	s.pending = 0

	if duration <= s.minDuration {
		observability.RecordSealed(false)
		return domain.ActivityRecord{}, false
	}
	observability.RecordSealed(true)
	return domain.ActivityRecord{
		LocalTimestamp:  s.start,
		DurationSeconds: duration.Seconds(),
		Application:     s.current,
		InputCount:      inputs,
	}, true
}

// Run polls the foreground probe until ctx is cancelled.
func (s *Segmenter) Run(ctx context.Context) error {
	s.poll(ctx)
	waiter := s.clock.TickerFunc(ctx, s.pollInterval, func() error {
		s.poll(ctx)
		return nil
	}, "segment", "poll")

	err := waiter.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// poll gives each probe call at most one poll interval.
func (s *Segmenter) poll(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, s.pollInterval)
	defer cancel()

	application, err := s.probe.CurrentForegroundApplication(probeCtx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Printf("foreground probe error: %v", err)
		}
		return
	}
	s.Focus(application, s.clock.Now())
}
