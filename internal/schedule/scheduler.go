// Package schedule triggers upload passes at startup and at a fixed local
// time of day.
package schedule

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/csgen/Airi/internal/observability"
)

// Mode gates whether uploads run at all.
type Mode string

const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
)

// ParseMode validates an APP_ENV value.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeProduction:
		return ModeProduction, nil
	case ModeDevelopment:
		return ModeDevelopment, nil
	default:
		return "", fmt.Errorf("unknown app env %q", value)
	}
}

// TimeOfDay is a wall-clock time in the scheduler's location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses an HH:MM value.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(value))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("parse upload time %q: %w", value, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// NextRun returns the first occurrence of at strictly after now, in now's
// location. A clock that was suspended past one or more occurrences yields
// the next future one rather than a backlog.
func NextRun(now time.Time, at TimeOfDay) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour, at.Minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, at.Hour, at.Minute, 0, 0, now.Location())
	}
	return next
}

// PassFunc runs one upload pass.
type PassFunc func(ctx context.Context) error

// Option configures optional behaviour for the Scheduler.
type Option func(*Scheduler)

// WithLogger overrides the logger used to report scheduling decisions.
func WithLogger(logger *log.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithMode sets the operating mode. Defaults to production.
func WithMode(mode Mode) Option {
	return func(s *Scheduler) {
		s.mode = mode
	}
}

// WithTimeOfDay sets the daily run time. Defaults to midnight.
func WithTimeOfDay(at TimeOfDay) Option {
	return func(s *Scheduler) {
		s.at = at
	}
}

// WithLocation sets the zone the daily run time is interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Scheduler runs an immediate pass and then one pass per day.
type Scheduler struct {
	pass   PassFunc
	clock  quartz.Clock
	logger *log.Logger
	mode   Mode
	at     TimeOfDay
	loc    *time.Location
}

// New constructs a Scheduler around pass.
func New(pass PassFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		pass:   pass,
		clock:  quartz.NewReal(),
		logger: log.New(log.Writer(), "[schedule] ", log.LstdFlags|log.Lshortfile),
		mode:   ModeProduction,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is cancelled. In development mode it returns
// immediately without running any pass.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.mode != ModeProduction {
		s.logger.Printf("upload disabled in %s mode", s.mode)
		return nil
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runPass(ctx, "startup")
	}()

	for {
		now := s.clock.Now().In(s.loc)
		next := NextRun(now, s.at)
		observability.RecordNextPass(next)
		s.logger.Printf("next upload pass at %s", next.Format(time.RFC3339))

		timer := s.clock.NewTimer(next.Sub(now), "schedule", "next")
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		s.runPass(ctx, "scheduled")
	}
}

func (s *Scheduler) runPass(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	s.logger.Printf("starting %s upload pass", trigger)
	if err := s.pass(ctx); err != nil {
		s.logger.Printf("%s upload pass failed: %v", trigger, err)
	}
}
