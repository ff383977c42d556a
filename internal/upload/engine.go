// Package upload submits locally recorded activity files to the durable store.
package upload

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/csgen/Airi/internal/activityfile"
	"github.com/csgen/Airi/internal/domain"
	"github.com/csgen/Airi/internal/observability"
	"github.com/csgen/Airi/internal/retry"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 10 * time.Second
)

// Store writes canonical rows. Insert returns an error matching
// domain.ErrDuplicate when the dedup key is already stored, and one matching
// domain.ErrTransient when the attempt may succeed later.
type Store interface {
	Insert(ctx context.Context, row domain.StoredActivity) error
}

// FileLister yields activity files in upload order.
type FileLister interface {
	List() ([]activityfile.File, error)
}

// Option configures optional behaviour for the Engine.
type Option func(*Engine)

// WithLogger overrides the logger used to report outcomes.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock quartz.Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithMaxRetries sets the number of insert attempts made for a transient failure.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBackoff sets the fixed wait between attempts.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.backoff = d
		}
	}
}

// Engine uploads every record of every listed file. Each record is submitted
// independently; re-running a pass is safe because the store deduplicates.
type Engine struct {
	store      Store
	source     FileLister
	clock      quartz.Clock
	logger     *log.Logger
	maxRetries int
	backoff    time.Duration
}

// NewEngine constructs an Engine.
func NewEngine(store Store, source FileLister, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		source:     source,
		clock:      quartz.NewReal(),
		logger:     log.New(log.Writer(), "[upload] ", log.LstdFlags|log.Lshortfile),
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report summarises one pass over the activity files.
type Report struct {
	PassID      string
	Files       int
	FailedFiles []string
	domain.Tally
	StartedAt  time.Time
	FinishedAt time.Time
}

// UploadAll runs one pass over every file the source lists. Unreadable files
// are logged and skipped. It returns an error only when the files cannot be
// listed or ctx is cancelled.
func (e *Engine) UploadAll(ctx context.Context) (Report, error) {
	report := Report{PassID: uuid.NewString(), StartedAt: e.clock.Now()}

	files, err := e.source.List()
	if err != nil {
		return report, err
	}
	if len(files) == 0 {
		e.logger.Printf("pass=%s no activity files found", report.PassID)
	}

	for _, file := range files {
		tally, err := e.UploadFile(ctx, file.Path)
		report.Merge(tally)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			e.logger.Printf("pass=%s file=%s skipped: %v", report.PassID, file.Name, err)
			observability.RecordFileError()
			report.FailedFiles = append(report.FailedFiles, file.Path)
			continue
		}
		report.Files++
	}

	report.FinishedAt = e.clock.Now()
	observability.RecordPass(report.StartedAt, report.FinishedAt)
	e.logger.Printf("pass=%s completed files=%d failed_files=%d accepted=%d duplicate=%d failed=%d",
		report.PassID, report.Files, len(report.FailedFiles), report.Accepted, report.Duplicate, report.Failed)
	return report, nil
}

// UploadFile submits every record of the file at path in row order. A read
// error aborts the file before any record is submitted.
func (e *Engine) UploadFile(ctx context.Context, path string) (domain.Tally, error) {
	var tally domain.Tally

	records, err := activityfile.Read(path)
	if err != nil {
		return tally, err
	}
	e.logger.Printf("uploading file=%s records=%d", path, len(records))

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return tally, err
		}
		tally.Add(e.Submit(ctx, record))
	}
	e.logger.Printf("file completed file=%s accepted=%d duplicate=%d failed=%d", path, tally.Accepted, tally.Duplicate, tally.Failed)
	return tally, nil
}

// Submit writes one record, retrying transient failures with a fixed backoff.
// It never returns an error: exhausted retries and rejected rows are reported
// as domain.OutcomeFailed and picked up again by the next pass.
func (e *Engine) Submit(ctx context.Context, record domain.ActivityRecord) domain.Outcome {
	outcome := e.submit(ctx, record)
	observability.RecordOutcome(outcome)
	return outcome
}

func (e *Engine) submit(ctx context.Context, record domain.ActivityRecord) domain.Outcome {
	row := domain.Canonical(record, e.clock.Now())
	stamp := activityfile.FormatTimestamp(record.LocalTimestamp)

	outcome := domain.OutcomeFailed
	attempt := 0
	insert := func() error {
		attempt++
		observability.RecordAttempt()
		err := e.store.Insert(ctx, row)
		switch {
		case err == nil:
			outcome = domain.OutcomeAccepted
			return nil
		case errors.Is(err, domain.ErrDuplicate):
			outcome = domain.OutcomeDuplicate
			return nil
		case !errors.Is(err, domain.ErrTransient):
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Printf("store unavailable (attempt %d/%d) ts=%s: %v; retrying in %s", attempt, e.maxRetries, stamp, err, wait)
	}

	err := retry.Do(e.clock, retry.Constant(ctx, e.backoff, e.maxRetries), insert, notify, "upload", "backoff")
	switch {
	case err == nil && outcome == domain.OutcomeAccepted:
		e.logger.Printf("uploaded ts=%s app=%q", stamp, record.Application)
	case err == nil:
		e.logger.Printf("duplicate skipped ts=%s app=%q", stamp, record.Application)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		e.logger.Printf("retry abandoned ts=%s: %v", stamp, err)
	case errors.Is(err, domain.ErrTransient):
		e.logger.Printf("upload failed after %d attempts ts=%s app=%q: %v; will retry next scheduled pass", attempt, stamp, record.Application, err)
	default:
		e.logger.Printf("store rejected ts=%s app=%q: %v", stamp, record.Application, err)
	}
	return outcome
}
