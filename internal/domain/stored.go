package domain

import (
	"errors"
	"time"
)

// ErrTransient marks store errors worth retrying, such as lost connections.
var ErrTransient = errors.New("transient store error")

type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }

func (e *transientError) Unwrap() error { return e.err }

func (e *transientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// StoredActivity is the canonical row written to the durable store.
type StoredActivity struct {
	LocalTimestamp  time.Time
	TimestampUTC    time.Time
	TimezoneName    string
	DurationSeconds float64
	Application     string
	ActivityType    Category
	InputCount      int
	ImportedAt      time.Time
}

// Canonical converts a record into its stored form. The offset string comes
// from the record's own timestamp, not from the zone at import time.
func Canonical(r ActivityRecord, importedAt time.Time) StoredActivity {
	return StoredActivity{
		LocalTimestamp:  r.LocalTimestamp,
		TimestampUTC:    r.LocalTimestamp.UTC(),
		TimezoneName:    r.TimezoneOffset(),
		DurationSeconds: r.DurationSeconds,
		Application:     r.Application,
		ActivityType:    r.ActivityType,
		InputCount:      r.InputCount,
		ImportedAt:      importedAt.UTC(),
	}
}

// Key returns the dedup key of the stored row.
func (s StoredActivity) Key() Key {
	return Key{
		LocalTimestamp:  s.LocalTimestamp.UnixNano(),
		Application:     s.Application,
		DurationSeconds: s.DurationSeconds,
	}
}
