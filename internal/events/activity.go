// Package events defines the payloads published from the store's outbox.
package events

import (
	"errors"
	"time"

	"github.com/csgen/Airi/internal/domain"
)

// TypeActivityUploaded is the event type of ActivityUploaded.
const TypeActivityUploaded = "activity.uploaded"

// DefaultTopic is the Kafka topic activity events are published to.
const DefaultTopic = "activity_events"

// ActivityUploaded is emitted once per record newly accepted by the store.
type ActivityUploaded struct {
	EventID         string    `json:"event_id"`
	LocalTimestamp  time.Time `json:"local_timestamp"`
	LocalDate       string    `json:"local_date"`
	TimezoneName    string    `json:"timezone_name"`
	DurationSeconds float64   `json:"duration_seconds"`
	Application     string    `json:"application"`
	ActivityType    string    `json:"activity_type"`
	InputCount      int       `json:"input_count"`
	ImportedAt      time.Time `json:"imported_at"`
}

// NewActivityUploaded builds the event for a stored row.
func NewActivityUploaded(eventID string, row domain.StoredActivity) ActivityUploaded {
	return ActivityUploaded{
		EventID:         eventID,
		LocalTimestamp:  row.LocalTimestamp,
		LocalDate:       row.LocalTimestamp.Format(time.DateOnly),
		TimezoneName:    row.TimezoneName,
		DurationSeconds: row.DurationSeconds,
		Application:     row.Application,
		ActivityType:    string(row.ActivityType),
		InputCount:      row.InputCount,
		ImportedAt:      row.ImportedAt,
	}
}

// Validate reports payloads a consumer cannot apply.
func (e ActivityUploaded) Validate() error {
	var errs []error
	if e.EventID == "" {
		errs = append(errs, errors.New("event_id is required"))
	}
	if _, err := time.Parse(time.DateOnly, e.LocalDate); err != nil {
		errs = append(errs, errors.New("local_date must be YYYY-MM-DD"))
	}
	if _, err := domain.ParseCategory(e.ActivityType); err != nil {
		errs = append(errs, err)
	}
	if e.DurationSeconds < 0 {
		errs = append(errs, errors.New("duration_seconds must be non-negative"))
	}
	if e.InputCount < 0 {
		errs = append(errs, errors.New("input_count must be non-negative"))
	}
	return errors.Join(errs...)
}
