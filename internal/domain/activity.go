// Package domain defines the activity record model shared by the monitor and the uploader.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate indicates the store already holds a record with the same dedup key.
var ErrDuplicate = errors.New("activity record already stored")

// Category is the coarse classification of an application.
type Category string

const (
	CategoryWork          Category = "work"
	CategoryCreative      Category = "creative"
	CategoryEntertainment Category = "entertainment"
	CategorySocial        Category = "social"
	CategoryOther         Category = "other"
)

// Categories lists every category in matching priority order.
var Categories = []Category{CategoryWork, CategoryCreative, CategoryEntertainment, CategorySocial, CategoryOther}

// ParseCategory validates a category string read from a file or the wire.
func ParseCategory(value string) (Category, error) {
	for _, c := range Categories {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown activity type %q", value)
}

// ActivityRecord is one sealed interval of foreground application usage.
type ActivityRecord struct {
	LocalTimestamp  time.Time
	DurationSeconds float64
	Application     string
	ActivityType    Category
	InputCount      int
}

// Key returns the natural dedup key of the record.
func (r ActivityRecord) Key() Key {
	return Key{
		LocalTimestamp:  r.LocalTimestamp.UnixNano(),
		Application:     r.Application,
		DurationSeconds: r.DurationSeconds,
	}
}

// TimezoneOffset is the record's own UTC offset as a signed HH:MM string.
func (r ActivityRecord) TimezoneOffset() string {
	return FormatOffset(r.LocalTimestamp)
}

// LocalDate is the calendar date of the record in its captured offset.
func (r ActivityRecord) LocalDate() string {
	return r.LocalTimestamp.Format(time.DateOnly)
}

// Key identifies a record independent of its category and input count.
// Two records with equal keys describe the same event.
type Key struct {
	LocalTimestamp  int64
	Application     string
	DurationSeconds float64
}

// FormatOffset renders the zone offset active at t, e.g. "+08:00" or "-05:30".
func FormatOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}
