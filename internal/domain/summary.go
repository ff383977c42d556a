package domain

import "time"

// DailySummary aggregates the stored records of one local calendar date.
type DailySummary struct {
	Date        time.Time
	Seconds     map[Category]float64
	InputCount  int64
	RecordCount int64
	UpdatedAt   time.Time
}

// TotalSeconds sums the seconds of every category.
func (s DailySummary) TotalSeconds() float64 {
	var total float64
	for _, v := range s.Seconds {
		total += v
	}
	return total
}
