// Package postgres implements the durable activity store on Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/csgen/Airi/internal/domain"
	"github.com/csgen/Airi/internal/events"
	"github.com/csgen/Airi/internal/outbox"
)

// Store persists uploaded activity rows together with their outbox events.
type Store struct {
	pool  *pgxpool.Pool
	topic string
}

// NewStore constructs a Store publishing events to topic.
func NewStore(pool *pgxpool.Pool, topic string) *Store {
	if topic == "" {
		topic = events.DefaultTopic
	}
	return &Store{pool: pool, topic: topic}
}

const insertActivity = `INSERT INTO raw_activity_logs (local_timestamp, timestamp_utc, timezone_name, duration_seconds, application, activity_type, input_count, imported_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT ON CONSTRAINT uq_raw_log_unique_record DO NOTHING`

// Insert writes row exactly once. A row whose dedup key is already stored
// yields domain.ErrDuplicate; connection-level failures are marked transient.
func (s *Store) Insert(ctx context.Context, row domain.StoredActivity) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(fmt.Errorf("begin insert: %w", err))
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, insertActivity,
		row.LocalTimestamp,
		row.TimestampUTC,
		row.TimezoneName,
		row.DurationSeconds,
		row.Application,
		string(row.ActivityType),
		row.InputCount,
		row.ImportedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert raw_activity_logs: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}

	if err = s.insertOutbox(ctx, tx, row); err != nil {
		return classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit insert: %w", err))
	}
	return nil
}

func (s *Store) insertOutbox(ctx context.Context, tx pgx.Tx, row domain.StoredActivity) error {
	eventID := uuid.NewString()
	evt := events.NewActivityUploaded(eventID, row)
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (event_uuid, event_type, topic, partition_key, payload)
        VALUES ($1,$2,$3,$4,$5)`

	if _, err := tx.Exec(ctx, stmt, eventID, events.TypeActivityUploaded, s.topic, evt.LocalDate, body); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}

// ClaimOutbox locks up to limit unpublished events for delivery. Claims
// older than lease are considered abandoned and may be taken again.
func (s *Store) ClaimOutbox(ctx context.Context, limit int, lease time.Duration) (msgs []outbox.Message, err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, event_uuid::text, event_type, topic, partition_key, payload
        FROM outbox
        WHERE published_at IS NULL
          AND (claimed_at IS NULL OR claimed_at < NOW() - $2::interval)
        ORDER BY event_id
        LIMIT $1
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, limit, lease)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var msg outbox.Message
		if err = rows.Scan(&msg.ID, &msg.EventID, &msg.EventType, &msg.Topic, &msg.PartitionKey, &msg.Payload); err != nil {
			rows.Close()
			return nil, err
		}
		msgs = append(msgs, msg)
		ids = append(ids, msg.ID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		tx.Rollback(ctx)
		return nil, nil
	}

	if _, err = tx.Exec(ctx, `UPDATE outbox SET claimed_at = NOW() WHERE event_id = ANY($1)`, ids); err != nil {
		return nil, err
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkPublished records successful delivery of the given outbox rows.
func (s *Store) MarkPublished(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET published_at = NOW() WHERE event_id = ANY($1)`, ids)
	return err
}

// ReleaseOutbox drops the claim on rows whose delivery failed so the next
// poll picks them up again.
func (s *Store) ReleaseOutbox(ctx context.Context, ids []int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE outbox SET claimed_at = NULL WHERE event_id = ANY($1) AND published_at IS NULL`, ids)
	return err
}

var summaryColumns = map[domain.Category]string{
	domain.CategoryWork:          "work_seconds",
	domain.CategoryCreative:      "creative_seconds",
	domain.CategoryEntertainment: "entertainment_seconds",
	domain.CategorySocial:        "social_seconds",
	domain.CategoryOther:         "other_seconds",
}

// ApplyActivityEvent adds the event to its day's summary unless the event
// was applied before. It reports whether the summary changed.
func (s *Store) ApplyActivityEvent(ctx context.Context, evt events.ActivityUploaded) (applied bool, err error) {
	category, err := domain.ParseCategory(evt.ActivityType)
	if err != nil {
		return false, err
	}
	day, err := time.Parse(time.DateOnly, evt.LocalDate)
	if err != nil {
		return false, fmt.Errorf("parse local_date: %w", err)
	}
	column := summaryColumns[category]

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `INSERT INTO summary_applied_events (event_id) VALUES ($1) ON CONFLICT DO NOTHING`, evt.EventID)
	if err != nil {
		return false, fmt.Errorf("record applied event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, tx.Commit(ctx)
	}

	upsert := fmt.Sprintf(`INSERT INTO daily_summary (summary_date, %[1]s, input_count, record_count, updated_at)
        VALUES ($1, $2, $3, 1, NOW())
        ON CONFLICT (summary_date) DO UPDATE SET
            %[1]s = daily_summary.%[1]s + EXCLUDED.%[1]s,
            input_count = daily_summary.input_count + EXCLUDED.input_count,
            record_count = daily_summary.record_count + 1,
            updated_at = NOW()`, column)

	if _, err = tx.Exec(ctx, upsert, day, evt.DurationSeconds, int64(evt.InputCount)); err != nil {
		return false, fmt.Errorf("upsert daily_summary: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// DailySummary loads the summary of day. A day without records yields a
// zero summary.
func (s *Store) DailySummary(ctx context.Context, day time.Time) (domain.DailySummary, error) {
	const query = `SELECT summary_date, work_seconds, creative_seconds, entertainment_seconds, social_seconds, other_seconds, input_count, record_count, updated_at
        FROM daily_summary WHERE summary_date = $1`

	date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	summary := domain.DailySummary{Date: date, Seconds: make(map[domain.Category]float64)}

	var work, creative, entertainment, social, other float64
	err := s.pool.QueryRow(ctx, query, date).Scan(&summary.Date, &work, &creative, &entertainment, &social, &other, &summary.InputCount, &summary.RecordCount, &summary.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return summary, nil
		}
		return summary, err
	}

	summary.Seconds[domain.CategoryWork] = work
	summary.Seconds[domain.CategoryCreative] = creative
	summary.Seconds[domain.CategoryEntertainment] = entertainment
	summary.Seconds[domain.CategorySocial] = social
	summary.Seconds[domain.CategoryOther] = other
	return summary, nil
}
