//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/csgen/Airi/internal/domain"
	"github.com/csgen/Airi/internal/events"
)

func startStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.Run(ctx, "postgres:16-alpine",
		postgrescontainer.WithDatabase("airi"),
		postgrescontainer.WithUsername("airi"),
		postgrescontainer.WithPassword("airi"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Open(ctx, connStr, InitConfig{Attempts: 30, Interval: time.Second, Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewStore(pool, ""), pool
}

func sampleRow(app string) domain.StoredActivity {
	local := time.Date(2024, time.January, 1, 9, 0, 0, 123456000, time.FixedZone("", 8*3600))
	return domain.Canonical(domain.ActivityRecord{
		LocalTimestamp:  local,
		DurationSeconds: 754.25,
		Application:     app,
		ActivityType:    domain.CategoryWork,
		InputCount:      42,
	}, time.Now())
}

func TestStoreInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, pool := startStore(t)

	row := sampleRow("Visual Studio Code")
	require.NoError(t, store.Insert(ctx, row))
	require.ErrorIs(t, store.Insert(ctx, row), domain.ErrDuplicate)

	var (
		count    int
		zone     string
		utc      time.Time
		duration float64
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_activity_logs`).Scan(&count))
	require.Equal(t, 1, count)
	require.NoError(t, pool.QueryRow(ctx, `SELECT timezone_name, timestamp_utc, duration_seconds FROM raw_activity_logs`).Scan(&zone, &utc, &duration))
	require.Equal(t, "+08:00", zone)
	require.True(t, row.TimestampUTC.Equal(utc))
	require.Equal(t, 754.25, duration)

	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&count))
	require.Equal(t, 1, count, "duplicates must not emit events")
}

func TestStoreConcurrentInsertsKeepOneRow(t *testing.T) {
	ctx := context.Background()
	store, pool := startStore(t)
	row := sampleRow("Slack")

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		duplicates int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Insert(ctx, row)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, domain.ErrDuplicate):
				duplicates++
			default:
				t.Errorf("unexpected insert error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, accepted)
	require.Equal(t, 7, duplicates)

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM raw_activity_logs`).Scan(&count))
	require.Equal(t, 1, count)
}

func TestOutboxClaimPublishAndRelease(t *testing.T) {
	ctx := context.Background()
	store, _ := startStore(t)

	require.NoError(t, store.Insert(ctx, sampleRow("Figma")))
	require.NoError(t, store.Insert(ctx, sampleRow("Steam")))

	msgs, err := store.ClaimOutbox(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, events.TypeActivityUploaded, msgs[0].EventType)
	require.Equal(t, events.DefaultTopic, msgs[0].Topic)
	require.Equal(t, "2024-01-01", msgs[0].PartitionKey)

	var evt events.ActivityUploaded
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &evt))
	require.Equal(t, msgs[0].EventID, evt.EventID)
	require.Equal(t, "Figma", evt.Application)

	again, err := store.ClaimOutbox(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, again, "claimed rows are leased")

	require.NoError(t, store.ReleaseOutbox(ctx, []int64{msgs[1].ID}))
	require.NoError(t, store.MarkPublished(ctx, []int64{msgs[0].ID}))

	retry, err := store.ClaimOutbox(ctx, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, retry, 1)
	require.Equal(t, msgs[1].ID, retry[0].ID)
}

func TestApplyActivityEventOnce(t *testing.T) {
	ctx := context.Background()
	store, _ := startStore(t)

	evt := events.NewActivityUploaded("7b8a1f0e-6f0c-4c55-9a5e-1f5bbf3f8b11", sampleRow("Figma"))
	evt.ActivityType = string(domain.CategoryCreative)

	applied, err := store.ApplyActivityEvent(ctx, evt)
	require.NoError(t, err)
	require.True(t, applied)

	applied, err = store.ApplyActivityEvent(ctx, evt)
	require.NoError(t, err)
	require.False(t, applied)

	summary, err := store.DailySummary(ctx, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 754.25, summary.Seconds[domain.CategoryCreative])
	require.Equal(t, int64(42), summary.InputCount)
	require.Equal(t, int64(1), summary.RecordCount)

	empty, err := store.DailySummary(ctx, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, empty.RecordCount)
}
