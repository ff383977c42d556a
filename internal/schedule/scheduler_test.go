package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sgt = time.FixedZone("SGT", 8*3600)

func at(day, hour, minute, sec int) time.Time {
	return time.Date(2024, time.January, day, hour, minute, sec, 0, sgt)
}

func TestNextRun(t *testing.T) {
	midnight := TimeOfDay{}
	cases := []struct {
		name string
		now  time.Time
		at   TimeOfDay
		want time.Time
	}{
		{name: "later today", now: at(1, 8, 0, 0), at: TimeOfDay{Hour: 9, Minute: 30}, want: at(1, 9, 30, 0)},
		{name: "already passed", now: at(1, 10, 0, 0), at: midnight, want: at(2, 0, 0, 0)},
		{name: "exactly now", now: at(1, 0, 0, 0), at: midnight, want: at(2, 0, 0, 0)},
		{name: "one second before", now: at(1, 23, 59, 59), at: midnight, want: at(2, 0, 0, 0)},
		{name: "month rollover", now: at(31, 12, 0, 0), at: TimeOfDay{Hour: 6}, want: time.Date(2024, time.February, 1, 6, 0, 0, 0, sgt)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextRun(tc.now, tc.at)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			require.True(t, got.After(tc.now))
		})
	}
}

func TestNextRunAfterSuspension(t *testing.T) {
	lastTarget := at(2, 0, 0, 0)
	resumed := lastTarget.Add(51 * time.Hour)

	next := NextRun(resumed, TimeOfDay{})
	require.True(t, at(5, 0, 0, 0).Equal(next))
	require.Equal(t, 21*time.Hour, next.Sub(resumed))
}

func TestNextRunAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("zone data unavailable: %v", err)
	}
	now := time.Date(2024, time.March, 9, 12, 0, 0, 0, loc)
	next := NextRun(now, TimeOfDay{Hour: 9})
	require.Equal(t, 9, next.Hour())
	require.Equal(t, 10, next.Day())
	require.Equal(t, 20*time.Hour, next.Sub(now))
}

func TestParseTimeOfDay(t *testing.T) {
	got, err := ParseTimeOfDay("00:00")
	require.NoError(t, err)
	require.Equal(t, TimeOfDay{}, got)

	got, err = ParseTimeOfDay(" 23:45 ")
	require.NoError(t, err)
	require.Equal(t, TimeOfDay{Hour: 23, Minute: 45}, got)
	require.Equal(t, "23:45", got.String())

	for _, bad := range []string{"", "24:00", "12:60", "noon"} {
		_, err := ParseTimeOfDay(bad)
		require.Error(t, err, bad)
	}
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("Production")
	require.NoError(t, err)
	require.Equal(t, ModeProduction, mode)

	mode, err = ParseMode("development")
	require.NoError(t, err)
	require.Equal(t, ModeDevelopment, mode)

	_, err = ParseMode("staging")
	require.Error(t, err)
}

func TestDevelopmentModeNeverUploads(t *testing.T) {
	var calls atomic.Int32
	s := New(func(context.Context) error {
		calls.Add(1)
		return nil
	}, WithMode(ModeDevelopment), WithClock(quartz.NewMock(t)))

	require.NoError(t, s.Run(context.Background()))
	require.Zero(t, calls.Load())
}

func TestRunDoesNotDriftAfterSuspension(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	mClock.Set(at(1, 10, 0, 0))
	trap := mClock.Trap().NewTimer("schedule")
	defer trap.Close()

	var calls atomic.Int32
	pass := func(ctx context.Context) error {
		if calls.Add(1) == 2 {
			// the machine sleeps through two scheduled runs
			mClock.Advance(51 * time.Hour).MustWait(ctx)
		}
		return nil
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	s := New(pass, WithClock(mClock), WithLocation(sgt), WithTimeOfDay(TimeOfDay{}))
	go func() { done <- s.Run(runCtx) }()

	first := trap.MustWait(ctx)
	require.Equal(t, 14*time.Hour, first.Duration)
	first.MustRelease(ctx)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	mClock.Advance(14 * time.Hour).MustWait(ctx)

	second := trap.MustWait(ctx)
	require.Equal(t, int32(2), calls.Load())
	require.Equal(t, 21*time.Hour, second.Duration)
	second.MustRelease(ctx)

	stop()
	require.NoError(t, <-done)
	require.Equal(t, int32(2), calls.Load())
}

func TestRunLogsPassErrorsAndContinues(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mClock := quartz.NewMock(t)
	mClock.Set(at(1, 23, 0, 0))
	trap := mClock.Trap().NewTimer("schedule")
	defer trap.Close()

	var calls atomic.Int32
	pass := func(context.Context) error {
		calls.Add(1)
		return context.DeadlineExceeded
	}

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- New(pass, WithClock(mClock), WithLocation(sgt)).Run(runCtx) }()

	call := trap.MustWait(ctx)
	require.Equal(t, time.Hour, call.Duration)
	call.MustRelease(ctx)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	mClock.Advance(time.Hour).MustWait(ctx)
	trap.MustWait(ctx).MustRelease(ctx)
	require.Equal(t, int32(2), calls.Load())

	stop()
	require.NoError(t, <-done)
}
