// Package retry builds backoff policies whose waits run on a quartz clock, so
// tests can trap and advance them like any other timer.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
)

// Constant returns a fixed-interval policy that allows attempts tries in total
// and stops once ctx is done. attempts <= 0 retries until ctx is done.
func Constant(ctx context.Context, interval time.Duration, attempts int) backoff.BackOffContext {
	var b backoff.BackOff = backoff.NewConstantBackOff(interval)
	if attempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(attempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Do runs op under b, waiting on clock timers created with tags. notify, when
// set, is called before each wait.
func Do(clock quartz.Clock, b backoff.BackOff, op backoff.Operation, notify backoff.Notify, tags ...string) error {
	return backoff.RetryNotifyWithTimer(op, b, notify, NewTimer(clock, tags...))
}

// NewTimer adapts clock to backoff.Timer. Non-positive waits fire at once.
func NewTimer(clock quartz.Clock, tags ...string) backoff.Timer {
	return &clockTimer{clock: clock, tags: tags}
}

type clockTimer struct {
	clock quartz.Clock
	tags  []string
	timer *quartz.Timer
	c     <-chan time.Time
}

func (t *clockTimer) Start(d time.Duration) {
	t.Stop()
	if d <= 0 {
		fired := make(chan time.Time, 1)
		fired <- t.clock.Now()
		t.timer, t.c = nil, fired
		return
	}
	t.timer = t.clock.NewTimer(d, t.tags...)
	t.c = t.timer.C
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.c
}
