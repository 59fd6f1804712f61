package syncsched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testConfig() Config {
	return Config{IntervalMinutes: 60, CooldownSeconds: 300, ScheduledSkipSeconds: 1500}
}

// newTestDispatcher wires a dispatcher whose run-state lookups are backed by
// plain variables instead of the database.
func newTestDispatcher(t *testing.T, pending *atomic.Bool, lastSuccess *time.Time) (*Dispatcher, *atomic.Int32, chan struct{}) {
	t.Helper()
	d, err := NewDispatcher(testConfig(), logrus.New())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	d.hasPending = func(ctx context.Context, source string) (bool, error) {
		return pending.Load(), nil
	}
	d.lastSuccess = func(ctx context.Context, source string) (*time.Time, error) {
		return lastSuccess, nil
	}

	var runs atomic.Int32
	done := make(chan struct{}, 8)
	d.Register("erp", func(ctx context.Context, kind string) error {
		runs.Add(1)
		done <- struct{}{}
		return nil
	})
	return d, &runs, done
}

func waitForRun(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not start")
	}
}

func TestTriggerBackToBackStartsExactlyOneRun(t *testing.T) {
	var pending atomic.Bool
	d, runs, done := newTestDispatcher(t, &pending, nil)

	if err := d.Trigger(context.Background(), "erp", "manual", false); err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	waitForRun(t, done)

	// The worker's pending SyncRun row is the mutex for the run's duration;
	// the stub models it going pending after the first start.
	pending.Store(true)

	err := d.Trigger(context.Background(), "erp", "manual", false)
	if !errors.Is(err, ErrSyncAlreadyRunning) {
		t.Fatalf("second trigger error = %v, want ErrSyncAlreadyRunning", err)
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runner invoked %d times, want 1", got)
	}
}

func TestTriggerCooldownRefusesWithoutForce(t *testing.T) {
	var pending atomic.Bool
	recent := time.Now().Add(-5 * time.Second)
	d, runs, done := newTestDispatcher(t, &pending, &recent)

	err := d.Trigger(context.Background(), "erp", "manual", false)
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("trigger error = %v, want ErrCooldownActive", err)
	}
	var cooldown *CooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("expected *CooldownError, got %T", err)
	}
	if secs := cooldown.RetryAfterSeconds(); secs <= 0 || secs > 300 {
		t.Fatalf("retry hint = %d seconds, want within (0, 300]", secs)
	}
	if got := runs.Load(); got != 0 {
		t.Fatalf("refused trigger invoked the runner %d times", got)
	}

	// force bypasses the cooldown.
	if err := d.Trigger(context.Background(), "erp", "manual", true); err != nil {
		t.Fatalf("forced trigger: %v", err)
	}
	waitForRun(t, done)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runner invoked %d times after force, want 1", got)
	}
}

func TestTriggerElapsedCooldownAllowsRun(t *testing.T) {
	var pending atomic.Bool
	old := time.Now().Add(-10 * time.Minute)
	d, _, done := newTestDispatcher(t, &pending, &old)

	if err := d.Trigger(context.Background(), "erp", "manual", false); err != nil {
		t.Fatalf("trigger after elapsed cooldown: %v", err)
	}
	waitForRun(t, done)
}

func TestTriggerUnknownSource(t *testing.T) {
	var pending atomic.Bool
	d, _, _ := newTestDispatcher(t, &pending, nil)

	if err := d.Trigger(context.Background(), "nonexistent", "manual", false); err == nil {
		t.Fatal("trigger for unregistered source must fail")
	}
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{4500 * time.Millisecond, 5},
		{295 * time.Second, 295},
		{time.Millisecond, 1},
	}
	for _, tc := range cases {
		e := &CooldownError{RetryAfter: tc.d}
		if got := e.RetryAfterSeconds(); got != tc.want {
			t.Fatalf("RetryAfterSeconds(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}
