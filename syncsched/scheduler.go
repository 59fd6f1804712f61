package syncsched

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/printforge/printflow_backend/config"
	"github.com/printforge/printflow_backend/models"
	"github.com/printforge/printflow_backend/utils"
)

// Sync dispatch: one entry point shared by the HTTP handlers and the
// periodic ticker. Overlap prevention and the cooldown/force protocol live
// here, not in the workers.

var ErrSyncAlreadyRunning = errors.New("sync already running")
var ErrCooldownActive = errors.New("sync requested too soon")

// CooldownError reports the informational retry-after hint. It unwraps to
// ErrCooldownActive so callers can test it with errors.Is.
type CooldownError struct {
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("sync requested too soon, retry after %d seconds", e.RetryAfterSeconds())
}

// RetryAfterSeconds is the hint in whole seconds, rounded up so a caller
// sleeping that long always clears the cooldown.
func (e *CooldownError) RetryAfterSeconds() int {
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func (e *CooldownError) Unwrap() error { return ErrCooldownActive }

// RunFunc executes one sync run against a source. kind is manual or scheduled.
type RunFunc func(ctx context.Context, kind string) error

type Dispatcher struct {
	cfg    Config
	logger *logrus.Logger

	mu        sync.Mutex
	runners   map[string]RunFunc
	cancels   map[string]context.CancelFunc
	createdAt time.Time

	// Run-state lookups; the defaults hit the database, tests replace them.
	hasPending  func(ctx context.Context, source string) (bool, error)
	lastSuccess func(ctx context.Context, source string) (*time.Time, error)
}

func NewDispatcher(cfg Config, logger *logrus.Logger) (*Dispatcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		cfg:         cfg,
		logger:      logger,
		runners:     map[string]RunFunc{},
		cancels:     map[string]context.CancelFunc{},
		createdAt:   time.Now(),
		hasPending:  models.HasPendingSyncRun,
		lastSuccess: models.LastSuccessfulSyncAt,
	}, nil
}

func (d *Dispatcher) Register(source string, run RunFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runners[source] = run
}

// Trigger starts a sync for the source unless the overlap or cooldown rules
// refuse it. The run itself executes on a detached context so an HTTP caller
// going away does not kill it; Cancel stops it.
func (d *Dispatcher) Trigger(ctx context.Context, source string, kind string, force bool) error {
	d.mu.Lock()
	run, ok := d.runners[source]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("no sync runner registered for source %q", source)
	}

	// Short redis lock guards the pending-check-and-start race; the pending
	// SyncRun row is the real mutex for the run's duration.
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "sync:trigger:"+source, 30*time.Second, nil)
		if err == redislock.ErrNotObtained {
			return ErrSyncAlreadyRunning
		} else if err != nil {
			return err
		}
		defer func() { _ = lock.Release(ctx) }()
	}

	pending, err := d.hasPending(ctx, source)
	if err != nil {
		return err
	}
	if pending {
		return ErrSyncAlreadyRunning
	}

	if !force {
		last, err := d.lastSuccess(ctx, source)
		if err != nil {
			return err
		}
		cooldown := time.Duration(d.cfg.CooldownSeconds) * time.Second
		if last != nil && time.Since(*last) < cooldown {
			return &CooldownError{RetryAfter: cooldown - time.Since(*last)}
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	runCtx = utils.SetTriggeredByInContext(runCtx, kind)
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		runCtx = utils.SetCorrelationIdInContext(runCtx, cid)
	}
	d.mu.Lock()
	d.cancels[source] = cancel
	d.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			d.mu.Lock()
			delete(d.cancels, source)
			d.mu.Unlock()
		}()
		if err := run(runCtx, kind); err != nil {
			config.LogError(d.logger, "syncsched", "Trigger", "sync run failed", source, err)
		}
	}()
	return nil
}

// Cancel asks the in-flight run of the source to stop at its next
// between-items checkpoint. No-op when nothing runs.
func (d *Dispatcher) Cancel(source string) {
	d.mu.Lock()
	cancel := d.cancels[source]
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Start drives the periodic trigger until ctx is done. Each tick posts a
// scheduled sync for every registered source through the same entry point
// the on-demand API uses.
func (d *Dispatcher) Start(ctx context.Context) {
	interval := time.Duration(d.cfg.IntervalMinutes) * time.Minute
	for {
		next := d.nextRunTime(ctx, interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		for _, source := range d.sources() {
			if d.shouldSkipScheduled(ctx, source) {
				continue
			}
			err := d.Trigger(ctx, source, models.SyncKindScheduled, false)
			if err != nil && !errors.Is(err, ErrCooldownActive) && !errors.Is(err, ErrSyncAlreadyRunning) {
				config.LogError(d.logger, "syncsched", "Start", "scheduled trigger failed", source, err)
			}
		}
	}
}

func (d *Dispatcher) sources() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.runners))
	for source := range d.runners {
		out = append(out, source)
	}
	return out
}

// nextRunTime computes the later of the last scheduled run and scheduler
// creation, plus the interval.
func (d *Dispatcher) nextRunTime(ctx context.Context, interval time.Duration) time.Time {
	base := d.createdAt
	for _, source := range d.sources() {
		last, err := models.LastSyncStartedAt(ctx, source)
		if err == nil && last != nil && last.After(base) {
			base = *last
		}
	}
	next := base.Add(interval)
	if now := time.Now(); next.Before(now) {
		return now
	}
	return next
}

func (d *Dispatcher) shouldSkipScheduled(ctx context.Context, source string) bool {
	last, err := models.LastSyncStartedAt(ctx, source)
	if err != nil || last == nil {
		return false
	}
	return time.Since(*last) < time.Duration(d.cfg.ScheduledSkipSeconds)*time.Second
}
