// Package scheduler keeps catalog sync runs from overlapping and triggers
// them on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"voucher-storefront/internal/model"
	"voucher-storefront/internal/service"
	"voucher-storefront/pkg/logger"
)

// Syncer runs one catalog reconciliation
type Syncer interface {
	Sync(ctx context.Context) (model.SyncStats, error)
}

// Guard admits at most one sync run at a time in this process
type Guard struct {
	syncer Syncer
	mu     sync.Mutex

	lastMu  sync.RWMutex
	lastRun *RunResult
}

// RunResult describes the most recent finished run
type RunResult struct {
	Stats      model.SyncStats `json:"stats"`
	Error      string          `json:"error,omitempty"`
	FinishedAt time.Time       `json:"finished_at"`
}

// NewGuard wraps syncer with a single-run lock
func NewGuard(syncer Syncer) *Guard {
	return &Guard{syncer: syncer}
}

// Sync runs the wrapped syncer, or fails with service.ErrSyncInProgress
// when another run holds the lock
func (g *Guard) Sync(ctx context.Context) (model.SyncStats, error) {
	if !g.mu.TryLock() {
		return model.SyncStats{}, service.ErrSyncInProgress
	}
	defer g.mu.Unlock()

	stats, err := g.syncer.Sync(ctx)

	result := &RunResult{Stats: stats, FinishedAt: time.Now()}
	if err != nil {
		result.Error = err.Error()
	}
	g.lastMu.Lock()
	g.lastRun = result
	g.lastMu.Unlock()

	return stats, err
}

// LastRun returns the most recent finished run, or nil
func (g *Guard) LastRun() *RunResult {
	g.lastMu.RLock()
	defer g.lastMu.RUnlock()
	return g.lastRun
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler triggers sync runs on a cron spec
type Scheduler struct {
	cron    *cron.Cron
	guard   *Guard
	timeout time.Duration
	logger  *logger.Logger
}

// New creates a scheduler running guard on spec. Each run is bounded by
// timeout when it is positive.
func New(spec string, guard *Guard, timeout time.Duration, log *logger.Logger) (*Scheduler, error) {
	s := &Scheduler{
		guard:   guard,
		timeout: timeout,
		logger:  log,
	}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Sync scheduler started", "next_run", s.NextRun())
}

// Stop stops scheduling and waits for a running job to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Sync scheduler stop timed out")
	}
}

// NextRun returns when the next sync is due
func (s *Scheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stats, err := s.guard.Sync(ctx)
	if err != nil {
		s.logger.Error("Scheduled catalog sync failed", "error", err)
		return
	}
	s.logger.Info("Scheduled catalog sync finished",
		"added", stats.Added,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"errors", stats.Errors,
	)
}

// cronLogger adapts Logger to cron.Logger
type cronLogger struct {
	l *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
