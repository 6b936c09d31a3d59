package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/redis"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
var ErrSchedulerAlreadyRunning = errors.New("scheduler already running")

const (
	// DefaultInterval is the default interval between reconciliation passes
	DefaultInterval = 5 * time.Minute

	// DefaultLockTTL is the default TTL for the pass lock
	DefaultLockTTL = 10 * time.Minute

	// lockKey guards the reconciliation pass across instances
	lockKey = "sync:pass"
)

// PassRunner runs one reconciliation pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*models.SyncRun, error)
}

// Config holds configuration for the scheduler
type Config struct {
	// Interval is how often a reconciliation pass is attempted
	Interval time.Duration

	// LockTTL is how long the pass lock is held before it self-expires
	LockTTL time.Duration
}

// Scheduler triggers reconciliation passes on an interval. A distributed
// lock ensures only one instance runs a pass at a time; losing the lock race
// is a normal outcome, not an error.
type Scheduler struct {
	runner PassRunner
	locker *redis.Locker
	config Config
	logger ectologger.Logger

	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(runner PassRunner, locker *redis.Locker, config Config, logger ectologger.Logger) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}

	return &Scheduler{
		runner:   runner,
		locker:   locker,
		config:   config,
		logger:   logger,
		stopCh:   make(chan struct{}),
		stoppedC: make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: interval=%s lock_ttl=%s", s.config.Interval, s.config.LockTTL)

	go s.pollLoop(ctx)
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(s.stopCh)

	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.runPass(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.runPass(ctx)
		}
	}
}

func (s *Scheduler) runPass(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "scheduler.Scheduler.runPass")
	defer span.End()

	lock, err := s.locker.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			s.logger.WithContext(ctx).Debug("Another instance holds the pass lock; skipping")
			return
		}
		s.logger.WithContext(ctx).WithError(err).Error("Failed to acquire pass lock")
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil && !errors.Is(err, redis.ErrLockNotHeld) {
			s.logger.WithContext(ctx).WithError(err).Warn("Failed to release pass lock")
		}
	}()

	start := time.Now()
	run, err := s.runner.RunPass(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Reconciliation pass failed")
		return
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":   run.ID,
		"created":  run.Created,
		"updated":  run.Updated,
		"skipped":  run.Skipped,
		"failed":   run.Failed,
		"duration": time.Since(start),
	}).Info("Reconciliation pass completed")
}
