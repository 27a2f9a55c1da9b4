package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"artifact-sync-service/internal/core/domain"
	"artifact-sync-service/internal/telemetry"
)

// DefaultSyncInterval is used when no positive interval is configured.
const DefaultSyncInterval = 300000 * time.Millisecond

// CycleRunner is the part of the coordinator the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger string) *domain.CycleReport
	SyncArtifact(ctx context.Context, id uuid.UUID) (*domain.CycleReport, error)
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Running    bool                `json:"running"`
	InFlight   bool                `json:"in_flight"`
	IntervalMS int64               `json:"interval_ms"`
	NextRunAt  *time.Time          `json:"next_run_at,omitempty"`
	LastCycle  *domain.CycleReport `json:"last_cycle,omitempty"`
}

// SyncScheduler owns the recurring reconciliation timer. At most one cycle
// runs at a time in this process, whether it was started by the timer or by
// a manual trigger; a tick that finds a cycle in flight is skipped.
type SyncScheduler struct {
	runner   CycleRunner
	interval time.Duration
	metrics  *telemetry.SyncMetrics
	isLeader func() bool

	guard    *semaphore.Weighted
	inFlight atomic.Bool

	mu        sync.Mutex
	schedCtx  context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	nextRunAt time.Time
	last      *domain.CycleReport
}

type SchedulerOption func(*SyncScheduler)

func WithSchedulerMetrics(m *telemetry.SyncMetrics) SchedulerOption {
	return func(s *SyncScheduler) {
		s.metrics = m
	}
}

// WithLeaderCheck makes manual triggers fail with ErrNotLeader while check
// reports false. Scheduled ticks are gated by whoever calls Start.
func WithLeaderCheck(check func() bool) SchedulerOption {
	return func(s *SyncScheduler) {
		s.isLeader = check
	}
}

func NewSyncScheduler(runner CycleRunner, interval time.Duration, opts ...SchedulerOption) *SyncScheduler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	s := &SyncScheduler{
		runner:   runner,
		interval: interval,
		guard:    semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs a cycle immediately and then on every interval tick. It blocks
// until ctx is cancelled or Stop is called. A cycle in flight when the
// scheduler stops is allowed to finish. If a previous run is still draining
// its last cycle, Start waits for it to exit before taking over.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	for s.cancel != nil {
		if s.schedCtx.Err() == nil {
			s.mu.Unlock()
			return domain.ErrSchedulerRunning
		}
		prev := s.done
		s.mu.Unlock()
		select {
		case <-prev:
		case <-ctx.Done():
			return nil
		}
		s.mu.Lock()
	}
	schedCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.schedCtx = schedCtx
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.schedCtx = nil
		s.cancel = nil
		s.done = nil
		s.nextRunAt = time.Time{}
		s.mu.Unlock()
		cancel()
		close(done)
		log.Info("sync scheduler stopped")
	}()

	log.WithField("interval_ms", s.interval.Milliseconds()).Info("sync scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// In-flight cycles are not cancelled; the transport timeout bounds them.
	cycleCtx := context.WithoutCancel(schedCtx)

	if schedCtx.Err() != nil {
		return nil
	}
	s.tick(cycleCtx)
	for {
		select {
		case <-ticker.C:
			s.tick(cycleCtx)
		case <-schedCtx.Done():
			return nil
		}
	}
}

// Stop cancels the timer loop and waits for it to exit. It is safe to call
// when the scheduler is not running.
func (s *SyncScheduler) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// TriggerNow runs a full cycle right away, or fails with ErrCycleInProgress.
func (s *SyncScheduler) TriggerNow(ctx context.Context, trigger string) (*domain.CycleReport, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}
	return s.runExclusive(func() (*domain.CycleReport, error) {
		return s.runner.RunCycle(ctx, trigger), nil
	})
}

// SyncArtifact runs a single-artifact cycle under the same guard as TriggerNow.
func (s *SyncScheduler) SyncArtifact(ctx context.Context, id uuid.UUID) (*domain.CycleReport, error) {
	if err := s.checkLeader(); err != nil {
		return nil, err
	}
	return s.runExclusive(func() (*domain.CycleReport, error) {
		return s.runner.SyncArtifact(ctx, id)
	})
}

func (s *SyncScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStatus{
		Running:    s.cancel != nil && s.schedCtx.Err() == nil,
		InFlight:   s.inFlight.Load(),
		IntervalMS: s.interval.Milliseconds(),
		LastCycle:  s.last,
	}
	if !s.nextRunAt.IsZero() {
		next := s.nextRunAt
		st.NextRunAt = &next
	}
	return st
}

// LastReport returns the report of the most recent finished cycle, if any.
func (s *SyncScheduler) LastReport() *domain.CycleReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *SyncScheduler) tick(ctx context.Context) {
	started := time.Now()
	_, err := s.runExclusive(func() (*domain.CycleReport, error) {
		return s.runner.RunCycle(ctx, TriggerSchedule), nil
	})
	if errors.Is(err, domain.ErrCycleInProgress) {
		s.metrics.RecordSkippedCycle(ctx, TriggerSchedule)
		log.Info("previous sync cycle still running, skipping scheduled tick")
	}

	s.mu.Lock()
	s.nextRunAt = started.Add(s.interval)
	s.mu.Unlock()
}

// runExclusive runs fn if no other cycle holds the guard. A panic inside fn
// is logged and swallowed so the timer keeps running.
func (s *SyncScheduler) runExclusive(fn func() (*domain.CycleReport, error)) (report *domain.CycleReport, err error) {
	if !s.guard.TryAcquire(1) {
		return nil, domain.ErrCycleInProgress
	}
	s.inFlight.Store(true)
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("sync cycle panicked")
			report, err = nil, fmt.Errorf("sync cycle panicked: %v", r)
		}
		s.inFlight.Store(false)
		s.guard.Release(1)
	}()

	report, err = fn()
	if report != nil {
		s.mu.Lock()
		s.last = report
		s.mu.Unlock()
	}
	return report, err
}

func (s *SyncScheduler) checkLeader() error {
	if s.isLeader != nil && !s.isLeader() {
		return domain.ErrNotLeader
	}
	return nil
}
