package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"artifact-sync-service/internal/core/domain"
)

// stubRunner counts cycles and can be made to block until released.
type stubRunner struct {
	cycles  atomic.Int32
	block   chan struct{}
	started chan struct{}
	panics  bool
}

func newStubRunner() *stubRunner {
	return &stubRunner{started: make(chan struct{}, 16)}
}

func (r *stubRunner) RunCycle(_ context.Context, trigger string) *domain.CycleReport {
	r.cycles.Add(1)
	select {
	case r.started <- struct{}{}:
	default:
	}
	if r.block != nil {
		<-r.block
	}
	if r.panics {
		panic("boom")
	}
	return &domain.CycleReport{CycleID: uuid.New(), Trigger: trigger, Outcome: domain.CycleOutcomeIdle}
}

func (r *stubRunner) SyncArtifact(_ context.Context, id uuid.UUID) (*domain.CycleReport, error) {
	r.cycles.Add(1)
	return &domain.CycleReport{CycleID: uuid.New(), Trigger: TriggerArtifact, Candidates: 1}, nil
}

func waitStarted(t *testing.T, r *stubRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not start")
	}
}

func TestSyncScheduler_RunsImmediatelyAndOnTicks(t *testing.T) {
	runner := newStubRunner()
	s := NewSyncScheduler(runner, 20*time.Millisecond)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	waitStarted(t, runner)
	waitStarted(t, runner)
	assert.True(t, s.Status().Running)

	require.NoError(t, s.Stop())
	require.NoError(t, <-errCh)
	assert.GreaterOrEqual(t, runner.cycles.Load(), int32(2))
	assert.False(t, s.Status().Running)
	require.NotNil(t, s.LastReport())
	assert.Equal(t, TriggerSchedule, s.LastReport().Trigger)
}

func TestSyncScheduler_StopsWithContext(t *testing.T) {
	runner := newStubRunner()
	s := NewSyncScheduler(runner, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(ctx) }()
	waitStarted(t, runner)

	status := s.Status()
	require.NotNil(t, status.NextRunAt)
	assert.Equal(t, time.Hour.Milliseconds(), status.IntervalMS)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Nil(t, s.Status().NextRunAt)
}

func TestSyncScheduler_StopWithoutStart(t *testing.T) {
	s := NewSyncScheduler(newStubRunner(), time.Second)
	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestSyncScheduler_DoubleStart(t *testing.T) {
	runner := newStubRunner()
	s := NewSyncScheduler(runner, time.Hour)

	go func() { _ = s.Start(context.Background()) }()
	waitStarted(t, runner)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrSchedulerRunning)
	require.NoError(t, s.Stop())
}

func TestSyncScheduler_DefaultInterval(t *testing.T) {
	s := NewSyncScheduler(newStubRunner(), 0)
	assert.Equal(t, DefaultSyncInterval.Milliseconds(), s.Status().IntervalMS)
	assert.Equal(t, int64(300000), s.Status().IntervalMS)
}

func TestSyncScheduler_TriggerNowWhileBusy(t *testing.T) {
	runner := newStubRunner()
	runner.block = make(chan struct{})
	s := NewSyncScheduler(runner, time.Hour)

	done := make(chan *domain.CycleReport, 1)
	go func() {
		report, _ := s.TriggerNow(context.Background(), TriggerManual)
		done <- report
	}()
	waitStarted(t, runner)
	assert.True(t, s.Status().InFlight)

	_, err := s.TriggerNow(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)
	_, err = s.SyncArtifact(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrCycleInProgress)

	close(runner.block)
	report := <-done
	require.NotNil(t, report)
	assert.Equal(t, TriggerManual, report.Trigger)
	assert.False(t, s.Status().InFlight)
	assert.Equal(t, int32(1), runner.cycles.Load())
}

func TestSyncScheduler_SkipsTickWhileBusy(t *testing.T) {
	runner := newStubRunner()
	runner.block = make(chan struct{})
	s := NewSyncScheduler(runner, 10*time.Millisecond)

	go func() { _, _ = s.TriggerNow(context.Background(), TriggerManual) }()
	waitStarted(t, runner)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start(context.Background()) }()

	// several ticks elapse while the manual cycle holds the guard
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runner.cycles.Load())

	close(runner.block)
	waitStarted(t, runner)
	require.NoError(t, s.Stop())
	require.NoError(t, <-errCh)
}

func TestSyncScheduler_NotLeader(t *testing.T) {
	runner := newStubRunner()
	leader := atomic.Bool{}
	s := NewSyncScheduler(runner, time.Hour, WithLeaderCheck(leader.Load))

	_, err := s.TriggerNow(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, domain.ErrNotLeader)
	_, err = s.SyncArtifact(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotLeader)
	assert.Zero(t, runner.cycles.Load())

	leader.Store(true)
	report, err := s.SyncArtifact(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, TriggerArtifact, report.Trigger)
}

func TestSyncScheduler_RecoversFromPanic(t *testing.T) {
	runner := newStubRunner()
	runner.panics = true
	s := NewSyncScheduler(runner, time.Hour)

	_, err := s.TriggerNow(context.Background(), TriggerManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, s.Status().InFlight)

	runner.panics = false
	report, err := s.TriggerNow(context.Background(), TriggerManual)
	require.NoError(t, err)
	assert.NotNil(t, report)
}

func TestSyncScheduler_RestartWaitsForDrainingCycle(t *testing.T) {
	runner := newStubRunner()
	runner.block = make(chan struct{})
	s := NewSyncScheduler(runner, time.Hour)

	ctx1, cancel1 := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- s.Start(ctx1) }()
	waitStarted(t, runner)

	// leadership lost while the first cycle is still in flight
	cancel1()
	assert.False(t, s.Status().Running)
	assert.True(t, s.Status().InFlight)

	secondErr := make(chan error, 1)
	go func() { secondErr <- s.Start(context.Background()) }()

	select {
	case err := <-secondErr:
		t.Fatalf("second Start returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.block)
	require.NoError(t, <-firstErr)
	waitStarted(t, runner)
	assert.True(t, s.Status().Running)
	assert.Equal(t, int32(2), runner.cycles.Load())

	require.NoError(t, s.Stop())
	require.NoError(t, <-secondErr)
	assert.False(t, s.Status().Running)
}

func TestSyncScheduler_CancelledContextRunsNoCycle(t *testing.T) {
	runner := newStubRunner()
	s := NewSyncScheduler(runner, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, s.Start(ctx))
	assert.Zero(t, runner.cycles.Load())
	assert.False(t, s.Status().Running)
	assert.Nil(t, s.LastReport())
}
