package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
	"artifact-sync-service/internal/telemetry"
)

// DefaultBatchSize caps how many artifacts go into one indexer request.
const DefaultBatchSize = 500

// Cycle triggers, recorded on reports and logs.
const (
	TriggerSchedule = "schedule"
	TriggerManual   = "manual"
	TriggerArtifact = "artifact"
	TriggerOnce     = "once"
)

// SyncCoordinator runs reconciliation cycles: select pending artifacts, post
// them to the indexer, interpret the answer and commit what was acknowledged.
//
// A cycle never returns an error. Every failure leaves the affected artifacts
// pending so the next cycle picks them up again.
type SyncCoordinator struct {
	repo      ports.ArtifactRepository
	indexer   ports.IndexerClient
	batchSize int
	now       func() time.Time
	metrics   *telemetry.SyncMetrics
}

// CoordinatorOption configures a SyncCoordinator.
type CoordinatorOption func(*SyncCoordinator)

// WithBatchSize sets the per-request cap. Zero or less sends every candidate
// in a single request.
func WithBatchSize(n int) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.batchSize = n
	}
}

// WithClock overrides the wall clock used to stamp last_sync_time.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *SyncCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSyncMetrics records cycle and batch metrics on m.
func WithSyncMetrics(m *telemetry.SyncMetrics) CoordinatorOption {
	return func(c *SyncCoordinator) {
		c.metrics = m
	}
}

func NewSyncCoordinator(repo ports.ArtifactRepository, indexer ports.IndexerClient, opts ...CoordinatorOption) *SyncCoordinator {
	c := &SyncCoordinator{
		repo:      repo,
		indexer:   indexer,
		batchSize: DefaultBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunCycle performs one reconciliation cycle over every pending artifact.
func (c *SyncCoordinator) RunCycle(ctx context.Context, trigger string) *domain.CycleReport {
	report := c.newReport(trigger)
	logger := cycleLogger(report)
	defer c.finish(ctx, report)

	candidates, err := c.repo.ListPendingSync(ctx)
	if err != nil {
		report.Outcome = domain.CycleOutcomeStoreFailure
		report.Error = fmt.Sprintf("list pending artifacts: %v", err)
		logger.WithError(err).Error("failed to load sync candidates")
		return report
	}

	report.Candidates = len(candidates)
	c.metrics.RecordPending(ctx, len(candidates))
	if len(candidates) == 0 {
		report.Outcome = domain.CycleOutcomeIdle
		logger.Debug("no artifacts to sync")
		return report
	}

	logger.WithField("candidates", len(candidates)).Info("starting artifact sync")
	c.reconcile(ctx, report, logger, domain.SyncBatch(candidates))
	return report
}

// SyncArtifact runs a cycle restricted to one artifact. Lookup problems are
// returned to the caller; everything after the lookup follows cycle rules and
// ends up in the report.
func (c *SyncCoordinator) SyncArtifact(ctx context.Context, id uuid.UUID) (*domain.CycleReport, error) {
	artifact, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !artifact.IsCandidate() {
		return nil, domain.ErrArtifactAlreadySynced
	}

	report := c.newReport(TriggerArtifact)
	logger := cycleLogger(report).WithField("artifact_id", id)
	defer c.finish(ctx, report)

	report.Candidates = 1
	logger.Info("starting single artifact sync")
	c.reconcile(ctx, report, logger, domain.SyncBatch{artifact})
	return report, nil
}

// reconcile sends the candidates chunk by chunk, in order. Each chunk is
// interpreted and committed before the next one is sent. The first chunk that
// aborts (transport, malformed body, store) ends the cycle; earlier commits stand.
func (c *SyncCoordinator) reconcile(ctx context.Context, report *domain.CycleReport, logger *log.Entry, candidates domain.SyncBatch) {
	report.Outcome = domain.CycleOutcomeCompleted

	chunks := candidates.Chunk(c.batchSize)
	for i, chunk := range chunks {
		chunkLogger := logger.WithFields(log.Fields{
			"batch":      i + 1,
			"batches":    len(chunks),
			"batch_size": len(chunk),
		})

		report.Batches++
		report.Sent += len(chunk)
		resp, err := c.indexer.PostBatch(ctx, chunk)
		interp := InterpretResponse(resp, err, len(chunk))

		switch interp.Kind {
		case InterpretationTransportFailure:
			report.Outcome = domain.CycleOutcomeTransportFailure
			report.Error = interp.Reason
			chunkLogger.WithFields(log.Fields{
				"status":   interp.StatusCode,
				"endpoint": c.indexer.Endpoint(),
				"error":    interp.Reason,
			}).Error("indexer unreachable or failing, artifacts stay pending")
			c.leaveUnresolved(report, candidates, i, len(chunks))
			return

		case InterpretationMalformed:
			report.Outcome = domain.CycleOutcomeMalformedResponse
			report.Error = interp.Reason
			chunkLogger.WithFields(log.Fields{
				"status": interp.StatusCode,
				"error":  interp.Reason,
			}).Error("unexpected response format from indexer, artifacts stay pending")
			c.leaveUnresolved(report, candidates, i, len(chunks))
			return
		}

		if !c.commitChunk(ctx, report, chunkLogger, chunk, interp) {
			c.leaveUnresolved(report, candidates, i+1, len(chunks))
			return
		}
	}
}

// commitChunk persists the successes of one interpreted chunk. It reports
// false when the store rejected the commit.
func (c *SyncCoordinator) commitChunk(ctx context.Context, report *domain.CycleReport, logger *log.Entry, chunk domain.SyncBatch, interp Interpretation) bool {
	succeeded := make([]uuid.UUID, 0, len(interp.Outcomes))
	for pos, outcome := range interp.Outcomes {
		artifact := chunk[pos]
		if outcome.ArtifactID != "" && outcome.ArtifactID != artifact.ID.String() {
			logger.WithFields(log.Fields{
				"position":    pos,
				"artifact_id": artifact.ID,
				"reported_id": outcome.ArtifactID,
			}).Warn("indexer result id does not match batch position, using position")
		}
		if outcome.Success {
			succeeded = append(succeeded, artifact.ID)
			continue
		}
		report.Failed++
		logger.WithFields(log.Fields{
			"position":    pos,
			"artifact_id": artifact.ID,
			"error":       outcome.Error,
		}).Warn("artifact failed to sync, will retry next cycle")
	}

	if unresolved := interp.Unresolved(len(chunk)); unresolved > 0 {
		report.Unresolved += unresolved
		logger.WithFields(log.Fields{
			"returned":   interp.Returned,
			"unresolved": unresolved,
		}).Warn("indexer returned fewer results than sent, trailing artifacts stay pending")
	}

	if len(succeeded) == 0 {
		return true
	}

	at := c.now()
	committed, err := c.repo.MarkSynced(ctx, succeeded, at)
	if err != nil {
		report.Outcome = domain.CycleOutcomeStoreFailure
		report.Error = fmt.Sprintf("mark artifacts synced: %v", err)
		report.Unresolved += len(succeeded)
		logger.WithError(err).WithField("acknowledged", len(succeeded)).
			Error("failed to persist sync state, artifacts will be resent next cycle")
		return false
	}

	report.Synced += len(succeeded)
	report.Committed += committed
	if committed < int64(len(succeeded)) {
		logger.WithFields(log.Fields{
			"acknowledged": len(succeeded),
			"committed":    committed,
		}).Warn("some acknowledged artifacts were not updated (deleted or already synced)")
	}
	return true
}

// leaveUnresolved accounts for every candidate in chunks [from, total) as
// unresolved. Chunk boundaries are recomputed from the batch size.
func (c *SyncCoordinator) leaveUnresolved(report *domain.CycleReport, candidates domain.SyncBatch, from, total int) {
	if from >= total {
		return
	}
	size := c.batchSize
	if size <= 0 {
		size = len(candidates)
	}
	start := from * size
	if start < len(candidates) {
		report.Unresolved += len(candidates) - start
	}
}

func (c *SyncCoordinator) newReport(trigger string) *domain.CycleReport {
	return &domain.CycleReport{
		CycleID:   uuid.New(),
		Trigger:   trigger,
		StartedAt: c.now(),
	}
}

func (c *SyncCoordinator) finish(ctx context.Context, report *domain.CycleReport) {
	report.FinishedAt = c.now()

	c.metrics.RecordCycle(ctx, string(report.Outcome), report.Duration())
	c.metrics.RecordItems(ctx, telemetry.ItemResultSynced, report.Synced)
	c.metrics.RecordItems(ctx, telemetry.ItemResultFailed, report.Failed)
	c.metrics.RecordItems(ctx, telemetry.ItemResultUnresolved, report.Unresolved)

	if report.Outcome == domain.CycleOutcomeIdle {
		return
	}
	entry := cycleLogger(report).WithFields(log.Fields{
		"outcome":     report.Outcome,
		"candidates":  report.Candidates,
		"synced":      report.Synced,
		"failed":      report.Failed,
		"unresolved":  report.Unresolved,
		"duration_ms": report.Duration().Milliseconds(),
	})
	if report.Aborted() {
		entry.Warn("sync cycle aborted")
		return
	}
	entry.Infof("synced %d/%d artifacts", report.Synced, report.Candidates)
}

func cycleLogger(report *domain.CycleReport) *log.Entry {
	return log.WithFields(log.Fields{
		"cycle_id": report.CycleID,
		"trigger":  report.Trigger,
	})
}
