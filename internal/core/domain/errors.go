package domain

import "errors"

// ============================================================================
// Artifact Store Errors
// ============================================================================

var (
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrArtifactConflict  = errors.New("artifact with this name and version already exists")
	ErrInvalidArtifactID = errors.New("invalid artifact id")
	ErrInvalidSyncState  = errors.New("sync state must be pending or synced")
	ErrStoreUnavailable  = errors.New("artifact store unavailable")
)

// ============================================================================
// Sync Errors
// ============================================================================

var (
	ErrCycleInProgress       = errors.New("a sync cycle is already in progress")
	ErrArtifactAlreadySynced = errors.New("artifact is already synced")
	ErrSchedulerRunning      = errors.New("sync scheduler is already running")
	ErrNotLeader             = errors.New("this replica does not hold the sync lease")
)
