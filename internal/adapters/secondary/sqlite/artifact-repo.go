package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const artifactColumns = `
	id, name, version, type, description, file_path, size_bytes, checksum, metadata,
	ci_repository_url, ci_branch, ci_commit_hash, ci_commit_author,
	ci_pipeline_id, ci_build_number, ci_build_status,
	created_at, updated_at, is_synced, last_sync_time`

const pendingCondition = "(is_synced = 0 OR last_sync_time IS NULL)"

type artifactRepo struct {
	db *sql.DB
}

func NewArtifactRepository(db *sql.DB) ports.ArtifactRepository {
	return &artifactRepo{db: db}
}

func (r *artifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	metadata := a.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := `INSERT INTO artifact (` + artifactColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	_, err = r.db.ExecContext(ctx, query,
		a.ID.String(), a.Name, a.Version, a.Type, a.Description, a.FilePath, a.SizeBytes, a.Checksum, string(metadataJSON),
		a.CI.RepositoryURL, a.CI.Branch, a.CI.CommitHash, a.CI.CommitAuthor,
		a.CI.PipelineID, a.CI.BuildNumber, a.CI.BuildStatus,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt), a.IsSynced, formatTimePtr(a.LastSyncTime),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.ErrArtifactConflict
		}
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact WHERE id = ?`
	a, err := scanArtifact(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrArtifactNotFound
		}
		return nil, fmt.Errorf("get artifact by id: %w", err)
	}
	return a, nil
}

func (r *artifactRepo) List(ctx context.Context, filter ports.ArtifactListFilter) ([]*domain.Artifact, int, error) {
	whereClause := "1=1"
	switch filter.SyncState {
	case domain.SyncStatePending:
		whereClause = pendingCondition
	case domain.SyncStateSynced:
		whereClause = "NOT " + pendingCondition
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artifact WHERE "+whereClause).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artifacts: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT %s FROM artifact WHERE %s
		ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, artifactColumns, whereClause)
	rows, err := r.db.QueryContext(ctx, query, limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list artifacts: %w", err)
	}
	artifacts, err := collectArtifacts(rows)
	if err != nil {
		return nil, 0, err
	}
	return artifacts, total, nil
}

func (r *artifactRepo) ListPendingSync(ctx context.Context) ([]*domain.Artifact, error) {
	query := fmt.Sprintf(`SELECT %s FROM artifact WHERE %s ORDER BY created_at, id`,
		artifactColumns, pendingCondition)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending artifacts: %w", err)
	}
	return collectArtifacts(rows)
}

// markSyncedChunk bounds the ids bound per UPDATE, well under sqlite's host
// parameter limit.
const markSyncedChunk = 500

// MarkSynced flags every still-pending id as synced in one transaction. Long
// id lists are split into several statements inside that transaction.
func (r *artifactRepo) MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin mark synced: %w", err)
	}
	defer tx.Rollback()

	syncedAt := formatTime(at)
	var total int64
	for start := 0; start < len(ids); start += markSyncedChunk {
		end := min(start+markSyncedChunk, len(ids))
		n, err := markSyncedTx(ctx, tx, ids[start:end], syncedAt)
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit mark synced: %w", err)
	}
	return total, nil
}

func markSyncedTx(ctx context.Context, tx *sql.Tx, ids []uuid.UUID, syncedAt string) (int64, error) {
	args := make([]any, 0, len(ids)+1)
	args = append(args, syncedAt)
	for _, id := range ids {
		args = append(args, id.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")

	query := fmt.Sprintf(`UPDATE artifact SET is_synced = 1, last_sync_time = ?
		WHERE id IN (%s) AND %s`, placeholders, pendingCondition)
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("mark artifacts synced: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark artifacts synced: %w", err)
	}
	return n, nil
}

func (r *artifactRepo) CountBySyncState(ctx context.Context) (domain.SyncCounts, error) {
	query := `SELECT
		COALESCE(SUM(CASE WHEN ` + pendingCondition + ` THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN ` + pendingCondition + ` THEN 0 ELSE 1 END), 0)
		FROM artifact`
	var counts domain.SyncCounts
	if err := r.db.QueryRowContext(ctx, query).Scan(&counts.Pending, &counts.Synced); err != nil {
		return domain.SyncCounts{}, fmt.Errorf("count artifacts by sync state: %w", err)
	}
	return counts, nil
}

func (r *artifactRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func collectArtifacts(rows *sql.Rows) ([]*domain.Artifact, error) {
	defer rows.Close()

	artifacts := []*domain.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact row: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifact rows: %w", err)
	}
	return artifacts, nil
}

func scanArtifact(row rowScanner) (*domain.Artifact, error) {
	var (
		a                    domain.Artifact
		id, metadataJSON     string
		createdAt, updatedAt string
		sizeBytes            sql.NullInt64
		lastSync             sql.NullString
	)
	err := row.Scan(
		&id, &a.Name, &a.Version, &a.Type, &a.Description, &a.FilePath, &sizeBytes, &a.Checksum, &metadataJSON,
		&a.CI.RepositoryURL, &a.CI.Branch, &a.CI.CommitHash, &a.CI.CommitAuthor,
		&a.CI.PipelineID, &a.CI.BuildNumber, &a.CI.BuildStatus,
		&createdAt, &updatedAt, &a.IsSynced, &lastSync,
	)
	if err != nil {
		return nil, err
	}

	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse artifact id: %w", err)
	}
	if sizeBytes.Valid {
		a.SizeBytes = &sizeBytes.Int64
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if a.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if lastSync.Valid {
		t, err := time.Parse(timeLayout, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_sync_time: %w", err)
		}
		a.LastSyncTime = &t
	}
	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
