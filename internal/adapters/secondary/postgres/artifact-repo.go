package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"artifact-sync-service/internal/core/domain"
	ports "artifact-sync-service/internal/core/ports/output"
)

const artifactColumns = `
	id, name, version, type, description, file_path, size_bytes, checksum, metadata,
	ci_repository_url, ci_branch, ci_commit_hash, ci_commit_author,
	ci_pipeline_id, ci_build_number, ci_build_status,
	created_at, updated_at, is_synced, last_sync_time`

// pendingCondition selects records that still need to reach the indexer.
const pendingCondition = "(is_synced = FALSE OR last_sync_time IS NULL)"

type artifactRepo struct {
	pool *pgxpool.Pool
}

func NewArtifactRepository(pool *pgxpool.Pool) ports.ArtifactRepository {
	return &artifactRepo{pool: pool}
}

func (r *artifactRepo) Create(ctx context.Context, a *domain.Artifact) error {
	metadataJSON, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO artifact (` + artifactColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	_, err = r.pool.Exec(ctx, query,
		a.ID, a.Name, a.Version, a.Type, a.Description, a.FilePath, a.SizeBytes, a.Checksum, metadataJSON,
		a.CI.RepositoryURL, a.CI.Branch, a.CI.CommitHash, a.CI.CommitAuthor,
		a.CI.PipelineID, a.CI.BuildNumber, a.CI.BuildStatus,
		a.CreatedAt, a.UpdatedAt, a.IsSynced, a.LastSyncTime,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrArtifactConflict
		}
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifact WHERE id = $1`
	a, err := scanArtifact(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
	countQuery := "SELECT COUNT(*) FROM artifact WHERE " + whereClause
	if err := r.pool.QueryRow(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count artifacts: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM artifact
		WHERE %s
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, artifactColumns, whereClause)

	rows, err := r.pool.Query(ctx, query, filter.Limit, filter.Offset)
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
	query := fmt.Sprintf(`
		SELECT %s FROM artifact
		WHERE %s
		ORDER BY created_at, id
	`, artifactColumns, pendingCondition)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list pending artifacts: %w", err)
	}
	return collectArtifacts(rows)
}

// MarkSynced flags every still-pending id as synced in one transaction. Ids
// that were deleted or already synced are skipped and not counted.
func (r *artifactRepo) MarkSynced(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin mark synced: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE artifact
		SET is_synced = TRUE, last_sync_time = $1
		WHERE id = ANY($2) AND ` + pendingCondition
	result, err := tx.Exec(ctx, query, at, ids)
	if err != nil {
		return 0, fmt.Errorf("mark artifacts synced: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit mark synced: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *artifactRepo) CountBySyncState(ctx context.Context) (domain.SyncCounts, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE ` + pendingCondition + `),
			COUNT(*) FILTER (WHERE NOT ` + pendingCondition + `)
		FROM artifact
	`
	var counts domain.SyncCounts
	if err := r.pool.QueryRow(ctx, query).Scan(&counts.Pending, &counts.Synced); err != nil {
		return domain.SyncCounts{}, fmt.Errorf("count artifacts by sync state: %w", err)
	}
	return counts, nil
}

func (r *artifactRepo) Ping(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func collectArtifacts(rows pgx.Rows) ([]*domain.Artifact, error) {
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

func scanArtifact(row pgx.Row) (*domain.Artifact, error) {
	a := &domain.Artifact{}
	var metadataJSON []byte

	err := row.Scan(
		&a.ID, &a.Name, &a.Version, &a.Type, &a.Description, &a.FilePath, &a.SizeBytes, &a.Checksum, &metadataJSON,
		&a.CI.RepositoryURL, &a.CI.Branch, &a.CI.CommitHash, &a.CI.CommitAuthor,
		&a.CI.PipelineID, &a.CI.BuildNumber, &a.CI.BuildStatus,
		&a.CreatedAt, &a.UpdatedAt, &a.IsSynced, &a.LastSyncTime,
	)
	if err != nil {
		return nil, err
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &a.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return a, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}
