package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema for the resource_records table. Applied by EnsureSchema.
const schema = `
CREATE TABLE IF NOT EXISTS resource_records (
	project_id      TEXT PRIMARY KEY,
	project_type    TEXT NOT NULL,
	status          TEXT NOT NULL,
	bound_tenant_id TEXT NOT NULL DEFAULT '',
	owner_user_id   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	last_used_at    TIMESTAMPTZ NOT NULL,
	deployed_at     TIMESTAMPTZ,
	recycled_at     TIMESTAMPTZ,
	metadata        JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS resource_records_status_idx ON resource_records (status);
`

// PostgresStore implements Store on a pgx connection pool.
//
// MarkInUse relies on a single conditional UPDATE, so the compare-and-set
// happens inside Postgres and holds across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. The caller owns the pool's
// lifecycle.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the resource_records table if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensuring resource_records schema: %w", err)
	}
	return nil
}

const recordColumns = `project_id, project_type, status, bound_tenant_id, owner_user_id,
	created_at, last_used_at, deployed_at, recycled_at, metadata`

func scanRecord(row pgx.Row) (*ResourceRecord, error) {
	var (
		rec      ResourceRecord
		metadata []byte
	)
	err := row.Scan(&rec.ProjectID, &rec.Type, &rec.Status, &rec.BoundTenantID,
		&rec.OwnerUserID, &rec.CreatedAt, &rec.LastUsedAt, &rec.DeployedAt,
		&rec.RecycledAt, &metadata)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decoding record metadata: %w", err)
		}
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}
	return &rec, nil
}

// Register creates a new record in available state.
func (s *PostgresStore) Register(ctx context.Context, projectID string, typ ProjectType, metadata map[string]string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	if !typ.Valid() {
		return nil, fmt.Errorf("invalid project type %q", typ)
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encoding record metadata: %w", err)
	}

	now := time.Now()
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO resource_records (project_id, project_type, status, created_at, last_used_at, metadata)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (project_id) DO NOTHING`,
		projectID, typ, StatusAvailable, now, meta)
	if err != nil {
		return nil, fmt.Errorf("registering %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, projectID)
	}
	return s.Get(ctx, projectID)
}

// Get retrieves a record by project ID.
func (s *PostgresStore) Get(ctx context.Context, projectID string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}

	row := s.pool.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM resource_records WHERE project_id = $1`, projectID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", projectID, err)
	}
	return rec, nil
}

// List returns records matching the filter plus full-store counts.
func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]*ResourceRecord, Summary, error) {
	var summary Summary
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM resource_records GROUP BY status`)
	if err != nil {
		return nil, summary, fmt.Errorf("counting records: %w", err)
	}
	for rows.Next() {
		var (
			status Status
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, summary, fmt.Errorf("scanning counts: %w", err)
		}
		for i := 0; i < n; i++ {
			summary.Add(status)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, summary, fmt.Errorf("counting records: %w", err)
	}

	query := `SELECT ` + recordColumns + ` FROM resource_records WHERE 1=1`
	args := []any{}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND project_type = $%d", len(args))
	}
	query += ` ORDER BY last_used_at ASC`

	rows, err = s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, summary, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []*ResourceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, summary, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, summary, fmt.Errorf("listing records: %w", err)
	}
	return out, summary, nil
}

// MarkInUse atomically claims an available record for a tenant. The WHERE
// clause is the compare half of the compare-and-set; zero rows affected
// means another claim won or the record is missing.
func (s *PostgresStore) MarkInUse(ctx context.Context, projectID, tenantID, ownerUserID string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}
	if tenantID == "" {
		return nil, ErrEmptyTenantID
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE resource_records
		SET status = $1, bound_tenant_id = $2, owner_user_id = $3, last_used_at = now()
		WHERE project_id = $4 AND status = $5 AND (bound_tenant_id = '' OR bound_tenant_id = $2)`,
		StatusInUse, tenantID, ownerUserID, projectID, StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("claiming %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, projectID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s is not available for %s", ErrConflict, projectID, tenantID)
	}
	return s.Get(ctx, projectID)
}

// MarkRecycling moves an in-use record into recycling.
func (s *PostgresStore) MarkRecycling(ctx context.Context, projectID string) (*ResourceRecord, error) {
	return s.transition(ctx, projectID, StatusRecycling, `
		UPDATE resource_records SET status = $1, last_used_at = now()
		WHERE project_id = $2 AND status = ANY($3)`)
}

// MarkAvailable returns a record to the pool and clears its binding.
func (s *PostgresStore) MarkAvailable(ctx context.Context, projectID string) (*ResourceRecord, error) {
	return s.transition(ctx, projectID, StatusAvailable, `
		UPDATE resource_records
		SET status = $1, bound_tenant_id = '', owner_user_id = '', last_used_at = now(),
		    recycled_at = CASE WHEN status = 'recycling' THEN now() ELSE recycled_at END
		WHERE project_id = $2 AND status = ANY($3)`)
}

// MarkMaintenance withholds a record from allocation.
func (s *PostgresStore) MarkMaintenance(ctx context.Context, projectID, reason string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}

	from := fromStatuses(StatusMaintenance)
	tag, err := s.pool.Exec(ctx, `
		UPDATE resource_records
		SET status = $1, last_used_at = now(),
		    metadata = metadata || jsonb_build_object('maintenance_reason', $2::text)
		WHERE project_id = $3 AND status = ANY($4)`,
		StatusMaintenance, reason, projectID, from)
	if err != nil {
		return nil, fmt.Errorf("marking %s maintenance: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.transitionFailure(ctx, projectID, StatusMaintenance)
	}
	return s.Get(ctx, projectID)
}

func (s *PostgresStore) transition(ctx context.Context, projectID string, to Status, query string) (*ResourceRecord, error) {
	if projectID == "" {
		return nil, ErrEmptyProjectID
	}

	tag, err := s.pool.Exec(ctx, query, to, projectID, fromStatuses(to))
	if err != nil {
		return nil, fmt.Errorf("transitioning %s to %s: %w", projectID, to, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.transitionFailure(ctx, projectID, to)
	}
	return s.Get(ctx, projectID)
}

// transitionFailure distinguishes a missing record from an off-table
// transition after a zero-row UPDATE.
func (s *PostgresStore) transitionFailure(ctx context.Context, projectID string, to Status) error {
	rec, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, rec.Status, to, projectID)
}

// fromStatuses lists the statuses allowed to transition into `to`,
// mirroring the in-memory transition table.
func fromStatuses(to Status) []string {
	var from []string
	for src, dsts := range transitions {
		for _, dst := range dsts {
			if dst == to {
				from = append(from, string(src))
			}
		}
	}
	return from
}

// SetDeployed stamps DeployedAt on a record.
func (s *PostgresStore) SetDeployed(ctx context.Context, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE resource_records SET deployed_at = now(), last_used_at = now()
		WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("stamping deploy on %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return nil
}

// Delete removes a record entirely.
func (s *PostgresStore) Delete(ctx context.Context, projectID string) error {
	if projectID == "" {
		return ErrEmptyProjectID
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM resource_records WHERE project_id = $1`, projectID)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, projectID)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
