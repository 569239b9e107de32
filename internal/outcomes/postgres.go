package outcomes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"supplytrail/pkg/platform/sentinel"
)

const outcomeColumns = `id, external_id, brief_id, direct_award_project_id, completed_at, data, created_at, updated_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists process outcomes in PostgreSQL.
type PostgresStore struct {
	db querier
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to an open transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Create(ctx context.Context, outcome *ProcessOutcome) (*ProcessOutcome, error) {
	data, err := json.Marshal(dataOrEmpty(outcome.Data))
	if err != nil {
		return nil, fmt.Errorf("marshal outcome data: %w", err)
	}
	query := `
		INSERT INTO process_outcomes (external_id, brief_id, direct_award_project_id, completed_at, data)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + outcomeColumns
	stored, err := scanOutcome(s.db.QueryRowContext(ctx, query,
		outcome.ExternalID, outcome.BriefID, outcome.ProjectID, outcome.CompletedAt, data,
	))
	if err != nil {
		return nil, fmt.Errorf("insert process outcome: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) GetByExternalID(ctx context.Context, externalID int64) (*ProcessOutcome, error) {
	return s.getByExternalID(ctx, externalID, "")
}

func (s *PostgresStore) GetByExternalIDForUpdate(ctx context.Context, externalID int64) (*ProcessOutcome, error) {
	return s.getByExternalID(ctx, externalID, " FOR UPDATE")
}

func (s *PostgresStore) getByExternalID(ctx context.Context, externalID int64, lock string) (*ProcessOutcome, error) {
	query := `SELECT ` + outcomeColumns + ` FROM process_outcomes WHERE external_id = $1` + lock
	outcome, err := scanOutcome(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get process outcome: %w", err)
	}
	return outcome, nil
}

func (s *PostgresStore) Update(ctx context.Context, outcome *ProcessOutcome) error {
	data, err := json.Marshal(dataOrEmpty(outcome.Data))
	if err != nil {
		return fmt.Errorf("marshal outcome data: %w", err)
	}
	query := `
		UPDATE process_outcomes
		SET data = $1, completed_at = $2, updated_at = now()
		WHERE external_id = $3`
	result, err := s.db.ExecContext(ctx, query, data, outcome.CompletedAt, outcome.ExternalID)
	if err != nil {
		return fmt.Errorf("update process outcome: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update process outcome: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CompletedForBrief(ctx context.Context, briefID int64) (*ProcessOutcome, error) {
	return s.completedFor(ctx, "brief_id", briefID)
}

func (s *PostgresStore) CompletedForProject(ctx context.Context, projectID int64) (*ProcessOutcome, error) {
	return s.completedFor(ctx, "direct_award_project_id", projectID)
}

func (s *PostgresStore) completedFor(ctx context.Context, column string, id int64) (*ProcessOutcome, error) {
	query := fmt.Sprintf(`SELECT %s FROM process_outcomes WHERE %s = $1 AND completed_at IS NOT NULL`,
		outcomeColumns, column)
	outcome, err := scanOutcome(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get completed process outcome: %w", err)
	}
	return outcome, nil
}

func (s *PostgresStore) ExistsByExternalID(ctx context.Context, externalID int64) (bool, error) {
	var found bool
	query := `SELECT EXISTS (SELECT 1 FROM process_outcomes WHERE external_id = $1)`
	if err := s.db.QueryRowContext(ctx, query, externalID).Scan(&found); err != nil {
		return false, fmt.Errorf("process outcome existence check: %w", err)
	}
	return found, nil
}

func scanOutcome(row *sql.Row) (*ProcessOutcome, error) {
	var (
		outcome     ProcessOutcome
		briefID     sql.NullInt64
		projectID   sql.NullInt64
		completedAt sql.NullTime
		data        []byte
	)
	err := row.Scan(
		&outcome.ID,
		&outcome.ExternalID,
		&briefID,
		&projectID,
		&completedAt,
		&data,
		&outcome.CreatedAt,
		&outcome.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if briefID.Valid {
		outcome.BriefID = &briefID.Int64
	}
	if projectID.Valid {
		outcome.ProjectID = &projectID.Int64
	}
	if completedAt.Valid {
		at := completedAt.Time
		outcome.CompletedAt = &at
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &outcome.Data); err != nil {
			return nil, fmt.Errorf("unmarshal outcome data: %w", err)
		}
	}
	return &outcome, nil
}

func dataOrEmpty(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}
