package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/objects"
	"supplytrail/pkg/platform/sentinel"
)

const eventColumns = `id, type, created_at, "user", data, object_type, object_id, acknowledged, acknowledged_at, acknowledged_by`

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// serves plain reads and transactional acknowledgment sequences.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists audit events in PostgreSQL. The store is pure I/O;
// closure computation and validation belong to the service layer.
type PostgresStore struct {
	db querier
}

// NewPostgres constructs a store over a connection pool.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a store bound to an open transaction, for use by
// the transaction runner.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

func (s *PostgresStore) Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	data, err := json.Marshal(dataOrEmpty(event.Data))
	if err != nil {
		return nil, fmt.Errorf("marshal audit data: %w", err)
	}

	var createdAt *time.Time
	if !event.CreatedAt.IsZero() {
		t := event.CreatedAt.UTC()
		createdAt = &t
	}
	var objectType *string
	var objectID *int64
	if event.Object != nil {
		kind := string(event.Object.Kind)
		id := event.Object.ID
		objectType, objectID = &kind, &id
	}

	query := `
		INSERT INTO audit_events (type, created_at, "user", data, object_type, object_id)
		VALUES ($1, COALESCE($2::timestamptz, now()), $3, $4, $5, $6)
		RETURNING ` + eventColumns
	stored, err := scanEvent(s.db.QueryRowContext(ctx, query,
		string(event.Type),
		createdAt,
		event.User,
		data,
		objectType,
		objectID,
	))
	if err != nil {
		return nil, fmt.Errorf("insert audit event: %w", err)
	}
	return stored, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*models.AuditEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE id = $1`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter, page Page) ([]*models.AuditEvent, int, error) {
	where, args := buildWhere(filter)

	// The reduction runs before pagination: DISTINCT ON picks one
	// representative per referenced object, and unreferenced rows get a
	// unique group key (-id cannot collide with a real object id) so each
	// stands alone.
	source := `audit_events` + where
	if filter.EarliestForEachObject {
		repOrder := "created_at ASC, id ASC"
		if filter.LatestFirst {
			repOrder = "created_at DESC, id DESC"
		}
		source = fmt.Sprintf(`(
			SELECT DISTINCT ON (COALESCE(object_type, ''), COALESCE(object_id, -id)) %s
			FROM audit_events%s
			ORDER BY COALESCE(object_type, ''), COALESCE(object_id, -id), %s
		) AS reps`, eventColumns, where, repOrder)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM ` + source
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit events: %w", err)
	}

	pageOrder := "created_at ASC, id ASC"
	if filter.LatestFirst {
		// id stays ascending within a created_at tie regardless of
		// direction, keeping the order total and stable.
		pageOrder = "created_at DESC, id ASC"
	}
	listQuery := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		eventColumns, source, pageOrder, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, listQuery, append(args, page.Size, page.offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE id = $1 FOR UPDATE`
	event, err := scanEvent(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get audit event for update: %w", err)
	}
	return event, nil
}

func (s *PostgresStore) ListUnacknowledgedUpTo(ctx context.Context, ref objects.Ref, cutoff *models.AuditEvent) ([]*models.AuditEvent, error) {
	// Row-value comparison implements the (created_at, id) cutoff exactly,
	// so two events sharing a timestamp are split deterministically by id.
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE object_type = $1
		  AND object_id = $2
		  AND NOT acknowledged
		  AND (created_at, id) <= ($3::timestamptz, $4)
		ORDER BY created_at, id
		FOR UPDATE`
	rows, err := s.db.QueryContext(ctx, query, string(ref.Kind), ref.ID, cutoff.CreatedAt, cutoff.ID)
	if err != nil {
		return nil, fmt.Errorf("list unacknowledged up to: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) AcknowledgeBatch(ctx context.Context, ids []int64, by string, at time.Time) ([]*models.AuditEvent, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+2)
	args = append(args, at.UTC(), by)
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+3)
		args = append(args, id)
	}

	query := fmt.Sprintf(`
		UPDATE audit_events
		SET acknowledged = TRUE, acknowledged_at = $1, acknowledged_by = $2
		WHERE id IN (%s) AND NOT acknowledged
		RETURNING %s`, strings.Join(placeholders, ", "), eventColumns)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("acknowledge batch: %w", err)
	}
	defer rows.Close()

	delta, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	sortEvents(delta, false)
	return delta, nil
}

func buildWhere(filter ListFilter) (string, []any) {
	var conditions []string
	var args []any

	next := func() int { return len(args) + 1 }

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("type = $%d", next()))
		args = append(args, string(filter.Type))
	}
	if filter.Day != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d AND created_at < $%d", next(), next()+1))
		args = append(args, *filter.Day, filter.Day.Add(24*time.Hour))
	}
	switch filter.Ack {
	case models.AckDone:
		conditions = append(conditions, "acknowledged")
	case models.AckPending:
		conditions = append(conditions, "NOT acknowledged")
	}
	if filter.ObjectKind != "" {
		conditions = append(conditions, fmt.Sprintf("object_type = $%d", next()))
		args = append(args, string(filter.ObjectKind))
		if filter.ObjectID != nil {
			conditions = append(conditions, fmt.Sprintf("object_id = $%d", next()))
			args = append(args, *filter.ObjectID)
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

type eventRow interface {
	Scan(dest ...any) error
}

func scanEvent(row eventRow) (*models.AuditEvent, error) {
	var (
		event          models.AuditEvent
		typ            string
		data           []byte
		objectType     sql.NullString
		objectID       sql.NullInt64
		acknowledgedAt sql.NullTime
		acknowledgedBy sql.NullString
	)
	err := row.Scan(
		&event.ID,
		&typ,
		&event.CreatedAt,
		&event.User,
		&data,
		&objectType,
		&objectID,
		&event.Acknowledged,
		&acknowledgedAt,
		&acknowledgedBy,
	)
	if err != nil {
		return nil, err
	}

	event.Type = models.AuditType(typ)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &event.Data); err != nil {
			return nil, fmt.Errorf("unmarshal audit data: %w", err)
		}
	}
	if objectType.Valid && objectID.Valid {
		event.Object = &objects.Ref{Kind: objects.Kind(objectType.String), ID: objectID.Int64}
	}
	if acknowledgedAt.Valid {
		at := acknowledgedAt.Time
		event.AcknowledgedAt = &at
	}
	if acknowledgedBy.Valid {
		event.AcknowledgedBy = acknowledgedBy.String
	}
	return &event, nil
}

func scanEvents(rows *sql.Rows) ([]*models.AuditEvent, error) {
	var events []*models.AuditEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func dataOrEmpty(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}
