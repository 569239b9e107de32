package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore persists catalog entities in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateSupplier(ctx context.Context, name string) (*Supplier, error) {
	supplier := &Supplier{Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO suppliers (name) VALUES ($1) RETURNING id, created_at`,
		name,
	).Scan(&supplier.ID, &supplier.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert supplier: %w", err)
	}
	return supplier, nil
}

func (s *PostgresStore) CreateService(ctx context.Context, supplierID int64, name string) (*Service, error) {
	service := &Service{SupplierID: supplierID, Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO services (supplier_id, name) VALUES ($1, $2) RETURNING id, status, created_at`,
		supplierID, name,
	).Scan(&service.ID, &service.Status, &service.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert service: %w", err)
	}
	return service, nil
}

func (s *PostgresStore) CreateBrief(ctx context.Context, title string) (*Brief, error) {
	brief := &Brief{Title: title}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO briefs (title) VALUES ($1) RETURNING id, status, created_at`,
		title,
	).Scan(&brief.ID, &brief.Status, &brief.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert brief: %w", err)
	}
	return brief, nil
}

func (s *PostgresStore) CreateProject(ctx context.Context, name string) (*Project, error) {
	project := &Project{Name: name}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO direct_award_projects (name) VALUES ($1) RETURNING id, created_at`,
		name,
	).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert direct award project: %w", err)
	}
	return project, nil
}

func (s *PostgresStore) SupplierExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id = $1)`, id)
}

func (s *PostgresStore) ServiceExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM services WHERE id = $1)`, id)
}

func (s *PostgresStore) BriefExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM briefs WHERE id = $1)`, id)
}

func (s *PostgresStore) ProjectExists(ctx context.Context, id int64) (bool, error) {
	return s.exists(ctx, `SELECT EXISTS (SELECT 1 FROM direct_award_projects WHERE id = $1)`, id)
}

func (s *PostgresStore) exists(ctx context.Context, query string, id int64) (bool, error) {
	var found bool
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&found); err != nil {
		return false, fmt.Errorf("existence check: %w", err)
	}
	return found, nil
}
