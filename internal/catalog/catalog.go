// Package catalog holds the referenceable entities of the procurement
// platform: suppliers, the services they list, buyer briefs and direct award
// projects. The audit core never touches these stores directly; it sees them
// only through the existence checks exported by Resolvers.
package catalog

import (
	"context"
	"time"

	"supplytrail/internal/objects"
)

type Supplier struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

type Service struct {
	ID         int64
	SupplierID int64
	Name       string
	Status     string
	CreatedAt  time.Time
}

type Brief struct {
	ID        int64
	Title     string
	Status    string
	CreatedAt time.Time
}

type Project struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Store is the catalog persistence contract.
type Store interface {
	CreateSupplier(ctx context.Context, name string) (*Supplier, error)
	CreateService(ctx context.Context, supplierID int64, name string) (*Service, error)
	CreateBrief(ctx context.Context, title string) (*Brief, error)
	CreateProject(ctx context.Context, name string) (*Project, error)

	SupplierExists(ctx context.Context, id int64) (bool, error)
	ServiceExists(ctx context.Context, id int64) (bool, error)
	BriefExists(ctx context.Context, id int64) (bool, error)
	ProjectExists(ctx context.Context, id int64) (bool, error)
}

// existsFunc adapts a bare existence check to objects.Resolver.
type existsFunc func(ctx context.Context, id int64) (bool, error)

func (f existsFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

// Resolvers exposes the catalog's existence checks as object reference
// resolvers, one per catalog-backed kind. The process_outcomes kind is
// resolved by its own package.
func Resolvers(s Store) map[objects.Kind]objects.Resolver {
	return map[objects.Kind]objects.Resolver{
		objects.KindSuppliers:           existsFunc(s.SupplierExists),
		objects.KindServices:            existsFunc(s.ServiceExists),
		objects.KindBriefs:              existsFunc(s.BriefExists),
		objects.KindDirectAwardProjects: existsFunc(s.ProjectExists),
	}
}
