// Package store defines the audit event store contract plus its memory and
// PostgreSQL implementations.
//
// Rows are append-mostly: every column except the three acknowledgment
// columns is immutable after insert, and acknowledgment is a one-way
// transition applied through the batch primitives below.
package store

import (
	"context"
	"time"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/objects"
)

// ListFilter narrows a scan. Zero values mean "no filter" for each dimension;
// the dimensions compose by AND.
type ListFilter struct {
	// Type matches events of exactly this audit type.
	Type models.AuditType
	// Day matches events created within [Day, Day+24h). Must be a UTC
	// midnight instant.
	Day *time.Time
	// Ack selects by acknowledgment state.
	Ack models.AckFilter
	// ObjectKind matches events referencing this kind of object.
	ObjectKind objects.Kind
	// ObjectID additionally matches the referenced object's id. Only
	// meaningful together with ObjectKind; the service enforces that
	// pairing before the filter reaches the store.
	ObjectID *int64
	// LatestFirst reverses the primary created_at ordering. The id
	// tie-break stays ascending either way.
	LatestFirst bool
	// EarliestForEachObject reduces the matches to one representative per
	// distinct referenced object before pagination: the earliest by
	// (created_at, id), or the latest when LatestFirst is set. Events
	// without an object reference each stand alone.
	EarliestForEachObject bool
}

// Page is a 1-based pagination request.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int { return (p.Number - 1) * p.Size }

// Store is the audit event store contract. Get and List are plain reads;
// the acknowledgment primitives (GetForUpdate, ListUnacknowledgedUpTo,
// AcknowledgeBatch) must run inside a Tx so the read-decide-write sequence
// of a bulk acknowledgment is atomic.
type Store interface {
	// Create persists a new event and returns it with ID assigned. A zero
	// CreatedAt is defaulted to the current time; a non-zero one is kept,
	// which is how backfilled and collaborator-stamped events get their
	// timestamps.
	Create(ctx context.Context, event *models.AuditEvent) (*models.AuditEvent, error)

	// Get returns one event, or sentinel.ErrNotFound.
	Get(ctx context.Context, id int64) (*models.AuditEvent, error)

	// List returns one page of matching events in (created_at, id) order
	// (created_at descending when LatestFirst), together with the total
	// match count after any earliest-per-object reduction. The count is
	// what pagination links and range checks are computed from.
	List(ctx context.Context, filter ListFilter, page Page) ([]*models.AuditEvent, int, error)

	// GetForUpdate returns one event with its row locked for the duration
	// of the surrounding transaction, or sentinel.ErrNotFound.
	GetForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error)

	// ListUnacknowledgedUpTo returns, locked, every unacknowledged event
	// referencing ref whose (created_at, id) is at or before the cutoff
	// event's, in (created_at, id) order.
	ListUnacknowledgedUpTo(ctx context.Context, ref objects.Ref, cutoff *models.AuditEvent) ([]*models.AuditEvent, error)

	// AcknowledgeBatch marks the given events acknowledged with one shared
	// actor and timestamp. Rows already acknowledged are left untouched and
	// excluded from the returned delta.
	AcknowledgeBatch(ctx context.Context, ids []int64, by string, at time.Time) ([]*models.AuditEvent, error)
}

// Tx provides a transactional boundary for acknowledgment sequences.
// Implementations wrap a database transaction or, in-memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}
