package outcomes

import (
	"context"

	auditstore "supplytrail/internal/audit/store"
	"supplytrail/internal/objects"
)

// Store is the process outcome persistence contract. GetByExternalIDForUpdate
// and Update must run inside a Tx; the rest are plain operations.
type Store interface {
	// Create persists a new outcome and returns it with ID assigned.
	// ExternalID must be set by the caller.
	Create(ctx context.Context, outcome *ProcessOutcome) (*ProcessOutcome, error)

	// GetByExternalID returns the outcome with the given external id, or
	// sentinel.ErrNotFound.
	GetByExternalID(ctx context.Context, externalID int64) (*ProcessOutcome, error)

	// GetByExternalIDForUpdate is GetByExternalID with the row locked for
	// the duration of the surrounding transaction, so concurrent updates
	// to the same outcome serialize instead of overwriting each other.
	GetByExternalIDForUpdate(ctx context.Context, externalID int64) (*ProcessOutcome, error)

	// Update writes back an outcome's mutable fields (Data, CompletedAt)
	// and bumps UpdatedAt.
	Update(ctx context.Context, outcome *ProcessOutcome) error

	// CompletedForBrief returns the completed outcome attached to the
	// brief, or nil when there is none.
	CompletedForBrief(ctx context.Context, briefID int64) (*ProcessOutcome, error)

	// CompletedForProject returns the completed outcome attached to the
	// direct award project, or nil when there is none.
	CompletedForProject(ctx context.Context, projectID int64) (*ProcessOutcome, error)

	// ExistsByExternalID answers object reference resolution for the
	// process_outcomes kind.
	ExistsByExternalID(ctx context.Context, externalID int64) (bool, error)
}

// Tx runs an outcome update atomically with the audit events it emits: both
// stores are views over the same transaction.
type Tx interface {
	RunInTx(ctx context.Context, fn func(outcomes Store, audit auditstore.Store) error) error
}

type resolverFunc func(ctx context.Context, id int64) (bool, error)

func (f resolverFunc) Exists(ctx context.Context, id int64) (bool, error) { return f(ctx, id) }

// Resolver exposes the store's external-id existence check as the object
// reference resolver for the process_outcomes kind.
func Resolver(s Store) objects.Resolver {
	return resolverFunc(s.ExistsByExternalID)
}
