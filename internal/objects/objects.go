// Package objects defines the closed set of referenceable entity kinds and
// the resolver registry that maps a (kind, id) pair to an existence check
// against that kind's store.
//
// The kind vocabulary is fixed per deployment: a Registry is built at wiring
// time from an explicit map of resolvers, never extended dynamically.
package objects

import (
	"context"
	"fmt"

	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/platform/sentinel"
)

// Kind identifies a referenceable entity kind.
//
// Invariant: values are members of the closed kind set below. Construct via
// ParseKind at trust boundaries; direct casting bypasses validation.
type Kind string

const (
	KindSuppliers           Kind = "suppliers"
	KindServices            Kind = "services"
	KindBriefs              Kind = "briefs"
	KindDirectAwardProjects Kind = "direct_award_projects"
	KindProcessOutcomes     Kind = "process_outcomes"
)

// validKinds is the single source of truth for referenceable kinds.
var validKinds = map[Kind]bool{
	KindSuppliers:           true,
	KindServices:            true,
	KindBriefs:              true,
	KindDirectAwardProjects: true,
	KindProcessOutcomes:     true,
}

func (k Kind) IsValid() bool { return validKinds[k] }

// ParseKind constructs a Kind from external input.
//
// Errors: CodeBadRequest when the value is not a member of the kind set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid object type supplied")
	}
	return k, nil
}

// Ref is a validated polymorphic reference to a domain object. Both fields
// are always populated; an absent reference is represented by a nil *Ref.
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string { return fmt.Sprintf("%s/%d", r.Kind, r.ID) }

// Resolver answers existence checks for one entity kind.
type Resolver interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Registry holds one resolver per referenceable kind. It is the injected
// capability set the audit core uses to validate references on write and to
// distinguish "no matching events" from "no such object" on read.
type Registry struct {
	resolvers map[Kind]Resolver
}

// NewRegistry builds a registry. Kinds without a resolver entry cannot be
// referenced; wiring is expected to supply all five.
func NewRegistry(resolvers map[Kind]Resolver) *Registry {
	m := make(map[Kind]Resolver, len(resolvers))
	for k, r := range resolvers {
		m[k] = r
	}
	return &Registry{resolvers: m}
}

// Resolve verifies that the referenced object exists.
//
// Errors: sentinel.ErrNotFound when the object does not exist; CodeBadRequest
// when the kind has no resolver configured.
func (r *Registry) Resolve(ctx context.Context, ref Ref) error {
	resolver, ok := r.resolvers[ref.Kind]
	if !ok {
		return dErrors.New(dErrors.CodeBadRequest, "invalid object type supplied")
	}
	exists, err := resolver.Exists(ctx, ref.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve object reference")
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return nil
}
