// Package outcomes implements process outcomes: the record of how a buyer's
// procurement process (a brief or a direct award project) concluded. An
// outcome is referenced externally by its stable external id, belongs to
// exactly one brief or one project, and completion is a one-way transition
// audited through the audit event store.
package outcomes

import (
	"time"

	"supplytrail/internal/objects"
)

// ProcessOutcome is one procurement process outcome.
//
// Invariants:
//   - exactly one of BriefID / ProjectID is set
//   - a brief or project has at most one completed outcome
//   - CompletedAt, once set, is never cleared
type ProcessOutcome struct {
	ID          int64
	ExternalID  int64
	BriefID     *int64
	ProjectID   *int64
	CompletedAt *time.Time
	Data        map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (o *ProcessOutcome) Completed() bool { return o.CompletedAt != nil }

// Ref is the outcome's own object reference, keyed by external id since that
// is the identifier the API exposes.
func (o *ProcessOutcome) Ref() objects.Ref {
	return objects.Ref{Kind: objects.KindProcessOutcomes, ID: o.ExternalID}
}

// Clone returns a deep copy so the memory store never hands out aliased
// records.
func (o *ProcessOutcome) Clone() *ProcessOutcome {
	c := *o
	if o.BriefID != nil {
		id := *o.BriefID
		c.BriefID = &id
	}
	if o.ProjectID != nil {
		id := *o.ProjectID
		c.ProjectID = &id
	}
	if o.CompletedAt != nil {
		at := *o.CompletedAt
		c.CompletedAt = &at
	}
	if o.Data != nil {
		c.Data = make(map[string]any, len(o.Data))
		for k, v := range o.Data {
			c.Data[k] = v
		}
	}
	return &c
}
