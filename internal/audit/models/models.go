// Package models holds the audit event data model: the event record itself,
// the closed audit type vocabulary, and the (created_at, id) ordering that
// every list and acknowledgment operation shares.
package models

import (
	"time"

	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
)

// AuditType tags an audit event with the action it records.
//
// Invariant: values are members of the closed type set below. Construct via
// ParseAuditType at trust boundaries; direct casting bypasses validation.
type AuditType string

const (
	TypeSupplierUpdate            AuditType = "supplier_update"
	TypeContactUpdate             AuditType = "contact_update"
	TypeUpdateService             AuditType = "update_service"
	TypeUpdateServiceStatus       AuditType = "update_service_status"
	TypeCreateBrief               AuditType = "create_brief"
	TypeUpdateBrief               AuditType = "update_brief"
	TypeCreateProject             AuditType = "create_project"
	TypeUpdateProject             AuditType = "update_project"
	TypeRegisterFrameworkInterest AuditType = "register_framework_interest"
	TypeSendClarificationQuestion AuditType = "send_clarification_question"
	TypeCompleteProcessOutcome    AuditType = "complete_process_outcome"
	TypeUpdateProcessOutcome      AuditType = "update_process_outcome"
)

// validAuditTypes is the single source of truth for the type vocabulary.
var validAuditTypes = map[AuditType]bool{
	TypeSupplierUpdate:            true,
	TypeContactUpdate:             true,
	TypeUpdateService:             true,
	TypeUpdateServiceStatus:       true,
	TypeCreateBrief:               true,
	TypeUpdateBrief:               true,
	TypeCreateProject:             true,
	TypeUpdateProject:             true,
	TypeRegisterFrameworkInterest: true,
	TypeSendClarificationQuestion: true,
	TypeCompleteProcessOutcome:    true,
	TypeUpdateProcessOutcome:      true,
}

func (t AuditType) IsValid() bool { return validAuditTypes[t] }

// ParseAuditType constructs an AuditType from external input.
//
// Errors: CodeBadRequest when the value is empty or not in the type set.
func ParseAuditType(s string) (AuditType, error) {
	t := AuditType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid audit type supplied")
	}
	return t, nil
}

// AuditEvent is an immutable record of an action taken on the platform,
// optionally tied to a domain object.
//
// Invariants:
//   - Type is a member of the audit type vocabulary
//   - Object is either nil or a reference that resolved at creation time
//   - Acknowledged is true iff AcknowledgedAt is non-nil; AcknowledgedBy is
//     set only when Acknowledged is true
//   - Every field except the three acknowledgment fields is immutable after
//     creation, and acknowledgment is a one-way transition
type AuditEvent struct {
	ID             int64
	Type           AuditType
	CreatedAt      time.Time
	User           string
	Data           map[string]any
	Object         *objects.Ref
	Acknowledged   bool
	AcknowledgedAt *time.Time
	AcknowledgedBy string
}

// Acknowledge applies the one-way acknowledgment transition. It reports
// whether the event actually changed: acknowledging an already-acknowledged
// event is a no-op, never an error, and never overwrites who/when.
func (e *AuditEvent) Acknowledge(by string, at time.Time) bool {
	if e.Acknowledged {
		return false
	}
	e.Acknowledged = true
	e.AcknowledgedAt = &at
	e.AcknowledgedBy = by
	return true
}

// Before reports whether e sorts strictly before other under the canonical
// (created_at, id) ordering. The id tie-break makes the order total even
// when bulk-inserted or migrated events share a timestamp.
func (e *AuditEvent) Before(other *AuditEvent) bool {
	if !e.CreatedAt.Equal(other.CreatedAt) {
		return e.CreatedAt.Before(other.CreatedAt)
	}
	return e.ID < other.ID
}

// AtOrBefore reports whether e sorts at or before other under the canonical
// ordering. This is the bulk-acknowledgment cutoff predicate.
func (e *AuditEvent) AtOrBefore(other *AuditEvent) bool {
	return !other.Before(e)
}

// Clone returns a deep copy so in-memory stores never hand out aliased
// records.
func (e *AuditEvent) Clone() *AuditEvent {
	c := *e
	if e.Object != nil {
		ref := *e.Object
		c.Object = &ref
	}
	if e.AcknowledgedAt != nil {
		at := *e.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	if e.Data != nil {
		c.Data = make(map[string]any, len(e.Data))
		for k, v := range e.Data {
			c.Data[k] = v
		}
	}
	return &c
}

// AckFilter selects events by acknowledgment state.
type AckFilter int

const (
	// AckPending selects unacknowledged events; it is the default when the
	// list parameter is unspecified.
	AckPending AckFilter = iota
	// AckDone selects acknowledged events.
	AckDone
	// AckAll disables the acknowledgment filter.
	AckAll
)

// ParseAckFilter interprets the tri-state "acknowledged" list parameter.
//
// Errors: CodeBadRequest for anything other than "", "true", "false", "all".
func ParseAckFilter(s string) (AckFilter, error) {
	switch s {
	case "", "false":
		return AckPending, nil
	case "true":
		return AckDone, nil
	case "all":
		return AckAll, nil
	default:
		return 0, dErrors.New(dErrors.CodeBadRequest, "acknowledged filter must be 'true', 'false' or 'all'")
	}
}

// Matches reports whether an event's acknowledgment state passes the filter.
func (f AckFilter) Matches(acknowledged bool) bool {
	switch f {
	case AckDone:
		return acknowledged
	case AckPending:
		return !acknowledged
	default:
		return true
	}
}
