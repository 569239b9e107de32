// Package service implements the audit operations: recording events, the
// filtered and paginated listings, and the single and bulk acknowledgment
// workflows.
package service

import (
	"context"
	"errors"
	"log/slog"

	"supplytrail/internal/audit/metrics"
	"supplytrail/internal/audit/models"
	"supplytrail/internal/audit/store"
	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/platform/sentinel"
	"supplytrail/pkg/requestcontext"
)

// maxTxAttempts bounds retries of acknowledgment transactions aborted by a
// serialization conflict or deadlock.
const maxTxAttempts = 3

// Service exposes the audit operations. Reads go straight to the store;
// acknowledgments run their read-decide-write sequence inside the injected
// transaction runner.
type Service struct {
	store    store.Store
	tx       store.Tx
	registry *objects.Registry
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func New(s store.Store, tx store.Tx, registry *objects.Registry, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{store: s, tx: tx, registry: registry, metrics: m, log: log}
}

// CreateInput is a request to record one audit event. ObjectKind and
// ObjectID must be provided together or not at all.
type CreateInput struct {
	Type       string
	User       string
	Data       map[string]any
	ObjectKind string
	ObjectID   *int64
}

// Create validates and records an audit event.
//
// Errors: CodeBadRequest for an unknown type, a half-specified object
// reference, or a reference to an object that does not exist.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.AuditEvent, error) {
	auditType, err := models.ParseAuditType(input.Type)
	if err != nil {
		return nil, err
	}
	if input.Data == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "audit event data must be provided")
	}

	var ref *objects.Ref
	switch {
	case input.ObjectKind != "" && input.ObjectID == nil:
		return nil, dErrors.New(dErrors.CodeBadRequest, "object type cannot be provided without an object ID")
	case input.ObjectKind == "" && input.ObjectID != nil:
		return nil, dErrors.New(dErrors.CodeBadRequest, "object ID cannot be provided without an object type")
	case input.ObjectKind != "":
		kind, err := objects.ParseKind(input.ObjectKind)
		if err != nil {
			return nil, err
		}
		ref = &objects.Ref{Kind: kind, ID: *input.ObjectID}
		if err := s.registry.Resolve(ctx, *ref); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeBadRequest, "referenced object does not exist")
			}
			return nil, err
		}
	}

	event, err := s.store.Create(ctx, &models.AuditEvent{
		Type:      auditType,
		CreatedAt: requestcontext.Now(ctx),
		User:      input.User,
		Data:      input.Data,
		Object:    ref,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}

	s.metrics.EventCreated()
	s.log.InfoContext(ctx, "audit event recorded",
		slog.Int64("event_id", event.ID),
		slog.String("type", string(event.Type)),
	)
	return event, nil
}

// Get returns one audit event.
//
// Errors: CodeNotFound when no event has the given id.
func (s *Service) Get(ctx context.Context, id int64) (*models.AuditEvent, error) {
	event, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit event")
	}
	return event, nil
}

// ListResult is one page of matching events plus what the caller needs to
// build pagination links.
type ListResult struct {
	Events  []*models.AuditEvent
	Page    int
	PerPage int
	Total   int
	HasPrev bool
	HasNext bool
}

// List returns a page of audit events for the given filter.
//
// Filtering by an object that does not exist is CodeNotFound, not an empty
// page: the reference itself is wrong, and a 404 tells the caller that
// instead of letting a typo read as "nothing happened". A page number past
// the last page is CodeNotFound too, except that page 1 of an empty result
// is an ordinary empty page.
func (s *Service) List(ctx context.Context, filter store.ListFilter, page store.Page) (*ListResult, error) {
	if filter.ObjectKind != "" && filter.ObjectID != nil {
		err := s.registry.Resolve(ctx, objects.Ref{Kind: filter.ObjectKind, ID: *filter.ObjectID})
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "referenced object does not exist")
			}
			return nil, err
		}
	}

	events, total, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events")
	}
	if page.Number > 1 && (page.Number-1)*page.Size >= total {
		return nil, dErrors.New(dErrors.CodeNotFound, "page out of range")
	}

	s.metrics.ListServed()
	return &ListResult{
		Events:  events,
		Page:    page.Number,
		PerPage: page.Size,
		Total:   total,
		HasPrev: page.Number > 1,
		HasNext: page.Number*page.Size < total,
	}, nil
}

// Acknowledge marks one event acknowledged by the given actor. Acknowledging
// an already-acknowledged event returns it unchanged.
//
// Errors: CodeNotFound when no event has the given id.
func (s *Service) Acknowledge(ctx context.Context, id int64, by string) (*models.AuditEvent, error) {
	at := requestcontext.Now(ctx)

	var result *models.AuditEvent
	err := s.runAckTx(ctx, func(txStore store.Store) error {
		event, err := txStore.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if event.Acknowledged {
			result = event
			return nil
		}
		delta, err := txStore.AcknowledgeBatch(ctx, []int64{id}, by, at)
		if err != nil {
			return err
		}
		result = delta[0]
		s.metrics.Acknowledged("single", 1)
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acknowledge audit event")
	}

	s.log.InfoContext(ctx, "audit event acknowledged",
		slog.Int64("event_id", id),
		slog.String("acknowledged_by", by),
	)
	return result, nil
}

// AcknowledgeIncludingPrevious marks the target event acknowledged together
// with every earlier unacknowledged event referencing the same object, all
// under one shared timestamp. "Earlier" is the canonical (created_at, id)
// order, so the closure is exact even across equal timestamps. The returned
// slice holds only the events that transitioned in this call: if the target
// was already acknowledged the whole operation is a no-op and the slice is
// empty.
//
// An event without an object reference has a closure of just itself.
//
// Errors: CodeNotFound when no event has the given id.
func (s *Service) AcknowledgeIncludingPrevious(ctx context.Context, id int64, by string) ([]*models.AuditEvent, error) {
	at := requestcontext.Now(ctx)

	var delta []*models.AuditEvent
	err := s.runAckTx(ctx, func(txStore store.Store) error {
		target, err := txStore.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if target.Acknowledged {
			delta = nil
			return nil
		}

		ids := []int64{target.ID}
		if target.Object != nil {
			batch, err := txStore.ListUnacknowledgedUpTo(ctx, *target.Object, target)
			if err != nil {
				return err
			}
			ids = ids[:0]
			for _, event := range batch {
				ids = append(ids, event.ID)
			}
		}

		delta, err = txStore.AcknowledgeBatch(ctx, ids, by, at)
		return err
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "audit event not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acknowledge audit events")
	}

	if len(delta) > 0 {
		s.metrics.Acknowledged("including_previous", len(delta))
		s.log.InfoContext(ctx, "audit events acknowledged",
			slog.Int64("target_event_id", id),
			slog.Int("count", len(delta)),
			slog.String("acknowledged_by", by),
		)
	}
	return delta, nil
}

// runAckTx runs fn in a transaction, retrying a bounded number of times when
// the database aborts it with a serialization conflict or deadlock.
func (s *Service) runAckTx(ctx context.Context, fn func(txStore store.Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		if attempt < maxTxAttempts {
			s.metrics.TxRetried()
			s.log.WarnContext(ctx, "acknowledgment transaction conflict, retrying",
				slog.Int("attempt", attempt),
			)
		}
	}
	return err
}
