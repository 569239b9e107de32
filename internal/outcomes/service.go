package outcomes

import (
	"context"
	"errors"
	"log/slog"

	auditmodels "supplytrail/internal/audit/models"
	auditstore "supplytrail/internal/audit/store"
	"supplytrail/internal/objects"
	dErrors "supplytrail/pkg/domain-errors"
	"supplytrail/pkg/platform/sentinel"
	"supplytrail/pkg/requestcontext"
)

const maxTxAttempts = 3

// Service exposes the process outcome operations. Updates run inside the
// injected transaction runner so the outcome write and the audit events it
// emits commit or roll back together.
type Service struct {
	store Store
	tx    Tx
	log   *slog.Logger
}

func NewService(store Store, tx Tx, log *slog.Logger) *Service {
	return &Service{store: store, tx: tx, log: log}
}

// Get returns one outcome by external id.
//
// Errors: CodeNotFound when no outcome has the given external id.
func (s *Service) Get(ctx context.Context, externalID int64) (*ProcessOutcome, error) {
	outcome, err := s.store.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "process outcome %d not found", externalID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load process outcome")
	}
	return outcome, nil
}

// UpdateInput is a PUT payload: the updater, the raw outcome payload, and
// the optional completion transition extracted from it.
type UpdateInput struct {
	UpdatedBy string
	Payload   map[string]any
	Completed *bool
}

// Update applies an outcome payload under a row lock. Completing the outcome
// stamps completed_at and emits a complete_process_outcome audit event; every
// update emits an update_process_outcome event carrying the payload. The
// completion stamp and both events share one uniform timestamp, so "these
// happened together" survives in the data.
//
// Errors: CodeNotFound for an unknown external id; CodeBadRequest for
// un-completing a completed outcome or completing when the brief or project
// already has a completed outcome.
func (s *Service) Update(ctx context.Context, externalID int64, input UpdateInput) (*ProcessOutcome, error) {
	uniformNow := requestcontext.Now(ctx)

	var result *ProcessOutcome
	err := s.runTx(ctx, func(outcomeStore Store, auditStore auditstore.Store) error {
		outcome, err := outcomeStore.GetByExternalIDForUpdate(ctx, externalID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "process outcome %d not found", externalID)
			}
			return err
		}

		if outcome.Completed() && input.Completed != nil && !*input.Completed {
			return dErrors.New(dErrors.CodeBadRequest, "can't un-complete process outcome")
		}

		applyPayload(outcome, input.Payload)

		completing := !outcome.Completed() && input.Completed != nil && *input.Completed
		if completing {
			// A cursory collision check for the nicer error message;
			// the partial unique indexes police the constraint for
			// real.
			if err := s.checkCompletionCollision(ctx, outcomeStore, outcome); err != nil {
				return err
			}
			outcome.CompletedAt = &uniformNow
			_, err = auditStore.Create(ctx, &auditmodels.AuditEvent{
				Type:      auditmodels.TypeCompleteProcessOutcome,
				CreatedAt: uniformNow,
				User:      input.UpdatedBy,
				Data:      map[string]any{},
				Object:    objectRef(outcome),
			})
			if err != nil {
				return err
			}
		}

		_, err = auditStore.Create(ctx, &auditmodels.AuditEvent{
			Type:      auditmodels.TypeUpdateProcessOutcome,
			CreatedAt: uniformNow,
			User:      input.UpdatedBy,
			Data:      input.Payload,
			Object:    objectRef(outcome),
		})
		if err != nil {
			return err
		}

		if err := outcomeStore.Update(ctx, outcome); err != nil {
			return err
		}
		result = outcome
		return nil
	})
	if err != nil {
		var de *dErrors.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update process outcome")
	}

	s.log.InfoContext(ctx, "process outcome updated",
		slog.Int64("external_id", externalID),
		slog.Bool("completed", result.Completed()),
		slog.String("updated_by", input.UpdatedBy),
	)
	return result, nil
}

func (s *Service) checkCompletionCollision(ctx context.Context, store Store, outcome *ProcessOutcome) error {
	if outcome.BriefID != nil {
		existing, err := store.CompletedForBrief(ctx, *outcome.BriefID)
		if err != nil {
			return err
		}
		if existing != nil {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"brief %d already has a complete process outcome: %d", *outcome.BriefID, existing.ExternalID)
		}
	}
	if outcome.ProjectID != nil {
		existing, err := store.CompletedForProject(ctx, *outcome.ProjectID)
		if err != nil {
			return err
		}
		if existing != nil {
			return dErrors.Newf(dErrors.CodeBadRequest,
				"direct award project %d already has a complete process outcome: %d", *outcome.ProjectID, existing.ExternalID)
		}
	}
	return nil
}

// applyPayload merges the payload into the outcome's stored data. The
// "completed" key is a transition flag, not data, and is kept out.
func applyPayload(outcome *ProcessOutcome, payload map[string]any) {
	if outcome.Data == nil {
		outcome.Data = make(map[string]any, len(payload))
	}
	for k, v := range payload {
		if k == "completed" {
			continue
		}
		outcome.Data[k] = v
	}
}

func objectRef(outcome *ProcessOutcome) *objects.Ref {
	ref := outcome.Ref()
	return &ref
}

func (s *Service) runTx(ctx context.Context, fn func(outcomes Store, audit auditstore.Store) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.tx.RunInTx(ctx, fn)
		if err == nil || !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
		if attempt < maxTxAttempts {
			s.log.WarnContext(ctx, "process outcome transaction conflict, retrying",
				slog.Int("attempt", attempt),
			)
		}
	}
	return err
}
