package outcomes

import (
	"context"
	"sync"
	"time"

	auditstore "supplytrail/internal/audit/store"
	"supplytrail/pkg/platform/sentinel"
)

// MemoryStore is the in-memory outcome store used by unit tests and local
// wiring.
type MemoryStore struct {
	mu         sync.RWMutex
	byExternal map[int64]*ProcessOutcome
	nextID     int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{byExternal: make(map[int64]*ProcessOutcome)}
}

func (s *MemoryStore) Create(_ context.Context, outcome *ProcessOutcome) (*ProcessOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byExternal[outcome.ExternalID]; exists {
		return nil, sentinel.ErrInvalidState
	}
	stored := outcome.Clone()
	s.nextID++
	stored.ID = s.nextID
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.byExternal[stored.ExternalID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) GetByExternalID(_ context.Context, externalID int64) (*ProcessOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.byExternal[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return outcome.Clone(), nil
}

func (s *MemoryStore) GetByExternalIDForUpdate(ctx context.Context, externalID int64) (*ProcessOutcome, error) {
	// Exclusion comes from the surrounding MemoryTx lock.
	return s.GetByExternalID(ctx, externalID)
}

func (s *MemoryStore) Update(_ context.Context, outcome *ProcessOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byExternal[outcome.ExternalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	updated := outcome.Clone()
	updated.ID = stored.ID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.byExternal[updated.ExternalID] = updated
	return nil
}

func (s *MemoryStore) CompletedForBrief(_ context.Context, briefID int64) (*ProcessOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, outcome := range s.byExternal {
		if outcome.Completed() && outcome.BriefID != nil && *outcome.BriefID == briefID {
			return outcome.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) CompletedForProject(_ context.Context, projectID int64) (*ProcessOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, outcome := range s.byExternal {
		if outcome.Completed() && outcome.ProjectID != nil && *outcome.ProjectID == projectID {
			return outcome.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) ExistsByExternalID(_ context.Context, externalID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byExternal[externalID]
	return ok, nil
}

// MemoryTx serializes outcome updates over a pair of memory stores with one
// coarse lock, standing in for the shared database transaction.
type MemoryTx struct {
	mu       sync.Mutex
	outcomes *MemoryStore
	audit    *auditstore.MemoryStore
}

func NewMemoryTx(outcomes *MemoryStore, audit *auditstore.MemoryStore) *MemoryTx {
	return &MemoryTx{outcomes: outcomes, audit: audit}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(outcomes Store, audit auditstore.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.outcomes, t.audit)
}
