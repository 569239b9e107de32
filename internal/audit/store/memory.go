package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"supplytrail/internal/audit/models"
	"supplytrail/internal/objects"
	"supplytrail/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests and local wiring.
// It mirrors the PostgreSQL implementation's semantics exactly, including
// the reduction-before-pagination ordering rules.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[int64]*models.AuditEvent
	nextID int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{events: make(map[int64]*models.AuditEvent)}
}

func (s *MemoryStore) Create(_ context.Context, event *models.AuditEvent) (*models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := event.Clone()
	s.nextID++
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.events[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id int64) (*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	event, ok := s.events[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return event.Clone(), nil
}

func (s *MemoryStore) List(_ context.Context, filter ListFilter, page Page) ([]*models.AuditEvent, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.AuditEvent
	for _, event := range s.events {
		if s.matches(event, filter) {
			matches = append(matches, event)
		}
	}
	if filter.EarliestForEachObject {
		matches = reduceToRepresentatives(matches, filter.LatestFirst)
	}
	sortEvents(matches, filter.LatestFirst)

	total := len(matches)
	start := page.offset()
	if start > total {
		start = total
	}
	end := start + page.Size
	if end > total {
		end = total
	}

	out := make([]*models.AuditEvent, 0, end-start)
	for _, event := range matches[start:end] {
		out = append(out, event.Clone())
	}
	return out, total, nil
}

func (s *MemoryStore) GetForUpdate(ctx context.Context, id int64) (*models.AuditEvent, error) {
	// Exclusion comes from the surrounding MemoryTx lock.
	return s.Get(ctx, id)
}

func (s *MemoryStore) ListUnacknowledgedUpTo(_ context.Context, ref objects.Ref, cutoff *models.AuditEvent) ([]*models.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*models.AuditEvent
	for _, event := range s.events {
		if event.Acknowledged || event.Object == nil || *event.Object != ref {
			continue
		}
		if event.AtOrBefore(cutoff) {
			candidates = append(candidates, event.Clone())
		}
	}
	sortEvents(candidates, false)
	return candidates, nil
}

func (s *MemoryStore) AcknowledgeBatch(_ context.Context, ids []int64, by string, at time.Time) ([]*models.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var delta []*models.AuditEvent
	for _, id := range ids {
		event, ok := s.events[id]
		if !ok {
			continue
		}
		if event.Acknowledge(by, at) {
			delta = append(delta, event.Clone())
		}
	}
	sortEvents(delta, false)
	return delta, nil
}

func (s *MemoryStore) matches(event *models.AuditEvent, filter ListFilter) bool {
	if filter.Type != "" && event.Type != filter.Type {
		return false
	}
	if filter.Day != nil {
		day := *filter.Day
		if event.CreatedAt.Before(day) || !event.CreatedAt.Before(day.Add(24*time.Hour)) {
			return false
		}
	}
	if !filter.Ack.Matches(event.Acknowledged) {
		return false
	}
	if filter.ObjectKind != "" {
		if event.Object == nil || event.Object.Kind != filter.ObjectKind {
			return false
		}
		if filter.ObjectID != nil && event.Object.ID != *filter.ObjectID {
			return false
		}
	}
	return true
}

// reduceToRepresentatives keeps one event per distinct referenced object:
// the earliest by (created_at, id), or the latest when latestFirst is set.
// Events without a reference are their own group.
func reduceToRepresentatives(events []*models.AuditEvent, latestFirst bool) []*models.AuditEvent {
	type groupKey struct {
		ref   objects.Ref
		alone int64
	}
	reps := make(map[groupKey]*models.AuditEvent)
	for _, event := range events {
		var key groupKey
		if event.Object != nil {
			key = groupKey{ref: *event.Object}
		} else {
			key = groupKey{alone: event.ID}
		}
		current, ok := reps[key]
		if !ok {
			reps[key] = event
			continue
		}
		if latestFirst {
			if current.Before(event) {
				reps[key] = event
			}
		} else if event.Before(current) {
			reps[key] = event
		}
	}
	out := make([]*models.AuditEvent, 0, len(reps))
	for _, event := range reps {
		out = append(out, event)
	}
	return out
}

// sortEvents orders by created_at (descending when latestFirst) with the id
// tie-break ascending in both directions.
func sortEvents(events []*models.AuditEvent, latestFirst bool) {
	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if latestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// MemoryTx serializes acknowledgment sequences over a MemoryStore with a
// coarse lock, standing in for the database transaction the PostgreSQL
// implementation uses.
type MemoryTx struct {
	mu    sync.Mutex
	store *MemoryStore
}

func NewMemoryTx(store *MemoryStore) *MemoryTx {
	return &MemoryTx{store: store}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(store Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.store)
}
