package catalog

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-memory catalog used by tests and local runs.
type MemoryStore struct {
	mu        sync.RWMutex
	suppliers map[int64]*Supplier
	services  map[int64]*Service
	briefs    map[int64]*Brief
	projects  map[int64]*Project
	nextID    int64
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		suppliers: make(map[int64]*Supplier),
		services:  make(map[int64]*Service),
		briefs:    make(map[int64]*Brief),
		projects:  make(map[int64]*Project),
	}
}

func (m *MemoryStore) nextSequence() int64 {
	m.nextID++
	return m.nextID
}

func (m *MemoryStore) CreateSupplier(_ context.Context, name string) (*Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Supplier{ID: m.nextSequence(), Name: name, CreatedAt: time.Now().UTC()}
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *MemoryStore) CreateService(_ context.Context, supplierID int64, name string) (*Service, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &Service{ID: m.nextSequence(), SupplierID: supplierID, Name: name, Status: "published", CreatedAt: time.Now().UTC()}
	m.services[s.ID] = s
	return s, nil
}

func (m *MemoryStore) CreateBrief(_ context.Context, title string) (*Brief, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &Brief{ID: m.nextSequence(), Title: title, Status: "draft", CreatedAt: time.Now().UTC()}
	m.briefs[b.ID] = b
	return b, nil
}

func (m *MemoryStore) CreateProject(_ context.Context, name string) (*Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := &Project{ID: m.nextSequence(), Name: name, CreatedAt: time.Now().UTC()}
	m.projects[p.ID] = p
	return p, nil
}

func (m *MemoryStore) SupplierExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.suppliers[id]
	return ok, nil
}

func (m *MemoryStore) ServiceExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.services[id]
	return ok, nil
}

func (m *MemoryStore) BriefExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.briefs[id]
	return ok, nil
}

func (m *MemoryStore) ProjectExists(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.projects[id]
	return ok, nil
}
