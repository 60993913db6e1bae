package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used when no database is configured
type MemoryRepository struct {
	mu       sync.RWMutex
	routes   map[string][]*RouteRecord
	alerts   []*EmergencyAlert
	profiles map[string]*Profile
	now      func() time.Time
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		routes:   make(map[string][]*RouteRecord),
		profiles: make(map[string]*Profile),
		now:      time.Now,
	}
}

func (m *MemoryRepository) SaveRoute(ctx context.Context, r *RouteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareRoute(r, m.now())
	stored := *r
	m.routes[r.UserID] = append(m.routes[r.UserID], &stored)
	return nil
}

func (m *MemoryRepository) ListRoutes(ctx context.Context, userID string, limit int) ([]*RouteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := m.routes[userID]
	out := make([]*RouteRecord, 0, len(routes))
	// Newest first; later inserts win ties
	for i := len(routes) - 1; i >= 0; i-- {
		r := *routes[i]
		out = append(out, &r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryRepository) GetRoute(ctx context.Context, userID string, id uuid.UUID) (*RouteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.routes[userID] {
		if r.ID == id {
			out := *r
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryRepository) SaveAlert(ctx context.Context, a *EmergencyAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prepareAlert(a, m.now())
	stored := *a
	m.alerts = append(m.alerts, &stored)
	return nil
}

// Alerts returns a copy of the saved alerts
func (m *MemoryRepository) Alerts() []EmergencyAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EmergencyAlert, len(m.alerts))
	for i, a := range m.alerts {
		out[i] = *a
	}
	return out
}

func (m *MemoryRepository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	return &out, nil
}

func (m *MemoryRepository) UpsertProfile(ctx context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p.UpdatedAt = m.now()
	stored := *p
	m.profiles[p.UserID] = &stored
	return nil
}
