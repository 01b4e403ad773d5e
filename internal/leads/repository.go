package leads

import (
	"context"
	"sort"
	"sync"
)

// Repository defines the interface for lead storage. Create and Insert are
// idempotent on the lead ID; Insert also reports whether a new row was written.
type Repository interface {
	Create(ctx context.Context, lead *LeadRecord) (*LeadRecord, error)
	Insert(ctx context.Context, lead *LeadRecord) (*LeadRecord, bool, error)
	GetByID(ctx context.Context, id string) (*LeadRecord, error)
	List(ctx context.Context, filter ListFilter) ([]*LeadRecord, error)
}

// InMemoryRepository keeps leads in process memory for development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*LeadRecord
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{leads: make(map[string]*LeadRecord)}
}

func (r *InMemoryRepository) Create(ctx context.Context, lead *LeadRecord) (*LeadRecord, error) {
	stored, _, err := r.Insert(ctx, lead)
	return stored, err
}

func (r *InMemoryRepository) Insert(ctx context.Context, lead *LeadRecord) (*LeadRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.leads[lead.ID]; ok {
		return existing, false, nil
	}
	stored := *lead
	r.leads[lead.ID] = &stored
	return &stored, true, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*LeadRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// List returns leads newest first.
func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*LeadRecord, error) {
	r.mu.RLock()
	out := make([]*LeadRecord, 0, len(r.leads))
	for _, lead := range r.leads {
		if filter.Status != "" && lead.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && lead.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, lead)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*LeadRecord{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len reports how many leads are stored.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.leads)
}
