package resident

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rezscan/pkg/domain"
	"rezscan/pkg/platform/sentinel"
)

// InMemory is the test double for the resident directory.
type InMemory struct {
	mu     sync.RWMutex
	byMDOC map[string]Resident
	byID   map[domain.ResidentID]Resident
}

// NewInMemory constructs an empty in-memory resident store.
func NewInMemory() *InMemory {
	return &InMemory{
		byMDOC: make(map[string]Resident),
		byID:   make(map[domain.ResidentID]Resident),
	}
}

func (s *InMemory) FindByMDOC(ctx context.Context, mdoc string) (*Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byMDOC[mdoc]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := r
	return &copied, nil
}

func (s *InMemory) FindByID(ctx context.Context, id domain.ResidentID) (*Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := r
	return &copied, nil
}

func (s *InMemory) Create(ctx context.Context, r *Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byMDOC[r.MDOC]; exists {
		return fmt.Errorf("%w: mdoc %q already registered", sentinel.ErrConflict, r.MDOC)
	}
	s.byMDOC[r.MDOC] = *r
	s.byID[r.ID] = *r
	return nil
}

func (s *InMemory) List(ctx context.Context) ([]Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	residents := make([]Resident, 0, len(s.byMDOC))
	for _, r := range s.byMDOC {
		residents = append(residents, r)
	}
	sort.Slice(residents, func(i, j int) bool { return residents[i].Name < residents[j].Name })
	return residents, nil
}
