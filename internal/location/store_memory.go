package location

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"rezscan/pkg/platform/sentinel"
)

// InMemory is the test double for the location directory.
type InMemory struct {
	mu        sync.RWMutex
	byPrefix  map[string]Location
	insertion []string
}

// NewInMemory constructs an empty in-memory location store.
func NewInMemory() *InMemory {
	return &InMemory{byPrefix: make(map[string]Location)}
}

func (s *InMemory) ResolveByPrefix(ctx context.Context, prefix string) (*Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.byPrefix[normalizePrefix(prefix)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := loc
	return &copied, nil
}

func (s *InMemory) Create(ctx context.Context, loc *Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalizePrefix(loc.Prefix)
	if _, exists := s.byPrefix[key]; exists {
		return fmt.Errorf("%w: prefix %q already mapped", sentinel.ErrConflict, loc.Prefix)
	}
	s.byPrefix[key] = *loc
	s.insertion = append(s.insertion, key)
	return nil
}

func (s *InMemory) List(ctx context.Context) ([]Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	locations := make([]Location, 0, len(s.byPrefix))
	for _, key := range s.insertion {
		locations = append(locations, s.byPrefix[key])
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Name < locations[j].Name })
	return locations, nil
}

func normalizePrefix(prefix string) string {
	return strings.ToUpper(strings.TrimSpace(prefix))
}
