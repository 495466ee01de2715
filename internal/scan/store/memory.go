package store

import (
	"context"
	"sort"
	"sync"

	"rezscan/internal/scan/models"
	"rezscan/pkg/domain"
	"rezscan/pkg/platform/sentinel"
)

// InMemory is the test double for the event log. RunForResident serializes
// with a per-resident mutex, giving the same guarantee the Postgres store
// gets from its advisory lock.
type InMemory struct {
	mu      sync.Mutex
	nextSeq int64
	events  []models.ScanEvent

	lockMu    sync.Mutex
	residents map[domain.ResidentID]*sync.Mutex
}

// NewInMemory constructs an empty in-memory event store.
func NewInMemory() *InMemory {
	return &InMemory{residents: make(map[domain.ResidentID]*sync.Mutex)}
}

func (s *InMemory) residentLock(residentID domain.ResidentID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.residents[residentID]
	if !ok {
		lock = &sync.Mutex{}
		s.residents[residentID] = lock
	}
	return lock
}

func (s *InMemory) RunForResident(ctx context.Context, residentID domain.ResidentID, fn func(txCtx context.Context) error) error {
	lock := s.residentLock(residentID)
	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}

func (s *InMemory) LastEvent(ctx context.Context, residentID domain.ResidentID) (*models.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *models.ScanEvent
	for i := range s.events {
		event := s.events[i]
		if event.ResidentID != residentID {
			continue
		}
		if last == nil || after(event, *last) {
			last = &event
		}
	}
	if last == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *last
	return &copied, nil
}

func (s *InMemory) Append(ctx context.Context, events ...*models.ScanEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range events {
		s.nextSeq++
		event.Seq = s.nextSeq
		s.events = append(s.events, *event)
	}
	return nil
}

func (s *InMemory) LatestPerResident(ctx context.Context) ([]models.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[domain.ResidentID]models.ScanEvent)
	for _, event := range s.events {
		current, ok := latest[event.ResidentID]
		if !ok || after(event, current) {
			latest[event.ResidentID] = event
		}
	}

	events := make([]models.ScanEvent, 0, len(latest))
	for _, event := range latest {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].ResidentID.String() < events[j].ResidentID.String()
	})
	return events, nil
}

func (s *InMemory) List(ctx context.Context, filter ListFilter) ([]models.ScanEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []models.ScanEvent
	for _, event := range s.events {
		if !filter.ResidentID.IsNil() && event.ResidentID != filter.ResidentID {
			continue
		}
		if filter.Location != "" && event.Location != filter.Location {
			continue
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		return after(events[i], events[j])
	})
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// after reports whether a sorts after b in (timestamp, seq) order.
func after(a, b models.ScanEvent) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.Seq > b.Seq
}
