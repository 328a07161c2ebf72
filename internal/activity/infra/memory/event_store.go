package memory

import (
	"context"
	"sync"

	"github.com/dwikikusuma/storefront/internal/activity/domain"
)

type EventStore struct {
	mu   sync.RWMutex
	docs map[string][]domain.Event
}

func NewEventStore() *EventStore {
	return &EventStore{docs: make(map[string][]domain.Event)}
}

func (s *EventStore) Append(ctx context.Context, userID string, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = append(s.docs[userID], ev)
	return nil
}

func (s *EventStore) List(ctx context.Context, userID string) ([]domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.docs[userID]
	out := make([]domain.Event, len(events))
	copy(out, events)
	return out, nil
}
