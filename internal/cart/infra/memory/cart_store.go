package memory

import (
	"context"
	"sync"

	"github.com/dwikikusuma/storefront/internal/cart/app"
	"github.com/dwikikusuma/storefront/internal/cart/domain"
)

// CartStore is an in-process document store, used by tests and by the
// gateway when no Redis address is configured. Documents are keyed by
// user id and replaced wholesale on Put.
type CartStore struct {
	mu   sync.RWMutex
	docs map[string]domain.Snapshot
}

func NewCartStore() *CartStore {
	return &CartStore{docs: make(map[string]domain.Snapshot)}
}

func (s *CartStore) Get(ctx context.Context, userID string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.docs[userID]
	if !ok {
		return nil, app.ErrCartNotFound
	}
	return snap.Clone(), nil
}

func (s *CartStore) Put(ctx context.Context, userID string, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[userID] = snap.Clone()
	return nil
}
