package app

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dwikikusuma/storefront/internal/activity/domain"
)

var ErrUnauthenticated = errors.New("no authenticated user")

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Recorder keeps the per-user activity trail. History collapses repeat
// events on the same product title to the most recent one.
type Recorder struct {
	store EventStore
	now   func() time.Time
}

func NewRecorder(store EventStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, userID string, item domain.Item, action domain.Action) (domain.Event, error) {
	if userID == "" {
		return domain.Event{}, ErrUnauthenticated
	}

	ev := domain.Event{
		ID:        uuid.NewString(),
		Item:      item,
		Action:    action,
		Timestamp: r.now(),
	}
	if err := r.store.Append(ctx, userID, ev); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}

func (r *Recorder) History(ctx context.Context, userID string, order SortOrder) ([]domain.Event, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	events, err := r.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Keep only the most recent event per title. Append order means a
	// later entry for the same title always supersedes the earlier one.
	index := make(map[string]int, len(events))
	unique := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if i, ok := index[ev.Item.Title]; ok {
			unique[i] = ev
			continue
		}
		index[ev.Item.Title] = len(unique)
		unique = append(unique, ev)
	}

	sort.SliceStable(unique, func(i, j int) bool {
		if order == OrderAsc {
			return unique[i].Timestamp.Before(unique[j].Timestamp)
		}
		return unique[j].Timestamp.Before(unique[i].Timestamp)
	})
	return unique, nil
}
