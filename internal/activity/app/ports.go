package app

import (
	"context"

	"github.com/dwikikusuma/storefront/internal/activity/domain"
)

// EventStore is the per-user activity document. Append adds one event;
// List returns all recorded events in append order.
type EventStore interface {
	Append(ctx context.Context, userID string, ev domain.Event) error
	List(ctx context.Context, userID string) ([]domain.Event, error)
}
