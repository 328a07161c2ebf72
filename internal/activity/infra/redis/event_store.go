package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/storefront/internal/activity/domain"
)

// EventStore appends activity events to a Redis list under
// "activity:<userID>", one JSON document per event.
type EventStore struct {
	client *goredis.Client
}

func NewEventStore(client *goredis.Client) *EventStore {
	return &EventStore{client: client}
}

type eventDoc struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Action      string          `json:"action"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (s *EventStore) Append(ctx context.Context, userID string, ev domain.Event) error {
	raw, err := json.Marshal(eventDoc{
		ID:          ev.ID,
		ProductID:   ev.Item.ProductID,
		Title:       ev.Item.Title,
		Image:       ev.Item.Image,
		Description: ev.Item.Description,
		Price:       ev.Item.Price,
		Action:      string(ev.Action),
		Timestamp:   ev.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("encode activity event: %w", err)
	}
	if err := s.client.RPush(ctx, activityKey(userID), raw).Err(); err != nil {
		return fmt.Errorf("append activity event: %w", err)
	}
	return nil
}

func (s *EventStore) List(ctx context.Context, userID string) ([]domain.Event, error) {
	raws, err := s.client.LRange(ctx, activityKey(userID), 0, -1).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list activity events: %w", err)
	}

	events := make([]domain.Event, 0, len(raws))
	for i, raw := range raws {
		var doc eventDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, fmt.Errorf("decode activity event %d: %w", i, err)
		}
		events = append(events, domain.Event{
			ID: doc.ID,
			Item: domain.Item{
				ProductID:   doc.ProductID,
				Title:       doc.Title,
				Image:       doc.Image,
				Description: doc.Description,
				Price:       doc.Price,
			},
			Action:    domain.Action(doc.Action),
			Timestamp: doc.Timestamp,
		})
	}
	return events, nil
}

func activityKey(userID string) string {
	return "activity:" + userID
}
