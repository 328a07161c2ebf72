package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/storefront/internal/cart/app"
	"github.com/dwikikusuma/storefront/internal/cart/domain"
)

// CartStore keeps one JSON document per user under "cart:<userID>".
// Put always replaces the whole document, matching the engine's
// full-snapshot, last-write-wins contract.
type CartStore struct {
	client *goredis.Client
}

func NewCartStore(client *goredis.Client) *CartStore {
	return &CartStore{client: client}
}

type cartDoc struct {
	Items []cartLineDoc `json:"items"`
}

type cartLineDoc struct {
	ProductID   string          `json:"product_id"`
	Title       string          `json:"title"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int32           `json:"quantity"`
}

func (s *CartStore) Get(ctx context.Context, userID string) (domain.Snapshot, error) {
	raw, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, app.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cart document: %w", err)
	}
	return decodeCartDoc(raw)
}

func (s *CartStore) Put(ctx context.Context, userID string, snap domain.Snapshot) error {
	doc := cartDoc{Items: make([]cartLineDoc, 0, len(snap))}
	for _, l := range snap {
		doc.Items = append(doc.Items, cartLineDoc{
			ProductID:   l.ProductID,
			Title:       l.Title,
			Image:       l.Image,
			Description: l.Description,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		})
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode cart document: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("put cart document: %w", err)
	}
	return nil
}

// decodeCartDoc parses a remote document into a validated snapshot.
// Remote documents are never trusted as well-typed.
func decodeCartDoc(raw []byte) (domain.Snapshot, error) {
	var doc cartDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode cart document: %w", err)
	}

	snap := make(domain.Snapshot, 0, len(doc.Items))
	for _, it := range doc.Items {
		snap = append(snap, domain.Line{
			ProductID:   it.ProductID,
			Title:       it.Title,
			Image:       it.Image,
			Description: it.Description,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cart document: %w", err)
	}
	return snap, nil
}

func cartKey(userID string) string {
	return "cart:" + userID
}
