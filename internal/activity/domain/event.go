package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionAddedToCart   Action = "added_to_cart"
	ActionViewedDetails Action = "viewed_details"
)

// Item is the product snapshot carried by an event, opaque to the
// recorder beyond the title it deduplicates on.
type Item struct {
	ProductID   string
	Title       string
	Image       string
	Description string
	Price       decimal.Decimal
}

type Event struct {
	ID        string
	Item      Item
	Action    Action
	Timestamp time.Time
}
