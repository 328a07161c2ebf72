package app

import (
	"errors"
	"fmt"

	cartdomain "github.com/dwikikusuma/storefront/internal/cart/domain"
	"github.com/dwikikusuma/storefront/internal/checkout/domain"
)

var ErrEmptyCart = errors.New("cart is empty")

// Service turns a cart snapshot into the quote handed to the payment
// provider. Prices come from the snapshot lines (captured at add-time),
// so building a quote needs no catalog round trip.
//
// The engine is not told about the handoff: after the external payment
// confirms, the caller clears the cart itself.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Quote(snap cartdomain.Snapshot) (domain.Quote, error) {
	if len(snap) == 0 {
		return domain.Quote{}, ErrEmptyCart
	}

	lines := make([]domain.QuoteLine, 0, len(snap))
	for i, l := range snap {
		if l.Quantity <= 0 {
			return domain.Quote{}, fmt.Errorf("line %d (%s): quantity must be greater than zero: %d", i, l.ProductID, l.Quantity)
		}
		lines = append(lines, domain.QuoteLine{
			ProductID: l.ProductID,
			Title:     l.Title,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.Subtotal(),
		})
	}

	return domain.Quote{
		Lines: lines,
		Total: snap.Total(),
	}, nil
}
