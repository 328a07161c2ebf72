package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is the catalog projection the cart needs to open a new line.
// Price and display fields are snapshotted at add-time and never re-fetched.
type Product struct {
	ID          string
	Title       string
	Image       string
	Description string
	UnitPrice   decimal.Decimal
}

// Line is one product entry in a cart. Quantity is always >= 1; a line
// that would reach quantity 0 must be removed instead.
type Line struct {
	ProductID   string
	Title       string
	Image       string
	Description string
	UnitPrice   decimal.Decimal
	Quantity    int32
}

// Subtotal is UnitPrice * Quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity))
}

// Snapshot is the complete cart content at one instant, in insertion
// (= display) order. It is the unit of remote persistence: the store
// always replaces the whole document, never merges.
type Snapshot []Line

func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Find returns the index of the line holding productID, or -1.
func (s Snapshot) Find(productID string) int {
	for i, l := range s {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Equal compares two snapshots by their (productID, quantity) sequences.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].ProductID != other[i].ProductID || s[i].Quantity != other[i].Quantity {
			return false
		}
	}
	return true
}

// ItemCount is the aggregate quantity across all lines. It is always
// derived from the lines, never stored, so it cannot drift.
func (s Snapshot) ItemCount() int {
	n := 0
	for _, l := range s {
		n += int(l.Quantity)
	}
	return n
}

// Total is the sum of line subtotals.
func (s Snapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Validate rejects line shapes a remote document must never contain.
// Remote documents are loosely shaped; callers at the store boundary
// run this before trusting a decoded snapshot.
func (s Snapshot) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for i, l := range s {
		if l.ProductID == "" {
			return fmt.Errorf("line %d: empty product id", i)
		}
		if _, dup := seen[l.ProductID]; dup {
			return fmt.Errorf("line %d: duplicate product id %q", i, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
		if l.Quantity < 1 {
			return fmt.Errorf("line %d (%s): quantity %d below 1", i, l.ProductID, l.Quantity)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d (%s): negative unit price %s", i, l.ProductID, l.UnitPrice)
		}
	}
	return nil
}

// SyncStatus reports how the local cart relates to its remote copy.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncFailed  SyncStatus = "failed"
)
