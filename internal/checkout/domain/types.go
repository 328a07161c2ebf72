package domain

import "github.com/shopspring/decimal"

type QuoteLine struct {
	ProductID string
	Title     string
	Quantity  int32
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Quote is the read-only handoff passed to the external payment widget.
type Quote struct {
	Lines []QuoteLine
	Total decimal.Decimal
}
