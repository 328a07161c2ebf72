package domain

import "github.com/shopspring/decimal"

type Rating struct {
	Rate  float64
	Count int
}

type Product struct {
	ID          string
	Title       string
	Description string
	Image       string
	Category    string
	Price       decimal.Decimal
	Rating      Rating
}
