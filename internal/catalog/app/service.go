package app

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/dwikikusuma/storefront/internal/catalog/domain"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Filter narrows the listing before sorting: exact category match (empty
// matches all) AND case-insensitive substring search on the title.
type Filter struct {
	Category string
	Query    string
}

func (f Filter) matches(p domain.Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Query != "" &&
		!strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

type SortKey string

const (
	SortNone     SortKey = ""
	SortByPrice  SortKey = "price"
	SortByRating SortKey = "rating"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// SortSelection is the single-key sort state of a listing. Keys are
// mutually exclusive: toggling one clears the other.
type SortSelection struct {
	Key   SortKey
	Order SortOrder
}

// Toggle activates key ascending, or flips the direction when key is
// already active.
func (s SortSelection) Toggle(key SortKey) SortSelection {
	if s.Key != key {
		return SortSelection{Key: key, Order: OrderAsc}
	}
	if s.Order == OrderAsc {
		return SortSelection{Key: key, Order: OrderDesc}
	}
	return SortSelection{Key: key, Order: OrderAsc}
}

type Service struct {
	repo ProductRepo
}

func NewService(repo ProductRepo) *Service {
	return &Service{repo: repo}
}

// ListProducts filters first, then applies a stable single-key sort; ties
// keep their prior relative order.
func (s *Service) ListProducts(ctx context.Context, f Filter, sel SortSelection) ([]domain.Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	products := make([]domain.Product, 0, len(all))
	for _, p := range all {
		if f.matches(p) {
			products = append(products, p)
		}
	}

	switch sel.Key {
	case SortByPrice:
		sort.SliceStable(products, func(i, j int) bool {
			if sel.Order == OrderDesc {
				i, j = j, i
			}
			return products[i].Price.LessThan(products[j].Price)
		})
	case SortByRating:
		sort.SliceStable(products, func(i, j int) bool {
			if sel.Order == OrderDesc {
				i, j = j, i
			}
			return products[i].Rating.Rate < products[j].Rating.Rate
		})
	}

	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}
