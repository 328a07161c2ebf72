package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/storefront/internal/catalog/app"
	"github.com/dwikikusuma/storefront/internal/catalog/domain"
)

// ProductRepo serves a fixed product list. Catalog retrieval is an
// external collaborator; the gateway only needs a working source.
type ProductRepo struct {
	mu       sync.RWMutex
	products []domain.Product
}

func NewProductRepo(products []domain.Product) *ProductRepo {
	return &ProductRepo{products: products}
}

func (r *ProductRepo) List(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, len(r.products))
	copy(out, r.products)
	return out, nil
}

func (r *ProductRepo) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, app.ErrNotFound
}

// DefaultCatalog is the demo seed used when no external catalog is wired.
func DefaultCatalog() []domain.Product {
	return []domain.Product{
		{
			ID:          "p-backpack",
			Title:       "Fjallraven Foldsack Backpack",
			Description: "Fits 15 inch laptops, everyday carry",
			Image:       "/img/backpack.jpg",
			Category:    "men's clothing",
			Price:       decimal.NewFromFloat(109.95),
			Rating:      domain.Rating{Rate: 3.9, Count: 120},
		},
		{
			ID:          "p-tshirt",
			Title:       "Slim Fit Casual T-Shirt",
			Description: "Lightweight cotton, slim fit",
			Image:       "/img/tshirt.jpg",
			Category:    "men's clothing",
			Price:       decimal.NewFromFloat(22.3),
			Rating:      domain.Rating{Rate: 4.1, Count: 259},
		},
		{
			ID:          "p-bracelet",
			Title:       "Gold Plated Princess Bracelet",
			Description: "Wedding and engagement jewelry",
			Image:       "/img/bracelet.jpg",
			Category:    "jewelery",
			Price:       decimal.NewFromFloat(695),
			Rating:      domain.Rating{Rate: 4.6, Count: 400},
		},
		{
			ID:          "p-ssd",
			Title:       "Portable External SSD 1TB",
			Description: "USB-C, 1050MB/s reads",
			Image:       "/img/ssd.jpg",
			Category:    "electronics",
			Price:       decimal.NewFromFloat(109),
			Rating:      domain.Rating{Rate: 4.8, Count: 319},
		},
		{
			ID:          "p-monitor",
			Title:       "49-Inch Curved Gaming Monitor",
			Description: "144Hz QLED ultrawide",
			Image:       "/img/monitor.jpg",
			Category:    "electronics",
			Price:       decimal.NewFromFloat(999.99),
			Rating:      domain.Rating{Rate: 2.2, Count: 140},
		},
		{
			ID:          "p-jacket",
			Title:       "Rain Jacket Windbreaker",
			Description: "Striped climbing shell with hood",
			Image:       "/img/jacket.jpg",
			Category:    "women's clothing",
			Price:       decimal.NewFromFloat(39.99),
			Rating:      domain.Rating{Rate: 3.8, Count: 679},
		},
	}
}
