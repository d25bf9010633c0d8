package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type productRepository struct {
	tx *memTx
}

func (r *productRepository) Create(_ context.Context, product domain.Product) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.products[product.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.products[product.ID] = product.Clone()
	return nil
}

func (r *productRepository) Get(_ context.Context, id string) (domain.Product, error) {
	product, ok := r.tx.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product.Clone(), nil
}

// Lock в памяти не нужен: единица работы и так держит эксклюзивную блокировку.
func (r *productRepository) Lock(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		product, err := r.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
		result[id] = product
	}
	return result, nil
}

func (r *productRepository) AdjustStock(_ context.Context, id string, delta int) error {
	return r.update(id, func(p *domain.Product) error {
		if p.StockQuantity+delta < 0 {
			return domain.ErrStockConflict
		}
		p.StockQuantity += delta
		return nil
	})
}

func (r *productRepository) RecordSale(_ context.Context, id string, quantity int, revenue decimal.Decimal) error {
	return r.update(id, func(p *domain.Product) error {
		p.TotalSold += quantity
		p.TotalRevenue = p.TotalRevenue.Add(revenue)
		return nil
	})
}

func (r *productRepository) SetActive(_ context.Context, id string, active bool) error {
	return r.update(id, func(p *domain.Product) error {
		p.Active = active
		return nil
	})
}

func (r *productRepository) ClearCategory(_ context.Context, categoryID string) (int, error) {
	return r.clearReference(
		func(p domain.Product) bool { return p.CategoryID != nil && *p.CategoryID == categoryID },
		func(p *domain.Product) { p.CategoryID = nil },
	)
}

func (r *productRepository) ClearSupplier(_ context.Context, supplierID string) (int, error) {
	return r.clearReference(
		func(p domain.Product) bool { return p.SupplierID != nil && *p.SupplierID == supplierID },
		func(p *domain.Product) { p.SupplierID = nil },
	)
}

func (r *productRepository) clearReference(match func(domain.Product) bool, clear func(*domain.Product)) (int, error) {
	if err := r.tx.checkWritable(); err != nil {
		return 0, err
	}
	cleared := 0
	now := time.Now().UTC()
	for id, product := range r.tx.st.products {
		if !match(product) {
			continue
		}
		updated := product.Clone()
		clear(&updated)
		updated.Version++
		updated.UpdatedAt = now
		r.tx.st.products[id] = updated
		cleared++
	}
	return cleared, nil
}

func (r *productRepository) Delete(_ context.Context, id string) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.tx.st.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.tx.st.products, id)
	return nil
}

func (r *productRepository) update(id string, mutate func(p *domain.Product) error) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	product, ok := r.tx.st.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	updated := product.Clone()
	if err := mutate(&updated); err != nil {
		return err
	}
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	r.tx.st.products[id] = updated
	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
