package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type saleRepository struct {
	tx *memTx
}

func (r *saleRepository) Create(_ context.Context, sale domain.Sale) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.sales[sale.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.sales[sale.ID] = sale.Clone()
	return nil
}

func (r *saleRepository) Get(_ context.Context, id string) (domain.Sale, error) {
	sale, ok := r.tx.st.sales[id]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return sale.Clone(), nil
}

// Save перезаписывает продажу, проверяя версию (optimistic locking).
func (r *saleRepository) Save(_ context.Context, sale domain.Sale) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	current, ok := r.tx.st.sales[sale.ID]
	if !ok {
		return domain.ErrSaleNotFound
	}
	if current.Version != sale.Version {
		return domain.ErrVersionConflict
	}
	stored := sale.Clone()
	stored.Version++
	r.tx.st.sales[sale.ID] = stored
	return nil
}

func (r *saleRepository) Delete(_ context.Context, id string) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.tx.st.sales[id]; !ok {
		return domain.ErrSaleNotFound
	}
	delete(r.tx.st.sales, id)
	delete(r.tx.st.timeline, id)
	return nil
}

func (r *saleRepository) ListByCustomer(_ context.Context, customerID string, limit int) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0)
	for _, sale := range r.tx.st.sales {
		if sale.CustomerID != customerID {
			continue
		}
		result = append(result, sale.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *saleRepository) ListByWindow(_ context.Context, from, to time.Time) ([]domain.Sale, error) {
	result := make([]domain.Sale, 0)
	for _, sale := range r.tx.st.sales {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, sale.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *saleRepository) CountByCustomer(_ context.Context, customerID string) (int, error) {
	count := 0
	for _, sale := range r.tx.st.sales {
		if sale.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (r *saleRepository) CountLinesByProduct(_ context.Context, productID string) (int, error) {
	count := 0
	for _, sale := range r.tx.st.sales {
		for _, line := range sale.Lines {
			if line.ProductID == productID {
				count++
			}
		}
	}
	return count, nil
}

var _ domain.SaleRepository = (*saleRepository)(nil)
