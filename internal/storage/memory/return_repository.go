package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type returnRepository struct {
	tx *memTx
}

func (r *returnRepository) Create(_ context.Context, ret domain.Return) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.returns[ret.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.returns[ret.ID] = ret.Clone()
	return nil
}

func (r *returnRepository) Get(_ context.Context, id string) (domain.Return, error) {
	ret, ok := r.tx.st.returns[id]
	if !ok {
		return domain.Return{}, domain.ErrReturnNotFound
	}
	return ret.Clone(), nil
}

func (r *returnRepository) UpdateStatus(_ context.Context, id string, status domain.ReturnStatus) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	ret, ok := r.tx.st.returns[id]
	if !ok {
		return domain.ErrReturnNotFound
	}
	updated := ret.Clone()
	updated.Status = status
	updated.UpdatedAt = time.Now().UTC()
	r.tx.st.returns[id] = updated
	return nil
}

func (r *returnRepository) ListBySale(_ context.Context, saleID string) ([]domain.Return, error) {
	result := make([]domain.Return, 0)
	for _, ret := range r.tx.st.returns {
		if ret.SaleID == saleID {
			result = append(result, ret.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *returnRepository) CountBySale(_ context.Context, saleID string, activeOnly bool) (int, error) {
	count := 0
	for _, ret := range r.tx.st.returns {
		if ret.SaleID != saleID {
			continue
		}
		if activeOnly && !ret.Status.Active() {
			continue
		}
		count++
	}
	return count, nil
}

func (r *returnRepository) CountByCustomer(_ context.Context, customerID string) (int, error) {
	count := 0
	for _, ret := range r.tx.st.returns {
		if ret.CustomerID == customerID {
			count++
		}
	}
	return count, nil
}

func (r *returnRepository) CountItemsByProduct(_ context.Context, productID string) (int, error) {
	count := 0
	for _, ret := range r.tx.st.returns {
		for _, item := range ret.Items {
			if item.ProductID == productID {
				count++
			}
		}
	}
	return count, nil
}

func (r *returnRepository) DeleteBySale(_ context.Context, saleID string) (int, int, error) {
	return r.deleteWhere(func(ret domain.Return) bool { return ret.SaleID == saleID })
}

func (r *returnRepository) DeleteByCustomer(_ context.Context, customerID string) (int, int, error) {
	return r.deleteWhere(func(ret domain.Return) bool { return ret.CustomerID == customerID })
}

func (r *returnRepository) deleteWhere(match func(domain.Return) bool) (int, int, error) {
	if err := r.tx.checkWritable(); err != nil {
		return 0, 0, err
	}
	returns, items := 0, 0
	for id, ret := range r.tx.st.returns {
		if !match(ret) {
			continue
		}
		returns++
		items += len(ret.Items)
		delete(r.tx.st.returns, id)
	}
	return returns, items, nil
}

var _ domain.ReturnRepository = (*returnRepository)(nil)
