package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type categoryRepository struct {
	tx *memTx
}

func (r *categoryRepository) Create(_ context.Context, category domain.Category) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.categories[category.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.categories[category.ID] = category
	return nil
}

func (r *categoryRepository) Get(_ context.Context, id string) (domain.Category, error) {
	category, ok := r.tx.st.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return category, nil
}

func (r *categoryRepository) Delete(_ context.Context, id string) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.tx.st.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(r.tx.st.categories, id)
	return nil
}

type supplierRepository struct {
	tx *memTx
}

func (r *supplierRepository) Create(_ context.Context, supplier domain.Supplier) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.suppliers[supplier.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.suppliers[supplier.ID] = supplier
	return nil
}

func (r *supplierRepository) Get(_ context.Context, id string) (domain.Supplier, error) {
	supplier, ok := r.tx.st.suppliers[id]
	if !ok {
		return domain.Supplier{}, domain.ErrSupplierNotFound
	}
	return supplier, nil
}

func (r *supplierRepository) Delete(_ context.Context, id string) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.tx.st.suppliers[id]; !ok {
		return domain.ErrSupplierNotFound
	}
	delete(r.tx.st.suppliers, id)
	return nil
}

type purchaseOrderRepository struct {
	tx *memTx
}

func (r *purchaseOrderRepository) Create(_ context.Context, order domain.PurchaseOrder) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.purchaseOrders[order.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.purchaseOrders[order.ID] = order.Clone()
	return nil
}

func (r *purchaseOrderRepository) Get(_ context.Context, id string) (domain.PurchaseOrder, error) {
	order, ok := r.tx.st.purchaseOrders[id]
	if !ok {
		return domain.PurchaseOrder{}, domain.ErrPurchaseOrderNotFound
	}
	return order.Clone(), nil
}

func (r *purchaseOrderRepository) ListBySupplier(_ context.Context, supplierID string) ([]domain.PurchaseOrder, error) {
	result := make([]domain.PurchaseOrder, 0)
	for _, order := range r.tx.st.purchaseOrders {
		if order.SupplierID != nil && *order.SupplierID == supplierID {
			result = append(result, order.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *purchaseOrderRepository) DetachSupplier(_ context.Context, supplierID string) (int, error) {
	if err := r.tx.checkWritable(); err != nil {
		return 0, err
	}
	detached := 0
	now := time.Now().UTC()
	for id, order := range r.tx.st.purchaseOrders {
		if order.SupplierID == nil || *order.SupplierID != supplierID {
			continue
		}
		updated := order.Clone()
		updated.SupplierID = nil
		updated.UpdatedAt = now
		r.tx.st.purchaseOrders[id] = updated
		detached++
	}
	return detached, nil
}

func (r *purchaseOrderRepository) Delete(_ context.Context, id string) (int, error) {
	if err := r.tx.checkWritable(); err != nil {
		return 0, err
	}
	order, ok := r.tx.st.purchaseOrders[id]
	if !ok {
		return 0, domain.ErrPurchaseOrderNotFound
	}
	delete(r.tx.st.purchaseOrders, id)
	return len(order.Lines), nil
}

func (r *purchaseOrderRepository) CountLinesByProduct(_ context.Context, productID string) (int, error) {
	count := 0
	for _, order := range r.tx.st.purchaseOrders {
		for _, line := range order.Lines {
			if line.ProductID == productID {
				count++
			}
		}
	}
	return count, nil
}

var (
	_ domain.CategoryRepository      = (*categoryRepository)(nil)
	_ domain.SupplierRepository      = (*supplierRepository)(nil)
	_ domain.PurchaseOrderRepository = (*purchaseOrderRepository)(nil)
)
