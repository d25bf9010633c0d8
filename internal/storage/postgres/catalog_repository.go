package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type categoryRepository struct {
	q querier
}

func (r *categoryRepository) Create(ctx context.Context, c domain.Category) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at) VALUES ($1,$2,$3)
	`, c.ID, c.Name, c.CreatedAt); err != nil {
		return fmt.Errorf("insert category: %w", translate(err, domain.EntityCategory, c.ID))
	}
	return nil
}

func (r *categoryRepository) Get(ctx context.Context, id string) (domain.Category, error) {
	var c domain.Category
	err := r.q.QueryRowContext(ctx, `SELECT id, name, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Category{}, domain.ErrCategoryNotFound
		}
		return domain.Category{}, fmt.Errorf("select category: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (r *categoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", translate(err, domain.EntityCategory, id))
	}
	return affectedOrNotFound(res, domain.ErrCategoryNotFound)
}

type supplierRepository struct {
	q querier
}

func (r *supplierRepository) Create(ctx context.Context, s domain.Supplier) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact, created_at) VALUES ($1,$2,$3,$4)
	`, s.ID, s.Name, s.Contact, s.CreatedAt); err != nil {
		return fmt.Errorf("insert supplier: %w", translate(err, domain.EntitySupplier, s.ID))
	}
	return nil
}

func (r *supplierRepository) Get(ctx context.Context, id string) (domain.Supplier, error) {
	var s domain.Supplier
	err := r.q.QueryRowContext(ctx, `SELECT id, name, contact, created_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Contact, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Supplier{}, domain.ErrSupplierNotFound
		}
		return domain.Supplier{}, fmt.Errorf("select supplier: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()
	return s, nil
}

func (r *supplierRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete supplier: %w", translate(err, domain.EntitySupplier, id))
	}
	return affectedOrNotFound(res, domain.ErrSupplierNotFound)
}

type purchaseOrderRepository struct {
	q querier
}

func (r *purchaseOrderRepository) Create(ctx context.Context, po domain.PurchaseOrder) error {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO purchase_orders (id, supplier_id, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5)
	`, po.ID, nullStringPtr(po.SupplierID), string(po.Status), po.CreatedAt, po.UpdatedAt); err != nil {
		return fmt.Errorf("insert purchase order: %w", translate(err, domain.EntityPurchaseOrder, po.ID))
	}

	for i, line := range po.Lines {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO purchase_order_lines (id, purchase_order_id, position, product_id, quantity, unit_cost)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, line.ID, po.ID, i, line.ProductID, line.Quantity, line.UnitCost); err != nil {
			return fmt.Errorf("insert purchase order line: %w", translate(err, domain.EntityPurchaseOrderLine, line.ID))
		}
	}
	return nil
}

func (r *purchaseOrderRepository) Get(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	orders, err := r.list(ctx, `
		SELECT id, supplier_id, status, created_at, updated_at FROM purchase_orders WHERE id = $1
	`, id)
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	if len(orders) == 0 {
		return domain.PurchaseOrder{}, domain.ErrPurchaseOrderNotFound
	}
	return orders[0], nil
}

func (r *purchaseOrderRepository) ListBySupplier(ctx context.Context, supplierID string) ([]domain.PurchaseOrder, error) {
	return r.list(ctx, `
		SELECT id, supplier_id, status, created_at, updated_at
		FROM purchase_orders
		WHERE supplier_id = $1
		ORDER BY id
	`, supplierID)
}

func (r *purchaseOrderRepository) DetachSupplier(ctx context.Context, supplierID string) (int, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE purchase_orders SET supplier_id = NULL, updated_at = $2 WHERE supplier_id = $1
	`, supplierID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("detach supplier: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *purchaseOrderRepository) Delete(ctx context.Context, id string) (int, error) {
	var lines int
	if err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchase_order_lines WHERE purchase_order_id = $1
	`, id).Scan(&lines); err != nil {
		return 0, fmt.Errorf("count purchase order lines: %w", err)
	}

	res, err := r.q.ExecContext(ctx, `DELETE FROM purchase_orders WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete purchase order: %w", translate(err, domain.EntityPurchaseOrder, id))
	}
	if err := affectedOrNotFound(res, domain.ErrPurchaseOrderNotFound); err != nil {
		return 0, err
	}
	return lines, nil
}

func (r *purchaseOrderRepository) CountLinesByProduct(ctx context.Context, productID string) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM purchase_order_lines WHERE product_id = $1
	`, productID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count product purchase order lines: %w", err)
	}
	return n, nil
}

func (r *purchaseOrderRepository) list(ctx context.Context, query string, args ...any) ([]domain.PurchaseOrder, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select purchase orders: %w", err)
	}

	orders := make([]domain.PurchaseOrder, 0)
	index := make(map[string]int)
	for rows.Next() {
		var (
			po         domain.PurchaseOrder
			supplierID sql.NullString
			status     string
		)
		if err := rows.Scan(&po.ID, &supplierID, &status, &po.CreatedAt, &po.UpdatedAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		po.SupplierID = stringPtr(supplierID)
		po.Status = domain.PurchaseOrderStatus(status)
		po.CreatedAt = po.CreatedAt.UTC()
		po.UpdatedAt = po.UpdatedAt.UTC()
		index[po.ID] = len(orders)
		orders = append(orders, po)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate purchase orders: %w", err)
	}
	_ = rows.Close()

	if len(orders) == 0 {
		return orders, nil
	}
	ids := make([]string, 0, len(orders))
	for _, po := range orders {
		ids = append(ids, po.ID)
	}

	lineRows, err := r.q.QueryContext(ctx, `
		SELECT id, purchase_order_id, product_id, quantity, unit_cost
		FROM purchase_order_lines
		WHERE purchase_order_id = ANY($1)
		ORDER BY purchase_order_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load purchase order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var line domain.PurchaseOrderLine
		if err := lineRows.Scan(&line.ID, &line.PurchaseOrderID, &line.ProductID, &line.Quantity, &line.UnitCost); err != nil {
			return nil, fmt.Errorf("scan purchase order line: %w", err)
		}
		i := index[line.PurchaseOrderID]
		orders[i].Lines = append(orders[i].Lines, line)
	}
	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase order lines: %w", err)
	}
	return orders, nil
}

var (
	_ domain.CategoryRepository      = (*categoryRepository)(nil)
	_ domain.SupplierRepository      = (*supplierRepository)(nil)
	_ domain.PurchaseOrderRepository = (*purchaseOrderRepository)(nil)
)
