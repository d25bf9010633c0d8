package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const productColumns = `
	id, sku, name, category_id, supplier_id, price, tax_rate, stock_quantity, active,
	total_sold, total_revenue, version, created_at, updated_at`

type productRepository struct {
	q querier
}

func (r *productRepository) Create(ctx context.Context, p domain.Product) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		p.ID, p.SKU, p.Name, nullStringPtr(p.CategoryID), nullStringPtr(p.SupplierID),
		p.Price, p.TaxRate, p.StockQuantity, p.Active, p.TotalSold, p.TotalRevenue,
		p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", translate(err, domain.EntityProduct, p.ID))
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	product, err := scanProduct(r.q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// Lock берёт FOR UPDATE на строки товаров в порядке id.
func (r *productRepository) Lock(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan locked product: %w", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locked products: %w", err)
	}

	for _, id := range ids {
		if _, ok := result[id]; !ok {
			return nil, fmt.Errorf("product %s: %w", id, domain.ErrProductNotFound)
		}
	}
	return result, nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
		  AND stock_quantity + $2 >= 0
	`, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	return r.checkAffected(ctx, res, id, domain.ErrStockConflict)
}

func (r *productRepository) RecordSale(ctx context.Context, id string, quantity int, revenue decimal.Decimal) error {
	return r.exec(ctx, id, "record product sale", `
		UPDATE products
		SET total_sold = total_sold + $2,
		    total_revenue = total_revenue + $3,
		    version = version + 1,
		    updated_at = $4
		WHERE id = $1
	`, id, quantity, revenue, time.Now().UTC())
}

func (r *productRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, id, "set product active", `
		UPDATE products
		SET active = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $1
	`, id, active, time.Now().UTC())
}

func (r *productRepository) ClearCategory(ctx context.Context, categoryID string) (int, error) {
	return r.clear(ctx, "category_id", categoryID)
}

func (r *productRepository) ClearSupplier(ctx context.Context, supplierID string) (int, error) {
	return r.clear(ctx, "supplier_id", supplierID)
}

// clear обнуляет ссылку column; column приходит только из констант выше.
func (r *productRepository) clear(ctx context.Context, column, value string) (int, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE products
		SET `+column+` = NULL,
		    version = version + 1,
		    updated_at = $2
		WHERE `+column+` = $1
	`, value, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("clear product %s: %w", column, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", translate(err, domain.EntityProduct, id))
	}
	return r.checkAffected(ctx, res, id, nil)
}

func (r *productRepository) exec(ctx context.Context, id, op, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return r.checkAffected(ctx, res, id, nil)
}

// checkAffected различает отсутствующий товар и невыполненное условие UPDATE.
func (r *productRepository) checkAffected(ctx context.Context, res sql.Result, id string, conditionErr error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if conditionErr == nil {
		return domain.ErrProductNotFound
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return conditionErr
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		p                      domain.Product
		categoryID, supplierID sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &categoryID, &supplierID, &p.Price, &p.TaxRate, &p.StockQuantity,
		&p.Active, &p.TotalSold, &p.TotalRevenue, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	p.CategoryID = stringPtr(categoryID)
	p.SupplierID = stringPtr(supplierID)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
