package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const saleColumns = `
	id, customer_id, status, subtotal, discount_amount, tax_amount, shipping_cost, total,
	net_revenue, payment_method, payment_status, delivery_status, coupon_code,
	loyalty_points_earned, loyalty_points_used, version, created_at, updated_at,
	completed_at, cancelled_at`

type saleRepository struct {
	q querier
}

func (r *saleRepository) Create(ctx context.Context, sale domain.Sale) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO sales (`+saleColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		sale.ID, nullString(sale.CustomerID), string(sale.Status),
		sale.Subtotal, sale.DiscountAmount, sale.TaxAmount, sale.ShippingCost, sale.Total, sale.NetRevenue,
		sale.PaymentMethod, string(sale.PaymentStatus), string(sale.DeliveryStatus), sale.CouponCode,
		sale.LoyaltyPointsEarned, sale.LoyaltyPointsUsed, sale.Version, sale.CreatedAt, sale.UpdatedAt,
		nullTime(sale.CompletedAt), nullTime(sale.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("insert sale: %w", translate(err, domain.EntitySale, sale.ID))
	}
	return r.writeChildren(ctx, sale)
}

func (r *saleRepository) Get(ctx context.Context, id string) (domain.Sale, error) {
	sale, err := scanSale(r.q.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("select sale: %w", err)
	}

	loaded, err := r.loadChildren(ctx, []domain.Sale{sale})
	if err != nil {
		return domain.Sale{}, err
	}
	return loaded[0], nil
}

// Save обновляет продажу, если сохранённая версия совпадает с sale.Version.
// Позиции обновляются на месте, чтобы не ломать ссылки из позиций возвратов.
func (r *saleRepository) Save(ctx context.Context, sale domain.Sale) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE sales
		SET customer_id = $1,
		    status = $2,
		    subtotal = $3,
		    discount_amount = $4,
		    tax_amount = $5,
		    shipping_cost = $6,
		    total = $7,
		    net_revenue = $8,
		    payment_method = $9,
		    payment_status = $10,
		    delivery_status = $11,
		    coupon_code = $12,
		    loyalty_points_earned = $13,
		    loyalty_points_used = $14,
		    updated_at = $15,
		    completed_at = $16,
		    cancelled_at = $17,
		    version = version + 1
		WHERE id = $18
		  AND version = $19
	`,
		nullString(sale.CustomerID), string(sale.Status),
		sale.Subtotal, sale.DiscountAmount, sale.TaxAmount, sale.ShippingCost, sale.Total, sale.NetRevenue,
		sale.PaymentMethod, string(sale.PaymentStatus), string(sale.DeliveryStatus), sale.CouponCode,
		sale.LoyaltyPointsEarned, sale.LoyaltyPointsUsed, sale.UpdatedAt,
		nullTime(sale.CompletedAt), nullTime(sale.CancelledAt),
		sale.ID, sale.Version,
	)
	if err != nil {
		return fmt.Errorf("update sale: %w", translate(err, domain.EntitySale, sale.ID))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, sale.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrSaleNotFound
		}
		return domain.ErrVersionConflict
	}

	lineIDs := make([]string, 0, len(sale.Lines))
	for _, line := range sale.Lines {
		lineIDs = append(lineIDs, line.ID)
	}
	if _, err := r.q.ExecContext(ctx, `
		DELETE FROM sale_lines WHERE sale_id = $1 AND NOT (id = ANY($2))
	`, sale.ID, lineIDs); err != nil {
		return fmt.Errorf("delete replaced sale lines: %w", translate(err, domain.EntitySaleLine, sale.ID))
	}
	if _, err := r.q.ExecContext(ctx, `DELETE FROM applied_promotions WHERE sale_id = $1`, sale.ID); err != nil {
		return fmt.Errorf("delete applied promotions: %w", err)
	}
	return r.writeChildren(ctx, sale)
}

func (r *saleRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sale: %w", translate(err, domain.EntitySale, id))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrSaleNotFound
	}
	return nil
}

func (r *saleRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE customer_id = $1
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		return r.list(ctx, query+" LIMIT $2", customerID, limit)
	}
	return r.list(ctx, query, customerID)
}

func (r *saleRepository) ListByWindow(ctx context.Context, from, to time.Time) ([]domain.Sale, error) {
	return r.list(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
}

func (r *saleRepository) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sales WHERE customer_id = $1`, customerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count customer sales: %w", err)
	}
	return count, nil
}

func (r *saleRepository) CountLinesByProduct(ctx context.Context, productID string) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sale_lines WHERE product_id = $1`, productID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count product sale lines: %w", err)
	}
	return count, nil
}

func (r *saleRepository) list(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}

	sales := make([]domain.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan sale row: %w", err)
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sale rows: %w", err)
	}
	// Внутри транзакции соединение одно: курсор закрывается до запросов за позициями.
	_ = rows.Close()

	return r.loadChildren(ctx, sales)
}

func (r *saleRepository) writeChildren(ctx context.Context, sale domain.Sale) error {
	for i, line := range sale.Lines {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO sale_lines (
				id, sale_id, position, product_id, product_name, quantity,
				unit_price, discount, tax, line_total
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE
			SET position = EXCLUDED.position,
			    product_id = EXCLUDED.product_id,
			    product_name = EXCLUDED.product_name,
			    quantity = EXCLUDED.quantity,
			    unit_price = EXCLUDED.unit_price,
			    discount = EXCLUDED.discount,
			    tax = EXCLUDED.tax,
			    line_total = EXCLUDED.line_total
		`,
			line.ID, sale.ID, i, line.ProductID, line.ProductName, line.Quantity,
			line.UnitPrice, line.Discount, line.Tax, line.LineTotal,
		); err != nil {
			return fmt.Errorf("write sale line: %w", translate(err, domain.EntitySaleLine, line.ID))
		}
	}

	for i, ap := range sale.AppliedPromotions {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO applied_promotions (
				id, sale_id, position, promotion_id, promotion_name, coupon_code, discount_type,
				discount_value, discount_amount, original_amount, final_amount, auto_applied, applied_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`,
			ap.ID, sale.ID, i, ap.PromotionID, ap.PromotionName, ap.CouponCode, string(ap.DiscountType),
			ap.DiscountValue, ap.DiscountAmount, ap.OriginalAmount, ap.FinalAmount, ap.AutoApplied, ap.AppliedAt,
		); err != nil {
			return fmt.Errorf("write applied promotion: %w", translate(err, domain.EntityAppliedPromotion, ap.ID))
		}
	}
	return nil
}

// loadChildren подгружает позиции и акции пачкой для всех продаж.
func (r *saleRepository) loadChildren(ctx context.Context, sales []domain.Sale) ([]domain.Sale, error) {
	if len(sales) == 0 {
		return sales, nil
	}
	ids := make([]string, 0, len(sales))
	index := make(map[string]int, len(sales))
	for i, sale := range sales {
		ids = append(ids, sale.ID)
		index[sale.ID] = i
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price, discount, tax, line_total
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load sale lines: %w", err)
	}
	for rows.Next() {
		var line domain.SaleLine
		if err := rows.Scan(
			&line.ID, &line.SaleID, &line.ProductID, &line.ProductName, &line.Quantity,
			&line.UnitPrice, &line.Discount, &line.Tax, &line.LineTotal,
		); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		i := index[line.SaleID]
		sales[i].Lines = append(sales[i].Lines, line)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sale lines: %w", err)
	}
	_ = rows.Close()

	rows, err = r.q.QueryContext(ctx, `
		SELECT id, sale_id, promotion_id, promotion_name, coupon_code, discount_type, discount_value,
		       discount_amount, original_amount, final_amount, auto_applied, applied_at
		FROM applied_promotions
		WHERE sale_id = ANY($1)
		ORDER BY sale_id, position
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load applied promotions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ap           domain.AppliedPromotion
			discountType string
		)
		if err := rows.Scan(
			&ap.ID, &ap.SaleID, &ap.PromotionID, &ap.PromotionName, &ap.CouponCode, &discountType,
			&ap.DiscountValue, &ap.DiscountAmount, &ap.OriginalAmount, &ap.FinalAmount, &ap.AutoApplied, &ap.AppliedAt,
		); err != nil {
			return nil, fmt.Errorf("scan applied promotion: %w", err)
		}
		ap.DiscountType = domain.DiscountType(discountType)
		ap.AppliedAt = ap.AppliedAt.UTC()
		i := index[ap.SaleID]
		sales[i].AppliedPromotions = append(sales[i].AppliedPromotions, ap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied promotions: %w", err)
	}
	return sales, nil
}

func (r *saleRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.q.QueryRowContext(ctx, `SELECT id FROM sales WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check sale exists: %w", err)
}

func scanSale(row rowScanner) (domain.Sale, error) {
	var (
		sale                                  domain.Sale
		customerID                            sql.NullString
		status, paymentStatus, deliveryStatus string
		completedAt, cancelledAt              sql.NullTime
	)
	if err := row.Scan(
		&sale.ID, &customerID, &status,
		&sale.Subtotal, &sale.DiscountAmount, &sale.TaxAmount, &sale.ShippingCost, &sale.Total, &sale.NetRevenue,
		&sale.PaymentMethod, &paymentStatus, &deliveryStatus, &sale.CouponCode,
		&sale.LoyaltyPointsEarned, &sale.LoyaltyPointsUsed, &sale.Version, &sale.CreatedAt, &sale.UpdatedAt,
		&completedAt, &cancelledAt,
	); err != nil {
		return domain.Sale{}, err
	}
	sale.CustomerID = customerID.String
	sale.Status = domain.SaleStatus(status)
	sale.PaymentStatus = domain.PaymentStatus(paymentStatus)
	sale.DeliveryStatus = domain.DeliveryStatus(deliveryStatus)
	sale.CreatedAt = sale.CreatedAt.UTC()
	sale.UpdatedAt = sale.UpdatedAt.UTC()
	sale.CompletedAt = timePtr(completedAt)
	sale.CancelledAt = timePtr(cancelledAt)
	return sale, nil
}

var _ domain.SaleRepository = (*saleRepository)(nil)
