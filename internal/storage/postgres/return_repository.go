package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const returnColumns = `id, sale_id, customer_id, status, reason, created_at, updated_at`

type returnRepository struct {
	q querier
}

func (r *returnRepository) Create(ctx context.Context, ret domain.Return) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO returns (`+returnColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ret.ID, ret.SaleID, nullString(ret.CustomerID), string(ret.Status), ret.Reason, ret.CreatedAt, ret.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert return: %w", translate(err, domain.EntityReturn, ret.ID))
	}

	for _, item := range ret.Items {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO return_items (id, return_id, sale_line_id, product_id, quantity, refund_amount)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, item.ID, ret.ID, item.SaleLineID, item.ProductID, item.Quantity, item.RefundAmount); err != nil {
			return fmt.Errorf("insert return item: %w", translate(err, domain.EntityReturnItem, item.ID))
		}
	}
	return nil
}

func (r *returnRepository) Get(ctx context.Context, id string) (domain.Return, error) {
	ret, err := scanReturn(r.q.QueryRowContext(ctx, `SELECT `+returnColumns+` FROM returns WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Return{}, domain.ErrReturnNotFound
		}
		return domain.Return{}, fmt.Errorf("select return: %w", err)
	}
	loaded, err := r.loadItems(ctx, []domain.Return{ret})
	if err != nil {
		return domain.Return{}, err
	}
	return loaded[0], nil
}

func (r *returnRepository) UpdateStatus(ctx context.Context, id string, status domain.ReturnStatus) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE returns SET status = $2, updated_at = $3 WHERE id = $1
	`, id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update return status: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrReturnNotFound)
}

func (r *returnRepository) ListBySale(ctx context.Context, saleID string) ([]domain.Return, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+returnColumns+`
		FROM returns
		WHERE sale_id = $1
		ORDER BY created_at, id
	`, saleID)
	if err != nil {
		return nil, fmt.Errorf("list returns: %w", err)
	}

	returns := make([]domain.Return, 0)
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan return: %w", err)
		}
		returns = append(returns, ret)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate returns: %w", err)
	}
	_ = rows.Close()

	return r.loadItems(ctx, returns)
}

func (r *returnRepository) CountBySale(ctx context.Context, saleID string, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM returns WHERE sale_id = $1`
	if activeOnly {
		query += ` AND status <> '` + string(domain.ReturnStatusCancelled) + `'`
	}
	return r.count(ctx, "count sale returns", query, saleID)
}

func (r *returnRepository) CountByCustomer(ctx context.Context, customerID string) (int, error) {
	return r.count(ctx, "count customer returns", `SELECT COUNT(*) FROM returns WHERE customer_id = $1`, customerID)
}

func (r *returnRepository) CountItemsByProduct(ctx context.Context, productID string) (int, error) {
	return r.count(ctx, "count product return items", `SELECT COUNT(*) FROM return_items WHERE product_id = $1`, productID)
}

func (r *returnRepository) DeleteBySale(ctx context.Context, saleID string) (int, int, error) {
	return r.deleteWhere(ctx, "sale_id", saleID)
}

func (r *returnRepository) DeleteByCustomer(ctx context.Context, customerID string) (int, int, error) {
	return r.deleteWhere(ctx, "customer_id", customerID)
}

// deleteWhere удаляет возвраты (позиции уходят каскадом) и возвращает оба счётчика.
func (r *returnRepository) deleteWhere(ctx context.Context, column, value string) (int, int, error) {
	items, err := r.count(ctx, "count return items", `
		SELECT COUNT(*)
		FROM return_items ri
		JOIN returns rt ON rt.id = ri.return_id
		WHERE rt.`+column+` = $1
	`, value)
	if err != nil {
		return 0, 0, err
	}

	res, err := r.q.ExecContext(ctx, `DELETE FROM returns WHERE `+column+` = $1`, value)
	if err != nil {
		return 0, 0, fmt.Errorf("delete returns: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(deleted), items, nil
}

func (r *returnRepository) count(ctx context.Context, op, query string, args ...any) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return n, nil
}

func (r *returnRepository) loadItems(ctx context.Context, returns []domain.Return) ([]domain.Return, error) {
	if len(returns) == 0 {
		return returns, nil
	}
	ids := make([]string, 0, len(returns))
	index := make(map[string]int, len(returns))
	for i, ret := range returns {
		ids = append(ids, ret.ID)
		index[ret.ID] = i
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT id, return_id, sale_line_id, product_id, quantity, refund_amount
		FROM return_items
		WHERE return_id = ANY($1)
		ORDER BY return_id, id
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("load return items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.ReturnItem
		if err := rows.Scan(&item.ID, &item.ReturnID, &item.SaleLineID, &item.ProductID, &item.Quantity, &item.RefundAmount); err != nil {
			return nil, fmt.Errorf("scan return item: %w", err)
		}
		i := index[item.ReturnID]
		returns[i].Items = append(returns[i].Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate return items: %w", err)
	}
	return returns, nil
}

func scanReturn(row rowScanner) (domain.Return, error) {
	var (
		ret        domain.Return
		customerID sql.NullString
		status     string
	)
	if err := row.Scan(&ret.ID, &ret.SaleID, &customerID, &status, &ret.Reason, &ret.CreatedAt, &ret.UpdatedAt); err != nil {
		return domain.Return{}, err
	}
	ret.CustomerID = customerID.String
	ret.Status = domain.ReturnStatus(status)
	ret.CreatedAt = ret.CreatedAt.UTC()
	ret.UpdatedAt = ret.UpdatedAt.UTC()
	return ret, nil
}

var _ domain.ReturnRepository = (*returnRepository)(nil)
