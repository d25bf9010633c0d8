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

const customerColumns = `
	id, name, email, address, total_purchases, purchase_count, loyalty_points,
	last_purchase_at, created_at, updated_at`

type customerRepository struct {
	q querier
}

func (r *customerRepository) Create(ctx context.Context, c domain.Customer) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		c.ID, c.Name, c.Email, c.Address, c.TotalPurchases, c.PurchaseCount, c.LoyaltyPoints,
		nullTime(c.LastPurchaseAt), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert customer: %w", translate(err, domain.EntityCustomer, c.ID))
	}
	return nil
}

func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	customer, err := scanCustomer(r.q.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Customer, error) {
	result := make(map[string]domain.Customer, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.q.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		result[customer.ID] = customer
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return result, nil
}

func (r *customerRepository) AddLoyaltyPoints(ctx context.Context, id string, delta int) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $2,
		    updated_at = $3
		WHERE id = $1
		  AND loyalty_points + $2 >= 0
	`, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add loyalty points: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return domain.ErrLoyaltyPointsInsufficient
}

func (r *customerRepository) AddPurchaseTotal(ctx context.Context, id string, amount decimal.Decimal, purchases int, lastPurchaseAt *time.Time) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE customers
		SET total_purchases = total_purchases + $2,
		    purchase_count = purchase_count + $3,
		    last_purchase_at = $4,
		    updated_at = $5
		WHERE id = $1
	`, id, amount, purchases, nullTime(lastPurchaseAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("add purchase total: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrCustomerNotFound)
}

func (r *customerRepository) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", translate(err, domain.EntityCustomer, id))
	}
	return affectedOrNotFound(res, domain.ErrCustomerNotFound)
}

func affectedOrNotFound(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var (
		c            domain.Customer
		lastPurchase sql.NullTime
	)
	if err := row.Scan(
		&c.ID, &c.Name, &c.Email, &c.Address, &c.TotalPurchases, &c.PurchaseCount, &c.LoyaltyPoints,
		&lastPurchase, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Customer{}, err
	}
	c.LastPurchaseAt = timePtr(lastPurchase)
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
