package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const promotionColumns = `
	id, name, type, value, starts_at, ends_at, min_order_amount, eligibility, auto_apply,
	stackable, active, usage_count, max_usage, coupon_code, version, created_at, updated_at`

type promotionRepository struct {
	q querier
}

func (r *promotionRepository) Create(ctx context.Context, p domain.Promotion) error {
	var endsAt sql.NullTime
	if !p.EndsAt.IsZero() {
		endsAt = sql.NullTime{Time: p.EndsAt, Valid: true}
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO promotions (`+promotionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		p.ID, p.Name, string(p.Type), p.Value, p.StartsAt, endsAt, p.MinOrderAmount,
		string(p.Eligibility), p.AutoApply, p.Stackable, p.Active, p.UsageCount,
		nullInt(p.MaxUsage), nullString(p.CouponCode), p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", translate(err, domain.EntityPromotion, p.ID))
	}
	return nil
}

func (r *promotionRepository) Get(ctx context.Context, id string) (domain.Promotion, error) {
	return r.one(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id)
}

// LockApplicable берёт FOR UPDATE на акции, которые может применить продажа.
// После блокировки FindActiveByWindow и FindByCoupon видят последний
// зафиксированный usage_count.
func (r *promotionRepository) LockApplicable(ctx context.Context, at time.Time, couponCode string) error {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id
		FROM promotions
		WHERE (active AND starts_at <= $1 AND (ends_at IS NULL OR ends_at > $1))
		   OR ($2 <> '' AND coupon_code = $2)
		ORDER BY id
		FOR UPDATE
	`, at, couponCode)
	if err != nil {
		return fmt.Errorf("lock promotions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan locked promotion: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate locked promotions: %w", err)
	}
	return nil
}

func (r *promotionRepository) FindActiveByWindow(ctx context.Context, at time.Time) ([]domain.Promotion, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+promotionColumns+`
		FROM promotions
		WHERE active
		  AND starts_at <= $1
		  AND (ends_at IS NULL OR ends_at > $1)
		ORDER BY id
	`, at)
	if err != nil {
		return nil, fmt.Errorf("select active promotions: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan promotion: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate promotions: %w", err)
	}
	return result, nil
}

func (r *promotionRepository) FindByCoupon(ctx context.Context, code string) (domain.Promotion, error) {
	if code == "" {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return r.one(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE coupon_code = $1`, code)
}

func (r *promotionRepository) IncrementUsage(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE promotions
		SET usage_count = usage_count + 1,
		    version = version + 1,
		    updated_at = $2
		WHERE id = $1
		  AND (max_usage IS NULL OR usage_count < max_usage)
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment promotion usage: %w", err)
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
	return domain.ErrPromotionUsageExhausted
}

func (r *promotionRepository) DecrementUsage(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE promotions
		SET usage_count = GREATEST(usage_count - 1, 0),
		    version = version + 1,
		    updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement promotion usage: %w", err)
	}
	return affectedOrNotFound(res, domain.ErrPromotionNotFound)
}

func (r *promotionRepository) one(ctx context.Context, query string, args ...any) (domain.Promotion, error) {
	p, err := scanPromotion(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Promotion{}, domain.ErrPromotionNotFound
		}
		return domain.Promotion{}, fmt.Errorf("select promotion: %w", err)
	}
	return p, nil
}

func scanPromotion(row rowScanner) (domain.Promotion, error) {
	var (
		p                 domain.Promotion
		kind, eligibility string
		endsAt            sql.NullTime
		maxUsage          sql.NullInt64
		couponCode        sql.NullString
	)
	if err := row.Scan(
		&p.ID, &p.Name, &kind, &p.Value, &p.StartsAt, &endsAt, &p.MinOrderAmount, &eligibility,
		&p.AutoApply, &p.Stackable, &p.Active, &p.UsageCount, &maxUsage, &couponCode,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.Promotion{}, err
	}
	p.Type = domain.DiscountType(kind)
	p.Eligibility = domain.CustomerEligibility(eligibility)
	p.StartsAt = p.StartsAt.UTC()
	if endsAt.Valid {
		p.EndsAt = endsAt.Time.UTC()
	}
	p.MaxUsage = intPtr(maxUsage)
	p.CouponCode = couponCode.String
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

var _ domain.PromotionRepository = (*promotionRepository)(nil)
