package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type promotionRepository struct {
	tx *memTx
}

func (r *promotionRepository) Create(_ context.Context, promotion domain.Promotion) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.promotions[promotion.ID]; exists {
		return domain.ErrAlreadyExists
	}
	if promotion.CouponCode != "" {
		for _, existing := range r.tx.st.promotions {
			if existing.CouponCode == promotion.CouponCode {
				return domain.ErrAlreadyExists
			}
		}
	}
	r.tx.st.promotions[promotion.ID] = promotion.Clone()
	return nil
}

func (r *promotionRepository) Get(_ context.Context, id string) (domain.Promotion, error) {
	promotion, ok := r.tx.st.promotions[id]
	if !ok {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	return promotion.Clone(), nil
}

// LockApplicable ничего не делает: единица работы и так держит хранилище эксклюзивно.
func (r *promotionRepository) LockApplicable(context.Context, time.Time, string) error {
	return nil
}

func (r *promotionRepository) FindActiveByWindow(_ context.Context, at time.Time) ([]domain.Promotion, error) {
	result := make([]domain.Promotion, 0)
	for _, promotion := range r.tx.st.promotions {
		if promotion.ActiveAt(at) {
			result = append(result, promotion.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *promotionRepository) FindByCoupon(_ context.Context, code string) (domain.Promotion, error) {
	if code == "" {
		return domain.Promotion{}, domain.ErrPromotionNotFound
	}
	for _, promotion := range r.tx.st.promotions {
		if promotion.CouponCode == code {
			return promotion.Clone(), nil
		}
	}
	return domain.Promotion{}, domain.ErrPromotionNotFound
}

func (r *promotionRepository) IncrementUsage(_ context.Context, id string) error {
	return r.update(id, func(p *domain.Promotion) error {
		if !p.UsageAvailable() {
			return domain.ErrPromotionUsageExhausted
		}
		p.UsageCount++
		return nil
	})
}

func (r *promotionRepository) DecrementUsage(_ context.Context, id string) error {
	return r.update(id, func(p *domain.Promotion) error {
		if p.UsageCount > 0 {
			p.UsageCount--
		}
		return nil
	})
}

func (r *promotionRepository) update(id string, mutate func(p *domain.Promotion) error) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	promotion, ok := r.tx.st.promotions[id]
	if !ok {
		return domain.ErrPromotionNotFound
	}
	updated := promotion.Clone()
	if err := mutate(&updated); err != nil {
		return err
	}
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	r.tx.st.promotions[id] = updated
	return nil
}

var _ domain.PromotionRepository = (*promotionRepository)(nil)
