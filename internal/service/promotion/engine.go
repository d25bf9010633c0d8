// Package promotion отбирает и применяет скидочные акции к сумме заказа.
//
// Конвейер: filter -> rank -> select -> apply. Движок не ходит в хранилище:
// активные акции и акцию по купону передаёт вызывающая сторона, а счётчики
// использования увеличиваются в той же транзакции, что и продажа.
package promotion

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
)

// Source — откуда взялся кандидат.
type Source string

const (
	// SourceAuto — акция применяется автоматически.
	SourceAuto Source = "auto"
	// SourceCoupon — акция применяется по коду купона.
	SourceCoupon Source = "coupon"
)

// Candidate — акция, прошедшая фильтр, с оценкой скидки от исходной суммы.
type Candidate struct {
	Promotion domain.Promotion
	Source    Source
	Discount  decimal.Decimal
}

// Request описывает заказ, к которому подбираются акции.
type Request struct {
	// OrderAmount — сумма заказа до скидок.
	OrderAmount decimal.Decimal
	// Customer == nil для анонимной продажи.
	Customer   *domain.Customer
	CouponCode string
	Now        time.Time
}

// Result — итог применения акций.
type Result struct {
	Applied     []domain.AppliedPromotion
	Discount    decimal.Decimal
	FinalAmount decimal.Decimal
}

// Engine применяет акции к заказу.
type Engine struct {
	logger *log.Entry
}

// NewEngine создаёт движок акций.
func NewEngine(logger *log.Entry) *Engine {
	if logger == nil {
		logger = log.WithField("component", "promotion-engine")
	}
	return &Engine{logger: logger}
}

// Evaluate подбирает и применяет акции.
//
// active — акции, действующие в req.Now; coupon — акция, найденная по коду
// купона (nil, если не найдена). Купон, который не найден или не подходит
// к заказу, возвращает ValidationError.
func (e *Engine) Evaluate(req Request, active []domain.Promotion, coupon *domain.Promotion) (Result, error) {
	amount := money.NonNegative(money.Round(req.OrderAmount))

	candidates := make([]Candidate, 0, len(active)+1)
	for _, p := range active {
		if !p.AutoApply || p.CouponCode != "" {
			continue
		}
		if ok, reason := Eligible(p, req); !ok {
			e.logger.WithFields(log.Fields{
				"promotion_id": p.ID,
				"reason":       reason,
			}).Debug("auto promotion skipped")
			continue
		}
		candidates = append(candidates, Candidate{Promotion: p, Source: SourceAuto, Discount: discountFor(p, amount)})
	}

	if req.CouponCode != "" {
		if coupon == nil || coupon.CouponCode != req.CouponCode {
			return Result{}, domain.NewValidationError("coupon_code", "unknown coupon code")
		}
		if ok, reason := Eligible(*coupon, req); !ok {
			return Result{}, domain.NewValidationError("coupon_code", "coupon is not applicable: "+reason)
		}
		candidates = append(candidates, Candidate{Promotion: *coupon, Source: SourceCoupon, Discount: discountFor(*coupon, amount)})
	}

	Rank(candidates)
	selected := Select(candidates)

	result := apply(selected, amount, req.Now)
	if len(result.Applied) > 0 {
		e.logger.WithFields(log.Fields{
			"applied":  len(result.Applied),
			"discount": result.Discount.StringFixed(money.Scale),
		}).Debug("promotions applied")
	}
	return result, nil
}

// Eligible проверяет акцию против заказа и возвращает причину отказа.
func Eligible(p domain.Promotion, req Request) (bool, string) {
	if !p.ActiveAt(req.Now) {
		return false, "promotion is not active"
	}
	if !p.UsageAvailable() {
		return false, "usage limit reached"
	}
	// Без минимальной суммы акция доступна при любой сумме, включая ноль.
	if p.MinOrderAmount.Valid && req.OrderAmount.LessThan(p.MinOrderAmount.Decimal) {
		return false, "order amount below minimum " + p.MinOrderAmount.Decimal.StringFixed(money.Scale)
	}
	return customerEligible(p.Eligibility, req.Customer)
}

func customerEligible(eligibility domain.CustomerEligibility, customer *domain.Customer) (bool, string) {
	switch eligibility {
	case domain.EligibilityAll, "":
		return true, ""
	case domain.EligibilityNewCustomers:
		if customer == nil || !customer.HasPurchaseHistory() {
			return true, ""
		}
		return false, "only for new customers"
	case domain.EligibilityReturningCustomers:
		if customer != nil && customer.HasPurchaseHistory() {
			return true, ""
		}
		return false, "only for returning customers"
	case domain.EligibilityVIPCustomers:
		if customer != nil && customer.Segment() == domain.SegmentVIP {
			return true, ""
		}
		return false, "only for VIP customers"
	default:
		return false, "unsupported eligibility " + string(eligibility)
	}
}

// Rank сортирует кандидатов по убыванию скидки; при равенстве — по ID.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if cmp := candidates[i].Discount.Cmp(candidates[j].Discount); cmp != 0 {
			return cmp > 0
		}
		return candidates[i].Promotion.ID < candidates[j].Promotion.ID
	})
}

// Select оставляет все суммирующиеся акции и одну несуммирующуюся с наибольшей скидкой.
// Ожидает кандидатов, упорядоченных Rank.
func Select(ranked []Candidate) []Candidate {
	selected := make([]Candidate, 0, len(ranked))
	exclusiveTaken := false
	for _, c := range ranked {
		if c.Promotion.Stackable {
			selected = append(selected, c)
			continue
		}
		if exclusiveTaken {
			continue
		}
		exclusiveTaken = true
		selected = append(selected, c)
	}
	return selected
}

// apply применяет сначала автоматические акции (в порядке ранга), затем купон.
// Каждая скидка считается от суммы, оставшейся после предыдущих.
func apply(selected []Candidate, amount decimal.Decimal, now time.Time) Result {
	ordered := make([]Candidate, 0, len(selected))
	for _, c := range selected {
		if c.Source == SourceAuto {
			ordered = append(ordered, c)
		}
	}
	for _, c := range selected {
		if c.Source == SourceCoupon {
			ordered = append(ordered, c)
		}
	}

	result := Result{Discount: decimal.Zero, FinalAmount: amount}
	running := amount
	for _, c := range ordered {
		discount := discountFor(c.Promotion, running)
		final := running.Sub(discount)
		result.Applied = append(result.Applied, domain.AppliedPromotion{
			PromotionID:    c.Promotion.ID,
			PromotionName:  c.Promotion.Name,
			CouponCode:     c.Promotion.CouponCode,
			DiscountType:   c.Promotion.Type,
			DiscountValue:  c.Promotion.Value,
			DiscountAmount: discount,
			OriginalAmount: running,
			FinalAmount:    final,
			AutoApplied:    c.Source == SourceAuto,
			AppliedAt:      now,
		})
		result.Discount = result.Discount.Add(discount)
		running = final
	}
	result.FinalAmount = running
	return result
}

// discountFor считает скидку акции от суммы, не превышая её.
func discountFor(p domain.Promotion, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() || !p.Value.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch p.Type {
	case domain.DiscountPercentage:
		discount = money.Percent(amount, p.Value)
	case domain.DiscountFixedAmount:
		discount = money.Round(p.Value)
	default:
		return decimal.Zero
	}
	return money.Min(discount, amount)
}
