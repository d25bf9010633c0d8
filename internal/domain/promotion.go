package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountType задаёт способ расчёта скидки акции.
type DiscountType string

const (
	// DiscountPercentage — процент от суммы заказа.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount — фиксированная сумма.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// CustomerEligibility ограничивает круг клиентов, которым доступна акция.
type CustomerEligibility string

const (
	EligibilityAll                CustomerEligibility = "all"
	EligibilityNewCustomers       CustomerEligibility = "new_customers"
	EligibilityReturningCustomers CustomerEligibility = "returning_customers"
	EligibilityVIPCustomers       CustomerEligibility = "vip_customers"
)

// Valid проверяет, что значение поддерживается.
func (e CustomerEligibility) Valid() bool {
	switch e {
	case EligibilityAll, EligibilityNewCustomers, EligibilityReturningCustomers, EligibilityVIPCustomers:
		return true
	default:
		return false
	}
}

// Promotion — скидочная акция.
type Promotion struct {
	ID       string
	Name     string
	Type     DiscountType
	Value    decimal.Decimal
	StartsAt time.Time
	// EndsAt с нулевым значением означает бессрочную акцию.
	EndsAt time.Time
	// MinOrderAmount без значения означает отсутствие минимальной суммы.
	MinOrderAmount decimal.NullDecimal
	Eligibility    CustomerEligibility
	AutoApply      bool
	Stackable      bool
	Active         bool
	UsageCount     int
	// MaxUsage == nil — без ограничения числа использований.
	MaxUsage   *int
	CouponCode string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt сообщает, действует ли акция в момент now.
func (p Promotion) ActiveAt(now time.Time) bool {
	if !p.Active {
		return false
	}
	if now.Before(p.StartsAt) {
		return false
	}
	if !p.EndsAt.IsZero() && !now.Before(p.EndsAt) {
		return false
	}
	return true
}

// UsageAvailable сообщает, остались ли использования акции.
func (p Promotion) UsageAvailable() bool {
	return p.MaxUsage == nil || p.UsageCount < *p.MaxUsage
}

// Clone копирует акцию вместе с указателем на лимит.
func (p Promotion) Clone() Promotion {
	dst := p
	if p.MaxUsage != nil {
		v := *p.MaxUsage
		dst.MaxUsage = &v
	}
	return dst
}
