package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/money"
)

var (
	// ErrSaleLinesRequired: продажа без позиций.
	ErrSaleLinesRequired = errors.New("sale must contain at least one line")
	// ErrSaleLineQtyInvalid: количество в позиции <= 0.
	ErrSaleLineQtyInvalid = errors.New("sale line quantity must be greater than zero")
	// ErrSaleTotalNegative: итог продажи отрицательный.
	ErrSaleTotalNegative = errors.New("sale total must be non-negative")
	// ErrSaleTotalMismatch: итог не равен subtotal - discount + tax + shipping.
	ErrSaleTotalMismatch = errors.New("sale total does not match its components")
)

// SaleStatus описывает жизненный цикл продажи.
type SaleStatus string

const (
	// SaleStatusPending — продажа создана, товар зарезервирован, оплата не подтверждена.
	SaleStatusPending SaleStatus = "pending"
	// SaleStatusCompleted — продажа проведена, начислены баллы и статистика.
	SaleStatusCompleted SaleStatus = "completed"
	// SaleStatusCancelled — продажа отменена, все эффекты откачены.
	SaleStatusCancelled SaleStatus = "cancelled"
)

// PaymentStatus — состояние оплаты продажи.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusVoided   PaymentStatus = "voided"
)

// DeliveryStatus — состояние доставки.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// CanTransition сообщает, допустим ли переход статуса продажи.
// Переход completed -> cancelled дополнительно требует отсутствия активных возвратов.
func CanTransition(from, to SaleStatus) bool {
	switch from {
	case SaleStatusPending:
		return to == SaleStatusCompleted || to == SaleStatusCancelled
	case SaleStatusCompleted:
		return to == SaleStatusCancelled
	default:
		return false
	}
}

// SaleLine — позиция продажи с зафиксированной ценой.
type SaleLine struct {
	ID          string
	SaleID      string
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Discount    decimal.Decimal
	Tax         decimal.Decimal
	LineTotal   decimal.Decimal
}

// AppliedPromotion фиксирует применение одной акции к продаже.
type AppliedPromotion struct {
	ID             string
	SaleID         string
	PromotionID    string
	PromotionName  string
	CouponCode     string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	DiscountAmount decimal.Decimal
	OriginalAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	AutoApplied    bool
	AppliedAt      time.Time
}

// Sale — агрегат продажи вместе с позициями и применёнными акциями.
type Sale struct {
	ID                  string
	CustomerID          string
	Status              SaleStatus
	Lines               []SaleLine
	Subtotal            decimal.NullDecimal
	DiscountAmount      decimal.NullDecimal
	TaxAmount           decimal.NullDecimal
	ShippingCost        decimal.NullDecimal
	Total               decimal.NullDecimal
	NetRevenue          decimal.NullDecimal
	PaymentMethod       string
	PaymentStatus       PaymentStatus
	DeliveryStatus      DeliveryStatus
	CouponCode          string
	LoyaltyPointsEarned int
	LoyaltyPointsUsed   int
	AppliedPromotions   []AppliedPromotion
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
	CancelledAt         *time.Time
}

// Clone возвращает копию продажи, не разделяющую слайсы и указатели с оригиналом.
func (s Sale) Clone() Sale {
	dst := s
	dst.Lines = append([]SaleLine(nil), s.Lines...)
	dst.AppliedPromotions = append([]AppliedPromotion(nil), s.AppliedPromotions...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		dst.CompletedAt = &t
	}
	if s.CancelledAt != nil {
		t := *s.CancelledAt
		dst.CancelledAt = &t
	}
	return dst
}

// QuantityByProduct суммирует количество по товарам (одна позиция может повторяться).
func (s Sale) QuantityByProduct() map[string]int {
	result := make(map[string]int, len(s.Lines))
	for _, line := range s.Lines {
		result[line.ProductID] += line.Quantity
	}
	return result
}

// ValidateInvariants проверяет инварианты агрегата и возвращает список замечаний.
func (s *Sale) ValidateInvariants() []error {
	var errs []error

	if len(s.Lines) == 0 {
		errs = append(errs, ErrSaleLinesRequired)
	}
	for _, line := range s.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrSaleLineQtyInvalid)
		}
	}

	total := money.Of(s.Total)
	if total.IsNegative() {
		errs = append(errs, ErrSaleTotalNegative)
	}

	// total = subtotal - discount + tax + shipping
	expected := money.Of(s.Subtotal).
		Sub(money.Of(s.DiscountAmount)).
		Add(money.Of(s.TaxAmount)).
		Add(money.Of(s.ShippingCost))
	if !money.Equal(total, expected) {
		errs = append(errs, ErrSaleTotalMismatch)
	}

	return errs
}
