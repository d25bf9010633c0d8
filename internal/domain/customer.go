package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerSegment — производная категория клиента по истории покупок.
type CustomerSegment string

const (
	SegmentVIP     CustomerSegment = "VIP"
	SegmentPremium CustomerSegment = "Premium"
	SegmentLoyal   CustomerSegment = "Loyal"
	SegmentRegular CustomerSegment = "Regular"
)

// UnknownRegion используется, когда регион клиента определить нельзя.
const UnknownRegion = "Unknown"

var (
	vipThreshold     = decimal.NewFromInt(10000)
	premiumThreshold = decimal.NewFromInt(5000)
	loyalThreshold   = decimal.NewFromInt(1000)
)

const loyalPurchaseCount = 5

// Customer — покупатель.
type Customer struct {
	ID             string
	Name           string
	Email          string
	Address        string
	TotalPurchases decimal.Decimal
	PurchaseCount  int
	LoyaltyPoints  int
	LastPurchaseAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Segment вычисляет сегмент клиента по сумме и числу покупок.
func (c Customer) Segment() CustomerSegment {
	switch {
	case c.TotalPurchases.GreaterThanOrEqual(vipThreshold):
		return SegmentVIP
	case c.TotalPurchases.GreaterThanOrEqual(premiumThreshold):
		return SegmentPremium
	case c.TotalPurchases.GreaterThanOrEqual(loyalThreshold), c.PurchaseCount >= loyalPurchaseCount:
		return SegmentLoyal
	default:
		return SegmentRegular
	}
}

// HasPurchaseHistory сообщает, есть ли у клиента завершённые покупки.
func (c Customer) HasPurchaseHistory() bool {
	return c.PurchaseCount > 0
}

// Region извлекает регион из адреса: последний непустой фрагмент через запятую.
func (c Customer) Region() string {
	parts := strings.Split(c.Address, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if region := strings.TrimSpace(parts[i]); region != "" {
			return region
		}
	}
	return UnknownRegion
}

// Clone копирует клиента вместе с указателем на дату.
func (c Customer) Clone() Customer {
	dst := c
	if c.LastPurchaseAt != nil {
		t := *c.LastPurchaseAt
		dst.LastPurchaseAt = &t
	}
	return dst
}
