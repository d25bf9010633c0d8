package sales

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// LineRequest — позиция создаваемой или изменяемой продажи.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// UnitPriceOverride заменяет текущую цену товара.
	UnitPriceOverride *decimal.Decimal `json:"unit_price_override,omitempty"`
	// Discount — скидка на позицию целиком, не больше её стоимости.
	Discount *decimal.Decimal `json:"discount,omitempty"`
}

// CreateSaleRequest — запрос на создание продажи.
type CreateSaleRequest struct {
	// CustomerID пуст для анонимной продажи.
	CustomerID            string           `json:"customer_id,omitempty"`
	Lines                 []LineRequest    `json:"lines"`
	PaymentMethod         string           `json:"payment_method"`
	CouponCode            string           `json:"coupon_code,omitempty"`
	ShippingCost          *decimal.Decimal `json:"shipping_cost,omitempty"`
	LoyaltyPointsToRedeem int              `json:"loyalty_points_to_redeem,omitempty"`
}

// UpdateSaleRequest заменяет набор позиций продажи в статусе pending.
type UpdateSaleRequest struct {
	Lines []LineRequest `json:"lines"`
}

// SaleResult — продажа с рассчитанными суммами и историей.
type SaleResult struct {
	Sale     domain.Sale            `json:"sale"`
	Timeline []domain.TimelineEvent `json:"timeline"`
}

// normalize обрезает пробелы в коде купона (регистр сохраняется) и проверяет поля запроса.
func (r CreateSaleRequest) normalize() (CreateSaleRequest, error) {
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.CouponCode = strings.TrimSpace(r.CouponCode)
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)

	if err := validateLines(r.Lines); err != nil {
		return r, err
	}
	if r.ShippingCost != nil && r.ShippingCost.IsNegative() {
		return r, domain.NewValidationError("shipping_cost", "must be non-negative")
	}
	if r.LoyaltyPointsToRedeem < 0 {
		return r, domain.NewValidationError("loyalty_points_to_redeem", "must be non-negative")
	}
	if r.LoyaltyPointsToRedeem > 0 && r.CustomerID == "" {
		return r, domain.NewValidationError("loyalty_points_to_redeem", "requires a customer")
	}
	return r, nil
}

func validateLines(lines []LineRequest) error {
	if len(lines) == 0 {
		return domain.NewValidationError("lines", domain.ErrSaleLinesRequired.Error())
	}
	for i, line := range lines {
		field := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(line.ProductID) == "" {
			return domain.NewValidationError(field+".product_id", "is required")
		}
		if line.Quantity <= 0 {
			return domain.NewValidationError(field+".quantity", domain.ErrSaleLineQtyInvalid.Error())
		}
		if line.UnitPriceOverride != nil && line.UnitPriceOverride.IsNegative() {
			return domain.NewValidationError(field+".unit_price_override", "must be non-negative")
		}
		if line.Discount != nil && line.Discount.IsNegative() {
			return domain.NewValidationError(field+".discount", "must be non-negative")
		}
	}
	return nil
}

// quantities суммирует количество по товарам; одна позиция товара может повторяться.
func quantities(lines []LineRequest) map[string]int {
	result := make(map[string]int, len(lines))
	for _, line := range lines {
		result[strings.TrimSpace(line.ProductID)] += line.Quantity
	}
	return result
}
