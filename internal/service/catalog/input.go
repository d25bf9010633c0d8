package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// CustomerInput содержит данные нового клиента.
type CustomerInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// CategoryInput содержит данные новой категории.
type CategoryInput struct {
	Name string `json:"name"`
}

// SupplierInput содержит данные нового поставщика.
type SupplierInput struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// ProductInput содержит данные нового товара.
type ProductInput struct {
	SKU           string           `json:"sku"`
	Name          string           `json:"name"`
	CategoryID    string           `json:"category_id,omitempty"`
	SupplierID    string           `json:"supplier_id,omitempty"`
	Price         decimal.Decimal  `json:"price"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty"`
	StockQuantity int              `json:"stock_quantity"`
}

// PromotionInput содержит данные новой акции.
type PromotionInput struct {
	Name           string                     `json:"name"`
	Type           domain.DiscountType        `json:"type"`
	Value          decimal.Decimal            `json:"value"`
	StartsAt       time.Time                  `json:"starts_at"`
	EndsAt         *time.Time                 `json:"ends_at,omitempty"`
	MinOrderAmount *decimal.Decimal           `json:"min_order_amount,omitempty"`
	Eligibility    domain.CustomerEligibility `json:"eligibility"`
	AutoApply      bool                       `json:"auto_apply"`
	Stackable      bool                       `json:"stackable"`
	MaxUsage       *int                       `json:"max_usage,omitempty"`
	CouponCode     string                     `json:"coupon_code,omitempty"`
}

// PurchaseOrderLineInput описывает позицию заказа поставщику.
type PurchaseOrderLineInput struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// PurchaseOrderInput содержит данные нового заказа поставщику.
type PurchaseOrderInput struct {
	SupplierID string                     `json:"supplier_id"`
	Status     domain.PurchaseOrderStatus `json:"status"`
	Lines      []PurchaseOrderLineInput   `json:"lines"`
}

// ReturnItemInput описывает позицию возврата по строке продажи.
type ReturnItemInput struct {
	SaleLineID string `json:"sale_line_id"`
	Quantity   int    `json:"quantity"`
}

// ReturnInput содержит данные нового возврата.
type ReturnInput struct {
	SaleID string            `json:"sale_id"`
	Reason string            `json:"reason"`
	Items  []ReturnItemInput `json:"items"`
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError(field, "is required")
	}
	return nil
}

func (in ProductInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if in.Price.IsNegative() {
		return domain.NewValidationError("price", "must be non-negative")
	}
	if in.TaxRate != nil && (in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred)) {
		return domain.NewValidationError("tax_rate", "must be between 0 and 100")
	}
	if in.StockQuantity < 0 {
		return domain.NewValidationError("stock_quantity", "must be non-negative")
	}
	return nil
}

func (in PromotionInput) validate() error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	switch in.Type {
	case domain.DiscountPercentage:
		if !in.Value.IsPositive() || in.Value.GreaterThan(hundred) {
			return domain.NewValidationError("value", "percentage must be in (0, 100]")
		}
	case domain.DiscountFixedAmount:
		if !in.Value.IsPositive() {
			return domain.NewValidationError("value", "must be positive")
		}
	default:
		return domain.NewValidationError("type", fmt.Sprintf("unsupported discount type %q", in.Type))
	}
	if in.StartsAt.IsZero() {
		return domain.NewValidationError("starts_at", "is required")
	}
	if in.EndsAt != nil && !in.EndsAt.After(in.StartsAt) {
		return domain.NewValidationError("ends_at", "must be after starts_at")
	}
	if in.MinOrderAmount != nil && in.MinOrderAmount.IsNegative() {
		return domain.NewValidationError("min_order_amount", "must be non-negative")
	}
	if in.Eligibility != "" && !in.Eligibility.Valid() {
		return domain.NewValidationError("eligibility", fmt.Sprintf("unsupported value %q", in.Eligibility))
	}
	if in.MaxUsage != nil && *in.MaxUsage <= 0 {
		return domain.NewValidationError("max_usage", "must be positive")
	}
	return nil
}

func (in PurchaseOrderInput) validate() error {
	if in.Status != "" && !in.Status.Valid() {
		return domain.NewValidationError("status", fmt.Sprintf("unsupported value %q", in.Status))
	}
	if len(in.Lines) == 0 {
		return domain.NewValidationError("lines", "at least one line is required")
	}
	for i, line := range in.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if err := required(field+".product_id", line.ProductID); err != nil {
			return err
		}
		if line.Quantity <= 0 {
			return domain.NewValidationError(field+".quantity", "must be positive")
		}
		if line.UnitCost.IsNegative() {
			return domain.NewValidationError(field+".unit_cost", "must be non-negative")
		}
	}
	return nil
}

func (in ReturnInput) validate() error {
	if err := required("sale_id", in.SaleID); err != nil {
		return err
	}
	if len(in.Items) == 0 {
		return domain.NewValidationError("items", "at least one item is required")
	}
	for i, item := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if err := required(field+".sale_line_id", item.SaleLineID); err != nil {
			return err
		}
		if item.Quantity <= 0 {
			return domain.NewValidationError(field+".quantity", "must be positive")
		}
	}
	return nil
}
