package rest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
)

// amount форматирует сумму с двумя знаками после запятой.
func amount(v decimal.Decimal) string {
	return v.StringFixed(money.Scale)
}

func nullAmount(v decimal.NullDecimal) *string {
	if !v.Valid {
		return nil
	}
	s := amount(v.Decimal)
	return &s
}

type saleLineResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Discount    string `json:"discount"`
	Tax         string `json:"tax"`
	LineTotal   string `json:"line_total"`
}

type appliedPromotionResponse struct {
	PromotionID    string    `json:"promotion_id"`
	PromotionName  string    `json:"promotion_name"`
	CouponCode     string    `json:"coupon_code,omitempty"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  string    `json:"discount_value"`
	DiscountAmount string    `json:"discount_amount"`
	OriginalAmount string    `json:"original_amount"`
	FinalAmount    string    `json:"final_amount"`
	AutoApplied    bool      `json:"auto_applied"`
	AppliedAt      time.Time `json:"applied_at"`
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

type saleResponse struct {
	ID                  string                     `json:"id"`
	CustomerID          string                     `json:"customer_id,omitempty"`
	Status              string                     `json:"status"`
	PaymentMethod       string                     `json:"payment_method,omitempty"`
	PaymentStatus       string                     `json:"payment_status"`
	DeliveryStatus      string                     `json:"delivery_status"`
	CouponCode          string                     `json:"coupon_code,omitempty"`
	Subtotal            *string                    `json:"subtotal"`
	DiscountAmount      *string                    `json:"discount_amount"`
	TaxAmount           *string                    `json:"tax_amount"`
	ShippingCost        *string                    `json:"shipping_cost"`
	Total               *string                    `json:"total"`
	NetRevenue          *string                    `json:"net_revenue"`
	LoyaltyPointsEarned int                        `json:"loyalty_points_earned"`
	LoyaltyPointsUsed   int                        `json:"loyalty_points_used"`
	Lines               []saleLineResponse         `json:"lines"`
	AppliedPromotions   []appliedPromotionResponse `json:"applied_promotions"`
	Timeline            []timelineResponse         `json:"timeline,omitempty"`
	Version             int64                      `json:"version"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
	CompletedAt         *time.Time                 `json:"completed_at,omitempty"`
	CancelledAt         *time.Time                 `json:"cancelled_at,omitempty"`
}

func toSaleResponse(sale domain.Sale, timeline []domain.TimelineEvent) saleResponse {
	resp := saleResponse{
		ID:                  sale.ID,
		CustomerID:          sale.CustomerID,
		Status:              string(sale.Status),
		PaymentMethod:       sale.PaymentMethod,
		PaymentStatus:       string(sale.PaymentStatus),
		DeliveryStatus:      string(sale.DeliveryStatus),
		CouponCode:          sale.CouponCode,
		Subtotal:            nullAmount(sale.Subtotal),
		DiscountAmount:      nullAmount(sale.DiscountAmount),
		TaxAmount:           nullAmount(sale.TaxAmount),
		ShippingCost:        nullAmount(sale.ShippingCost),
		Total:               nullAmount(sale.Total),
		NetRevenue:          nullAmount(sale.NetRevenue),
		LoyaltyPointsEarned: sale.LoyaltyPointsEarned,
		LoyaltyPointsUsed:   sale.LoyaltyPointsUsed,
		Lines:               make([]saleLineResponse, 0, len(sale.Lines)),
		AppliedPromotions:   make([]appliedPromotionResponse, 0, len(sale.AppliedPromotions)),
		Version:             sale.Version,
		CreatedAt:           sale.CreatedAt,
		UpdatedAt:           sale.UpdatedAt,
		CompletedAt:         sale.CompletedAt,
		CancelledAt:         sale.CancelledAt,
	}
	for _, line := range sale.Lines {
		resp.Lines = append(resp.Lines, saleLineResponse{
			ID:          line.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   amount(line.UnitPrice),
			Discount:    amount(line.Discount),
			Tax:         amount(line.Tax),
			LineTotal:   amount(line.LineTotal),
		})
	}
	for _, ap := range sale.AppliedPromotions {
		resp.AppliedPromotions = append(resp.AppliedPromotions, appliedPromotionResponse{
			PromotionID:    ap.PromotionID,
			PromotionName:  ap.PromotionName,
			CouponCode:     ap.CouponCode,
			DiscountType:   string(ap.DiscountType),
			DiscountValue:  ap.DiscountValue.String(),
			DiscountAmount: amount(ap.DiscountAmount),
			OriginalAmount: amount(ap.OriginalAmount),
			FinalAmount:    amount(ap.FinalAmount),
			AutoApplied:    ap.AutoApplied,
			AppliedAt:      ap.AppliedAt,
		})
	}
	for _, ev := range timeline {
		resp.Timeline = append(resp.Timeline, timelineResponse{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return resp
}

func fromSaleResult(result sales.SaleResult) saleResponse {
	return toSaleResponse(result.Sale, result.Timeline)
}

type customerResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	Address        string     `json:"address,omitempty"`
	Region         string     `json:"region"`
	Segment        string     `json:"segment"`
	TotalPurchases string     `json:"total_purchases"`
	PurchaseCount  int        `json:"purchase_count"`
	LoyaltyPoints  int        `json:"loyalty_points"`
	LastPurchaseAt *time.Time `json:"last_purchase_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toCustomerResponse(c domain.Customer) customerResponse {
	return customerResponse{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		Address:        c.Address,
		Region:         c.Region(),
		Segment:        string(c.Segment()),
		TotalPurchases: amount(c.TotalPurchases),
		PurchaseCount:  c.PurchaseCount,
		LoyaltyPoints:  c.LoyaltyPoints,
		LastPurchaseAt: c.LastPurchaseAt,
		CreatedAt:      c.CreatedAt,
	}
}

type productResponse struct {
	ID            string  `json:"id"`
	SKU           string  `json:"sku,omitempty"`
	Name          string  `json:"name"`
	CategoryID    *string `json:"category_id"`
	SupplierID    *string `json:"supplier_id"`
	Price         string  `json:"price"`
	TaxRate       *string `json:"tax_rate"`
	StockQuantity int     `json:"stock_quantity"`
	Active        bool    `json:"active"`
	TotalSold     int     `json:"total_sold"`
	TotalRevenue  string  `json:"total_revenue"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		SKU:           p.SKU,
		Name:          p.Name,
		CategoryID:    p.CategoryID,
		SupplierID:    p.SupplierID,
		Price:         amount(p.Price),
		TaxRate:       nullAmount(p.TaxRate),
		StockQuantity: p.StockQuantity,
		Active:        p.Active,
		TotalSold:     p.TotalSold,
		TotalRevenue:  amount(p.TotalRevenue),
	}
}

type promotionResponse struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	Value          string     `json:"value"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         *time.Time `json:"ends_at,omitempty"`
	MinOrderAmount *string    `json:"min_order_amount"`
	Eligibility    string     `json:"eligibility"`
	AutoApply      bool       `json:"auto_apply"`
	Stackable      bool       `json:"stackable"`
	Active         bool       `json:"active"`
	UsageCount     int        `json:"usage_count"`
	MaxUsage       *int       `json:"max_usage"`
	CouponCode     string     `json:"coupon_code,omitempty"`
}

func toPromotionResponse(p domain.Promotion) promotionResponse {
	resp := promotionResponse{
		ID:             p.ID,
		Name:           p.Name,
		Type:           string(p.Type),
		Value:          p.Value.String(),
		StartsAt:       p.StartsAt,
		MinOrderAmount: nullAmount(p.MinOrderAmount),
		Eligibility:    string(p.Eligibility),
		AutoApply:      p.AutoApply,
		Stackable:      p.Stackable,
		Active:         p.Active,
		UsageCount:     p.UsageCount,
		MaxUsage:       p.MaxUsage,
		CouponCode:     p.CouponCode,
	}
	if !p.EndsAt.IsZero() {
		ends := p.EndsAt
		resp.EndsAt = &ends
	}
	return resp
}

type purchaseOrderLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitCost  string `json:"unit_cost"`
}

type purchaseOrderResponse struct {
	ID         string                      `json:"id"`
	SupplierID *string                     `json:"supplier_id"`
	Status     string                      `json:"status"`
	Lines      []purchaseOrderLineResponse `json:"lines"`
	CreatedAt  time.Time                   `json:"created_at"`
}

func toPurchaseOrderResponse(po domain.PurchaseOrder) purchaseOrderResponse {
	resp := purchaseOrderResponse{
		ID:         po.ID,
		SupplierID: po.SupplierID,
		Status:     string(po.Status),
		Lines:      make([]purchaseOrderLineResponse, 0, len(po.Lines)),
		CreatedAt:  po.CreatedAt,
	}
	for _, line := range po.Lines {
		resp.Lines = append(resp.Lines, purchaseOrderLineResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitCost:  amount(line.UnitCost),
		})
	}
	return resp
}

type returnItemResponse struct {
	ID           string `json:"id"`
	SaleLineID   string `json:"sale_line_id"`
	ProductID    string `json:"product_id"`
	Quantity     int    `json:"quantity"`
	RefundAmount string `json:"refund_amount"`
}

type returnResponse struct {
	ID         string               `json:"id"`
	SaleID     string               `json:"sale_id"`
	CustomerID string               `json:"customer_id,omitempty"`
	Status     string               `json:"status"`
	Reason     string               `json:"reason,omitempty"`
	Items      []returnItemResponse `json:"items"`
	CreatedAt  time.Time            `json:"created_at"`
}

func toReturnResponse(r domain.Return) returnResponse {
	resp := returnResponse{
		ID:         r.ID,
		SaleID:     r.SaleID,
		CustomerID: r.CustomerID,
		Status:     string(r.Status),
		Reason:     r.Reason,
		Items:      make([]returnItemResponse, 0, len(r.Items)),
		CreatedAt:  r.CreatedAt,
	}
	for _, item := range r.Items {
		resp.Items = append(resp.Items, returnItemResponse{
			ID:           item.ID,
			SaleLineID:   item.SaleLineID,
			ProductID:    item.ProductID,
			Quantity:     item.Quantity,
			RefundAmount: amount(item.RefundAmount),
		})
	}
	return resp
}
