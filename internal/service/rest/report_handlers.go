package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/salescore/internal/service/reporting"
)

const dateLayout = "2006-01-02"

type productRevenueResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Revenue     string `json:"revenue"`
}

type summaryResponse struct {
	From string `json:"from"`
	To   string `json:"to"`

	TotalSales     int `json:"total_sales"`
	CompletedSales int `json:"completed_sales"`
	CancelledSales int `json:"cancelled_sales"`
	PendingSales   int `json:"pending_sales"`

	TotalRevenue      string `json:"total_revenue"`
	DiscountTotal     string `json:"discount_total"`
	TaxTotal          string `json:"tax_total"`
	ShippingTotal     string `json:"shipping_total"`
	NetRevenue        string `json:"net_revenue"`
	AverageOrderValue string `json:"average_order_value"`

	UniqueCustomers int     `json:"unique_customers"`
	ConversionRate  string  `json:"conversion_rate"`
	RevenueGrowth   *string `json:"revenue_growth"`
	SalesGrowth     *string `json:"sales_growth"`

	Segments               map[string]int           `json:"segments"`
	RevenueByRegion        map[string]string        `json:"revenue_by_region"`
	RevenueByPaymentMethod map[string]string        `json:"revenue_by_payment_method"`
	TopProducts            []productRevenueResponse `json:"top_products"`
}

// salesSummary принимает from и to как даты; to включается в окно целиком.
func (h *Handler) salesSummary(c *gin.Context) {
	from, ok := parseDate(c, "from")
	if !ok {
		return
	}
	to, ok := parseDate(c, "to")
	if !ok {
		return
	}

	window := reporting.Window{From: from, To: to.AddDate(0, 0, 1)}
	summary, err := h.reports.Summary(c.Request.Context(), window)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummaryResponse(summary, from, to))
}

func parseDate(c *gin.Context, field string) (time.Time, bool) {
	raw := c.Query(field)
	if raw == "" {
		badRequest(c, field, "is required (YYYY-MM-DD)")
		return time.Time{}, false
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		badRequest(c, field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func toSummaryResponse(s reporting.SalesSummary, from, to time.Time) summaryResponse {
	resp := summaryResponse{
		From:                   from.Format(dateLayout),
		To:                     to.Format(dateLayout),
		TotalSales:             s.TotalSales,
		CompletedSales:         s.CompletedSales,
		CancelledSales:         s.CancelledSales,
		PendingSales:           s.PendingSales,
		TotalRevenue:           amount(s.TotalRevenue),
		DiscountTotal:          amount(s.DiscountTotal),
		TaxTotal:               amount(s.TaxTotal),
		ShippingTotal:          amount(s.ShippingTotal),
		NetRevenue:             amount(s.NetRevenue),
		AverageOrderValue:      amount(s.AverageOrderValue),
		UniqueCustomers:        s.UniqueCustomers,
		ConversionRate:         amount(s.ConversionRate),
		RevenueGrowth:          nullAmount(s.RevenueGrowth),
		SalesGrowth:            nullAmount(s.SalesGrowth),
		Segments:               make(map[string]int, len(s.Segments)),
		RevenueByRegion:        make(map[string]string, len(s.RevenueByRegion)),
		RevenueByPaymentMethod: make(map[string]string, len(s.RevenueByPaymentMethod)),
		TopProducts:            make([]productRevenueResponse, 0, len(s.TopProducts)),
	}
	for segment, n := range s.Segments {
		resp.Segments[string(segment)] = n
	}
	for region, v := range s.RevenueByRegion {
		resp.RevenueByRegion[region] = amount(v)
	}
	for method, v := range s.RevenueByPaymentMethod {
		resp.RevenueByPaymentMethod[method] = amount(v)
	}
	for _, p := range s.TopProducts {
		resp.TopProducts = append(resp.TopProducts, productRevenueResponse{
			ProductID:   p.ProductID,
			ProductName: p.ProductName,
			Quantity:    p.Quantity,
			Revenue:     amount(p.Revenue),
		})
	}
	return resp
}
