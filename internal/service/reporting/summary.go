// Package reporting строит сводные отчёты по зафиксированным продажам.
//
// Отчёт никогда не падает из-за неполных данных: отсутствующие суммы считаются
// нулём, продажи без клиента не попадают в подсчёт клиентов, а удалённые
// клиенты и товары просто пропускаются.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/money"
)

const (
	opSummary = "report_summary"

	// UnknownPaymentMethod подставляется для продаж без способа оплаты.
	UnknownPaymentMethod = "Unknown"

	topProductsLimit = 5
)

// Window — полуинтервал [From, To).
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Previous возвращает окно той же длины, непосредственно предшествующее текущему.
func (w Window) Previous() Window {
	return Window{From: w.From.Add(-w.To.Sub(w.From)), To: w.From}
}

// ProductRevenue — выручка по товару в завершённых продажах.
type ProductRevenue struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// SalesSummary — сводка по продажам за окно.
type SalesSummary struct {
	Window Window `json:"window"`

	TotalSales     int `json:"total_sales"`
	CompletedSales int `json:"completed_sales"`
	CancelledSales int `json:"cancelled_sales"`
	PendingSales   int `json:"pending_sales"`

	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	DiscountTotal     decimal.Decimal `json:"discount_total"`
	TaxTotal          decimal.Decimal `json:"tax_total"`
	ShippingTotal     decimal.Decimal `json:"shipping_total"`
	NetRevenue        decimal.Decimal `json:"net_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`

	UniqueCustomers int             `json:"unique_customers"`
	ConversionRate  decimal.Decimal `json:"conversion_rate"`

	// RevenueGrowth и SalesGrowth равны null, если в предыдущем окне был ноль, а в текущем нет.
	RevenueGrowth decimal.NullDecimal `json:"revenue_growth"`
	SalesGrowth   decimal.NullDecimal `json:"sales_growth"`

	Segments               map[domain.CustomerSegment]int `json:"segments"`
	RevenueByRegion        map[string]decimal.Decimal     `json:"revenue_by_region"`
	RevenueByPaymentMethod map[string]decimal.Decimal     `json:"revenue_by_payment_method"`
	TopProducts            []ProductRevenue               `json:"top_products"`
}

// Option настраивает Engine.
type Option func(*Engine)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics задаёт метрики операций.
func WithMetrics(m *metrics.SalesMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// Engine считает отчёты только по зафиксированным данным.
type Engine struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.SalesMetrics
}

// NewEngine создаёт движок отчётов.
func NewEngine(uow domain.UnitOfWork, options ...Option) *Engine {
	e := &Engine{
		uow:    uow,
		logger: log.WithField("component", "reporting"),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// Summary строит сводку за окно и сравнивает её с предыдущим окном той же длины.
func (e *Engine) Summary(ctx context.Context, window Window) (SalesSummary, error) {
	start := time.Now()
	if window.From.IsZero() || window.To.IsZero() {
		return SalesSummary{}, domain.NewValidationError("window", "from and to are required")
	}
	if !window.From.Before(window.To) {
		return SalesSummary{}, domain.NewValidationError("window", "from must be before to")
	}

	var summary SalesSummary
	err := e.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Sales().ListByWindow(ctx, window.From, window.To)
		if err != nil {
			return fmt.Errorf("list sales: %w", err)
		}
		prev := window.Previous()
		previous, err := tx.Sales().ListByWindow(ctx, prev.From, prev.To)
		if err != nil {
			return fmt.Errorf("list previous sales: %w", err)
		}
		customers, err := tx.Customers().GetMany(ctx, completedCustomerIDs(current))
		if err != nil {
			return fmt.Errorf("load customers: %w", err)
		}

		summary = aggregate(window, current, customers)
		before := aggregate(prev, previous, nil)
		summary.RevenueGrowth = money.GrowthPercent(summary.TotalRevenue, before.TotalRevenue)
		summary.SalesGrowth = money.GrowthPercent(
			decimal.NewFromInt(int64(summary.CompletedSales)),
			decimal.NewFromInt(int64(before.CompletedSales)),
		)
		return nil
	})
	if err != nil {
		e.metrics.RecordOperation(opSummary, metrics.ResultError, time.Since(start))
		e.logger.WithError(err).Error("summary failed")
		return SalesSummary{}, err
	}

	e.metrics.RecordOperation(opSummary, metrics.ResultSuccess, time.Since(start))
	e.logger.WithFields(log.Fields{
		"from":        window.From,
		"to":          window.To,
		"total_sales": summary.TotalSales,
	}).Debug("summary built")
	return summary, nil
}

// aggregate считает показатели одного окна. customers может быть nil,
// тогда сегменты и регионы не заполняются.
func aggregate(window Window, sales []domain.Sale, customers map[string]domain.Customer) SalesSummary {
	s := SalesSummary{
		Window:                 window,
		TotalSales:             len(sales),
		Segments:               make(map[domain.CustomerSegment]int),
		RevenueByRegion:        make(map[string]decimal.Decimal),
		RevenueByPaymentMethod: make(map[string]decimal.Decimal),
		TopProducts:            []ProductRevenue{},
	}

	seen := make(map[string]struct{})
	products := make(map[string]*ProductRevenue)
	for _, sale := range sales {
		switch sale.Status {
		case domain.SaleStatusCancelled:
			s.CancelledSales++
			continue
		case domain.SaleStatusPending:
			s.PendingSales++
			continue
		case domain.SaleStatusCompleted:
		default:
			continue
		}

		s.CompletedSales++
		total := money.Of(sale.Total)
		s.TotalRevenue = s.TotalRevenue.Add(total)
		s.DiscountTotal = s.DiscountTotal.Add(money.Of(sale.DiscountAmount))
		s.TaxTotal = s.TaxTotal.Add(money.Of(sale.TaxAmount))
		s.ShippingTotal = s.ShippingTotal.Add(money.Of(sale.ShippingCost))
		s.NetRevenue = s.NetRevenue.Add(netRevenue(sale))

		method := strings.TrimSpace(sale.PaymentMethod)
		if method == "" {
			method = UnknownPaymentMethod
		}
		s.RevenueByPaymentMethod[method] = s.RevenueByPaymentMethod[method].Add(total)

		customer, known := customers[sale.CustomerID]
		region := domain.UnknownRegion
		if known {
			region = customer.Region()
		}
		if customers != nil {
			s.RevenueByRegion[region] = s.RevenueByRegion[region].Add(total)
		}

		if sale.CustomerID != "" {
			if _, dup := seen[sale.CustomerID]; !dup {
				seen[sale.CustomerID] = struct{}{}
				if known {
					s.Segments[customer.Segment()]++
				}
			}
		}

		for _, line := range sale.Lines {
			if line.ProductID == "" {
				continue
			}
			p, ok := products[line.ProductID]
			if !ok {
				p = &ProductRevenue{ProductID: line.ProductID, ProductName: line.ProductName}
				products[line.ProductID] = p
			}
			p.Quantity += line.Quantity
			p.Revenue = p.Revenue.Add(line.LineTotal.Sub(line.Tax))
		}
	}

	s.UniqueCustomers = len(seen)
	s.AverageOrderValue = money.Div(s.TotalRevenue, decimal.NewFromInt(int64(s.CompletedSales)))
	s.ConversionRate = money.Ratio(s.CompletedSales, s.TotalSales)
	s.TopProducts = topProducts(products, topProductsLimit)
	return s
}

// netRevenue берёт сохранённую чистую выручку, а для исторических записей без неё
// выводит её из subtotal и скидки.
func netRevenue(sale domain.Sale) decimal.Decimal {
	if sale.NetRevenue.Valid {
		return sale.NetRevenue.Decimal
	}
	return money.Sub(sale.Subtotal, sale.DiscountAmount)
}

func completedCustomerIDs(sales []domain.Sale) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		if sale.Status != domain.SaleStatusCompleted || sale.CustomerID == "" {
			continue
		}
		if _, ok := seen[sale.CustomerID]; ok {
			continue
		}
		seen[sale.CustomerID] = struct{}{}
		ids = append(ids, sale.CustomerID)
	}
	return ids
}

func topProducts(products map[string]*ProductRevenue, limit int) []ProductRevenue {
	result := make([]ProductRevenue, 0, len(products))
	for _, p := range products {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Revenue.Equal(result[j].Revenue) {
			return result[i].Revenue.GreaterThan(result[j].Revenue)
		}
		return result[i].ProductID < result[j].ProductID
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}
