package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
	"github.com/vladislavdragonenkov/salescore/internal/storage/memory"
)

var (
	windowStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func nd(v string) decimal.NullDecimal {
	return money.Valid(d(v))
}

func completed(id, customerID string, at time.Time, total string) domain.Sale {
	return domain.Sale{
		ID:             id,
		CustomerID:     customerID,
		Status:         domain.SaleStatusCompleted,
		Subtotal:       nd(total),
		DiscountAmount: nd("0"),
		TaxAmount:      nd("0"),
		ShippingCost:   nd("0"),
		Total:          nd(total),
		NetRevenue:     nd(total),
		CreatedAt:      at,
	}
}

func seed(t *testing.T, customers []domain.Customer, sales []domain.Sale) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.Do(context.Background(), func(ctx context.Context, tx domain.Tx) error {
		for _, c := range customers {
			if err := tx.Customers().Create(ctx, c); err != nil {
				return err
			}
		}
		for _, s := range sales {
			if err := tx.Sales().Create(ctx, s); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store
}

func TestSummary_AggregatesCompletedSales(t *testing.T) {
	day := 24 * time.Hour

	s1 := completed("s1", "c-vip", windowStart, "104")
	s1.Subtotal = nd("100")
	s1.DiscountAmount = nd("10")
	s1.TaxAmount = nd("9")
	s1.ShippingCost = nd("5")
	s1.NetRevenue = nd("90")
	s1.PaymentMethod = "card"
	s1.Lines = []domain.SaleLine{{ID: "l1", ProductID: "p-1", ProductName: "Widget", Quantity: 2, UnitPrice: d("50"), Tax: d("9"), LineTotal: d("109")}}

	// Продажа без клиента и с отсутствующими суммами из старых данных.
	s2 := domain.Sale{
		ID:        "s2",
		Status:    domain.SaleStatusCompleted,
		Subtotal:  nd("40"),
		TaxAmount: nd("0"),
		Total:     nd("40"),
		CreatedAt: windowStart.Add(day),
		Lines: []domain.SaleLine{
			{ID: "l2", ProductName: "Deleted", Quantity: 1, LineTotal: d("15")},
			{ID: "l3", ProductID: "p-2", ProductName: "Gadget", Quantity: 1, LineTotal: d("40")},
		},
	}

	s3 := completed("s3", "c-vip", windowStart.Add(2*day), "60")
	s3.PaymentMethod = "card"
	s3.Lines = []domain.SaleLine{{ID: "l4", ProductID: "p-2", ProductName: "Gadget", Quantity: 3, LineTotal: d("60")}}

	s4 := completed("s4", "c-ghost", windowStart.Add(3*day), "20")
	s4.PaymentMethod = "cash"

	cancelled := completed("s5", "c-vip", windowStart.Add(4*day), "500")
	cancelled.Status = domain.SaleStatusCancelled
	pending := completed("s6", "c-new", windowStart.Add(5*day), "70")
	pending.Status = domain.SaleStatusPending

	atEnd := completed("s-next", "c-vip", windowEnd, "999")
	previous := completed("s-prev", "c-vip", windowStart.Add(-day), "112")

	store := seed(t,
		[]domain.Customer{
			{ID: "c-vip", Name: "Vera", Address: "1 Main St, Springfield, USA", TotalPurchases: d("12000"), PurchaseCount: 20},
			{ID: "c-new", Name: "Nick"},
		},
		[]domain.Sale{s1, s2, s3, s4, cancelled, pending, atEnd, previous},
	)

	summary, err := NewEngine(store).Summary(context.Background(), Window{From: windowStart, To: windowEnd})
	require.NoError(t, err)

	assert.Equal(t, 6, summary.TotalSales)
	assert.Equal(t, 4, summary.CompletedSales)
	assert.Equal(t, 1, summary.CancelledSales)
	assert.Equal(t, 1, summary.PendingSales)

	assert.True(t, d("224").Equal(summary.TotalRevenue), summary.TotalRevenue.String())
	assert.True(t, d("10").Equal(summary.DiscountTotal), summary.DiscountTotal.String())
	assert.True(t, d("9").Equal(summary.TaxTotal), summary.TaxTotal.String())
	assert.True(t, d("5").Equal(summary.ShippingTotal), summary.ShippingTotal.String())
	assert.True(t, d("210").Equal(summary.NetRevenue), summary.NetRevenue.String())
	assert.True(t, d("56").Equal(summary.AverageOrderValue), summary.AverageOrderValue.String())

	assert.Equal(t, 2, summary.UniqueCustomers)
	assert.True(t, d("66.67").Equal(summary.ConversionRate), summary.ConversionRate.String())
	assert.Equal(t, map[domain.CustomerSegment]int{domain.SegmentVIP: 1}, summary.Segments)

	require.Len(t, summary.RevenueByRegion, 2)
	assert.True(t, d("164").Equal(summary.RevenueByRegion["USA"]))
	assert.True(t, d("60").Equal(summary.RevenueByRegion[domain.UnknownRegion]))

	require.Len(t, summary.RevenueByPaymentMethod, 3)
	assert.True(t, d("164").Equal(summary.RevenueByPaymentMethod["card"]))
	assert.True(t, d("20").Equal(summary.RevenueByPaymentMethod["cash"]))
	assert.True(t, d("40").Equal(summary.RevenueByPaymentMethod[UnknownPaymentMethod]))

	require.True(t, summary.RevenueGrowth.Valid)
	assert.True(t, d("100").Equal(summary.RevenueGrowth.Decimal), summary.RevenueGrowth.Decimal.String())
	require.True(t, summary.SalesGrowth.Valid)
	assert.True(t, d("300").Equal(summary.SalesGrowth.Decimal))

	require.Len(t, summary.TopProducts, 2)
	assert.Equal(t, "p-1", summary.TopProducts[0].ProductID)
	assert.True(t, d("100").Equal(summary.TopProducts[0].Revenue))
	assert.Equal(t, "p-2", summary.TopProducts[1].ProductID)
	assert.Equal(t, 4, summary.TopProducts[1].Quantity)
	assert.True(t, d("100").Equal(summary.TopProducts[1].Revenue))
}

func TestSummary_NullDiscountAndNullCustomer(t *testing.T) {
	sale := domain.Sale{
		ID:        "legacy",
		Status:    domain.SaleStatusCompleted,
		Subtotal:  nd("80"),
		Total:     nd("80"),
		CreatedAt: windowStart,
	}
	store := seed(t, nil, []domain.Sale{sale})

	summary, err := NewEngine(store).Summary(context.Background(), Window{From: windowStart, To: windowEnd})
	require.NoError(t, err)

	assert.True(t, summary.DiscountTotal.IsZero())
	assert.True(t, d("80").Equal(summary.NetRevenue))
	assert.Equal(t, 0, summary.UniqueCustomers)
	assert.Empty(t, summary.Segments)
	assert.True(t, d("80").Equal(summary.RevenueByRegion[domain.UnknownRegion]))
	assert.False(t, summary.RevenueGrowth.Valid, "growth from an empty window is undefined")
}

func TestSummary_EmptyWindows(t *testing.T) {
	summary, err := NewEngine(memory.NewStore()).Summary(context.Background(), Window{From: windowStart, To: windowEnd})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalSales)
	assert.True(t, summary.ConversionRate.IsZero())
	assert.True(t, summary.AverageOrderValue.IsZero())
	require.True(t, summary.RevenueGrowth.Valid)
	assert.True(t, summary.RevenueGrowth.Decimal.IsZero())
	assert.NotNil(t, summary.TopProducts)
}

func TestSummary_RejectsInvalidWindow(t *testing.T) {
	engine := NewEngine(memory.NewStore())

	for name, window := range map[string]Window{
		"empty":    {},
		"reversed": {From: windowEnd, To: windowStart},
		"zero":     {From: windowStart, To: windowStart},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := engine.Summary(context.Background(), window)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestWindow_Previous(t *testing.T) {
	prev := Window{From: windowStart, To: windowEnd}.Previous()
	assert.Equal(t, time.Date(2026, 2, 22, 0, 0, 0, 0, time.UTC), prev.From)
	assert.Equal(t, windowStart, prev.To)
}
