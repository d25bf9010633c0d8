package sales

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
	"github.com/vladislavdragonenkov/salescore/internal/service/promotion"
)

// pointValue — стоимость одного балла лояльности при списании.
var pointValue = decimal.RequireFromString("0.10")

// pointsPerCurrency — за сколько единиц чистой выручки начисляется один балл.
var pointsPerCurrency = decimal.NewFromInt(10)

// priced — позиции и суммы продажи до применения к хранилищу.
type priced struct {
	lines          []domain.SaleLine
	subtotal       decimal.Decimal
	lineDiscount   decimal.Decimal
	tax            decimal.Decimal
	promo          promotion.Result
	pointsUsed     int
	pointsDiscount decimal.Decimal
	shipping       decimal.Decimal
}

// buildLines фиксирует цену и считает скидку и налог по каждой позиции.
func buildLines(saleID string, reqLines []LineRequest, products map[string]domain.Product) ([]domain.SaleLine, error) {
	lines := make([]domain.SaleLine, 0, len(reqLines))
	for i, req := range reqLines {
		productID := strings.TrimSpace(req.ProductID)
		product, ok := products[productID]
		if !ok {
			return nil, domain.NewValidationError(fmt.Sprintf("lines[%d].product_id", i), "product not found")
		}
		if !product.Active {
			return nil, domain.NewValidationError(fmt.Sprintf("lines[%d].product_id", i), "product is inactive")
		}

		unitPrice := product.Price
		if req.UnitPriceOverride != nil {
			unitPrice = *req.UnitPriceOverride
		}
		unitPrice = money.Round(unitPrice)
		gross := money.MulInt(unitPrice, req.Quantity)

		discount := decimal.Zero
		if req.Discount != nil {
			discount = money.Min(money.Round(*req.Discount), gross)
		}
		net := gross.Sub(discount)
		tax := money.Percent(net, money.Of(product.TaxRate))

		lines = append(lines, domain.SaleLine{
			ID:          uuid.NewString(),
			SaleID:      saleID,
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    req.Quantity,
			UnitPrice:   unitPrice,
			Discount:    discount,
			Tax:         tax,
			LineTotal:   net.Add(tax),
		})
	}
	return lines, nil
}

// redeemPoints ограничивает списание баллов суммой после акций.
func redeemPoints(requested, available int, amount decimal.Decimal) (int, decimal.Decimal, error) {
	if requested <= 0 {
		return 0, decimal.Zero, nil
	}
	if requested > available {
		return 0, decimal.Zero, domain.NewValidationError("loyalty_points_to_redeem",
			fmt.Sprintf("customer has %d points, requested %d", available, requested))
	}
	maxPoints := amount.Div(pointValue).Floor().IntPart()
	used := requested
	if int64(used) > maxPoints {
		used = int(maxPoints)
	}
	return used, money.Round(pointValue.Mul(decimal.NewFromInt(int64(used)))), nil
}

// earnedPoints — баллы за проведённую продажу: floor(NetRevenue / 10).
func earnedPoints(netRevenue decimal.Decimal) int {
	if !netRevenue.IsPositive() {
		return 0
	}
	return int(netRevenue.Div(pointsPerCurrency).Floor().IntPart())
}

// apply записывает рассчитанные суммы в продажу.
func (p priced) apply(sale *domain.Sale, now time.Time) {
	sale.Lines = p.lines
	discount := p.lineDiscount.Add(p.promo.Discount).Add(p.pointsDiscount)
	netRevenue := money.NonNegative(p.subtotal.Sub(discount))
	total := netRevenue.Add(p.tax).Add(p.shipping)

	sale.Subtotal = money.Valid(p.subtotal)
	sale.DiscountAmount = money.Valid(discount)
	sale.TaxAmount = money.Valid(p.tax)
	sale.ShippingCost = money.Valid(p.shipping)
	sale.NetRevenue = money.Valid(netRevenue)
	sale.Total = money.Valid(total)
	sale.LoyaltyPointsUsed = p.pointsUsed

	applied := make([]domain.AppliedPromotion, 0, len(p.promo.Applied))
	for _, a := range p.promo.Applied {
		a.ID = uuid.NewString()
		a.SaleID = sale.ID
		a.AppliedAt = now
		applied = append(applied, a)
	}
	sale.AppliedPromotions = applied
}

// sortedIDs возвращает ключи в детерминированном порядке для блокировок.
func sortedIDs(m map[string]int) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
