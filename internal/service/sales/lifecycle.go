package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
	"github.com/vladislavdragonenkov/salescore/internal/service/promotion"
)

// CreateSale создаёт продажу в статусе pending: фиксирует цены, применяет акции,
// списывает остатки и баллы, увеличивает счётчики акций.
func (e *Engine) CreateSale(ctx context.Context, req CreateSaleRequest) (result SaleResult, err error) {
	start := time.Now()
	saleID := uuid.NewString()
	defer func() { e.finish(opCreate, saleID, start, err) }()

	req, err = req.normalize()
	if err != nil {
		return SaleResult{}, err
	}

	shipping := decimal.Zero
	if req.ShippingCost != nil {
		shipping = money.Round(*req.ShippingCost)
	}

	now := e.now()
	var created domain.Sale
	err = e.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		customer, err := loadCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		qty := quantities(req.Lines)
		products, err := lockProducts(ctx, tx, sortedIDs(qty))
		if err != nil {
			return err
		}

		sale := domain.Sale{
			ID:             saleID,
			CustomerID:     req.CustomerID,
			Status:         domain.SaleStatusPending,
			PaymentMethod:  req.PaymentMethod,
			PaymentStatus:  domain.PaymentStatusPending,
			DeliveryStatus: domain.DeliveryStatusPending,
			CouponCode:     req.CouponCode,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := e.price(ctx, tx, &sale, req.Lines, products, customer, req.LoyaltyPointsToRedeem, shipping, now); err != nil {
			return err
		}

		if err := tx.Sales().Create(ctx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		if err := reserve(ctx, tx, sale); err != nil {
			return err
		}
		if err := emit(ctx, tx, sale, domain.EventSaleCreated, "", now); err != nil {
			return err
		}
		created = sale
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}

	e.afterCommit(created, domain.EventSaleCreated)
	e.metrics.RecordSalePending()
	return SaleResult{Sale: created, Timeline: []domain.TimelineEvent{{
		SaleID: created.ID, Type: domain.EventSaleCreated, Occurred: now,
	}}}, nil
}

// UpdateSale заменяет позиции продажи в статусе pending. Эффект прежних позиций
// (остатки, баллы, счётчики акций) откатывается, после чего продажа пересчитывается
// так, как если бы её создали с новыми позициями.
func (e *Engine) UpdateSale(ctx context.Context, saleID string, req UpdateSaleRequest) (result SaleResult, err error) {
	start := time.Now()
	defer func() { e.finish(opUpdate, saleID, start, err) }()

	if err = validateLines(req.Lines); err != nil {
		return SaleResult{}, err
	}

	now := e.now()
	var updated domain.Sale
	err = e.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		sale, err := tx.Sales().Get(ctx, saleID)
		if err != nil {
			return err
		}
		// Правка позиций допустима только в pending: попытка «вернуть» продажу в pending.
		if sale.Status != domain.SaleStatusPending {
			return &domain.InvalidStateTransitionError{SaleID: sale.ID, Current: sale.Status, Attempted: domain.SaleStatusPending}
		}

		newQty := quantities(req.Lines)
		union := sale.QuantityByProduct()
		for id := range newQty {
			if _, ok := union[id]; !ok {
				union[id] = 0
			}
		}
		// Блокируем старые и новые товары до любых изменений, в одном порядке.
		if _, err := lockProducts(ctx, tx, sortedIDs(union)); err != nil {
			return err
		}
		if err := ReleaseReservation(ctx, tx, sale); err != nil {
			return err
		}

		customer, err := loadCustomer(ctx, tx, sale.CustomerID)
		if err != nil {
			return err
		}
		products, err := lockProducts(ctx, tx, sortedIDs(newQty))
		if err != nil {
			return err
		}

		shipping := money.Of(sale.ShippingCost)
		if err := e.price(ctx, tx, &sale, req.Lines, products, customer, sale.LoyaltyPointsUsed, shipping, now); err != nil {
			return err
		}
		sale.UpdatedAt = now

		if err := tx.Sales().Save(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		sale.Version++
		if err := reserve(ctx, tx, sale); err != nil {
			return err
		}
		if err := emit(ctx, tx, sale, domain.EventSaleUpdated, "", now); err != nil {
			return err
		}
		updated = sale
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}

	e.afterCommit(updated, domain.EventSaleUpdated)
	return e.withTimeline(ctx, updated), nil
}

// CompleteSale проводит продажу: начисляет баллы, обновляет накопления клиента
// и статистику продаж товаров.
func (e *Engine) CompleteSale(ctx context.Context, saleID string) (result SaleResult, err error) {
	start := time.Now()
	defer func() { e.finish(opComplete, saleID, start, err) }()

	now := e.now()
	var completed domain.Sale
	err = e.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		sale, err := tx.Sales().Get(ctx, saleID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(sale.Status, domain.SaleStatusCompleted) {
			return &domain.InvalidStateTransitionError{SaleID: sale.ID, Current: sale.Status, Attempted: domain.SaleStatusCompleted}
		}

		sale.LoyaltyPointsEarned = earnedPoints(money.Of(sale.NetRevenue))
		if sale.CustomerID != "" {
			customers := tx.Customers()
			if err := customers.AddLoyaltyPoints(ctx, sale.CustomerID, sale.LoyaltyPointsEarned); err != nil {
				return fmt.Errorf("credit loyalty points: %w", err)
			}
			if err := customers.AddPurchaseTotal(ctx, sale.CustomerID, money.Of(sale.Total), 1, &now); err != nil {
				return fmt.Errorf("add purchase total: %w", err)
			}
		}
		for _, line := range sale.Lines {
			if err := tx.Products().RecordSale(ctx, line.ProductID, line.Quantity, lineRevenue(line)); err != nil {
				return fmt.Errorf("record product sale %s: %w", line.ProductID, err)
			}
		}

		sale.Status = domain.SaleStatusCompleted
		sale.PaymentStatus = domain.PaymentStatusPaid
		sale.DeliveryStatus = domain.DeliveryStatusDelivered
		sale.CompletedAt = &now
		sale.UpdatedAt = now
		if err := tx.Sales().Save(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		sale.Version++
		if err := emit(ctx, tx, sale, domain.EventSaleCompleted, "", now); err != nil {
			return err
		}
		completed = sale
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}

	e.afterCommit(completed, domain.EventSaleCompleted)
	e.metrics.RecordSaleSettled()
	e.metrics.RecordCompletedRevenue(money.Of(completed.Total))
	return e.withTimeline(ctx, completed), nil
}

// CancelSale отменяет продажу. Возвращает остатки, списанные баллы и счётчики акций;
// для проведённой продажи точно откатывает начисленные баллы, накопления клиента
// и статистику товаров. Отказывает, пока по продаже есть неотменённые возвраты.
func (e *Engine) CancelSale(ctx context.Context, saleID, reason string) (result SaleResult, err error) {
	start := time.Now()
	defer func() { e.finish(opCancel, saleID, start, err) }()

	now := e.now()
	var cancelled domain.Sale
	var wasPending bool
	err = e.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		sale, err := tx.Sales().Get(ctx, saleID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(sale.Status, domain.SaleStatusCancelled) {
			return &domain.InvalidStateTransitionError{SaleID: sale.ID, Current: sale.Status, Attempted: domain.SaleStatusCancelled}
		}

		activeReturns, err := tx.Returns().CountBySale(ctx, sale.ID, true)
		if err != nil {
			return fmt.Errorf("count returns: %w", err)
		}
		if activeReturns > 0 {
			return &domain.DataIntegrityViolation{
				ResourceType: domain.EntitySale,
				ResourceID:   sale.ID,
				Dependents:   []domain.Dependent{{Type: domain.EntityReturn, Count: activeReturns}},
				Suggestion:   "cancel the sale's returns first",
			}
		}

		if _, err := lockProducts(ctx, tx, sortedIDs(sale.QuantityByProduct())); err != nil {
			return err
		}
		wasPending = sale.Status == domain.SaleStatusPending
		if err := ReleaseReservation(ctx, tx, sale); err != nil {
			return err
		}
		if sale.Status == domain.SaleStatusCompleted {
			if err := reverseCompletion(ctx, tx, sale); err != nil {
				return err
			}
		}

		if sale.PaymentStatus == domain.PaymentStatusPaid {
			sale.PaymentStatus = domain.PaymentStatusRefunded
		} else {
			sale.PaymentStatus = domain.PaymentStatusVoided
		}
		sale.DeliveryStatus = domain.DeliveryStatusCancelled
		sale.Status = domain.SaleStatusCancelled
		sale.CancelledAt = &now
		sale.UpdatedAt = now
		if err := tx.Sales().Save(ctx, sale); err != nil {
			return fmt.Errorf("save sale: %w", err)
		}
		sale.Version++
		if err := emit(ctx, tx, sale, domain.EventSaleCancelled, reason, now); err != nil {
			return err
		}
		cancelled = sale
		return nil
	})
	if err != nil {
		return SaleResult{}, err
	}

	e.afterCommit(cancelled, domain.EventSaleCancelled)
	if wasPending {
		e.metrics.RecordSaleSettled()
	}
	return e.withTimeline(ctx, cancelled), nil
}

// price строит позиции, проверяет остатки, применяет акции и баллы и записывает суммы в sale.
func (e *Engine) price(
	ctx context.Context,
	tx domain.Tx,
	sale *domain.Sale,
	reqLines []LineRequest,
	products map[string]domain.Product,
	customer *domain.Customer,
	pointsRequested int,
	shipping decimal.Decimal,
	now time.Time,
) error {
	lines, err := buildLines(sale.ID, reqLines, products)
	if err != nil {
		return err
	}

	qty := quantities(reqLines)
	for _, id := range sortedIDs(qty) {
		if available := products[id].StockQuantity; available < qty[id] {
			return &domain.InsufficientStockError{ProductID: id, Requested: qty[id], Available: available}
		}
	}

	p := priced{lines: lines, shipping: shipping}
	for _, line := range lines {
		p.subtotal = p.subtotal.Add(money.MulInt(line.UnitPrice, line.Quantity))
		p.lineDiscount = p.lineDiscount.Add(line.Discount)
		p.tax = p.tax.Add(line.Tax)
	}

	if err := tx.Promotions().LockApplicable(ctx, now, sale.CouponCode); err != nil {
		return fmt.Errorf("lock promotions: %w", err)
	}
	active, err := tx.Promotions().FindActiveByWindow(ctx, now)
	if err != nil {
		return fmt.Errorf("find active promotions: %w", err)
	}
	var coupon *domain.Promotion
	if sale.CouponCode != "" {
		found, err := tx.Promotions().FindByCoupon(ctx, sale.CouponCode)
		switch {
		case err == nil:
			coupon = &found
		case !errors.Is(err, domain.ErrPromotionNotFound):
			return fmt.Errorf("find coupon: %w", err)
		}
	}

	p.promo, err = e.promotions.Evaluate(promotion.Request{
		OrderAmount: p.subtotal.Sub(p.lineDiscount),
		Customer:    customer,
		CouponCode:  sale.CouponCode,
		Now:         now,
	}, active, coupon)
	if err != nil {
		return err
	}

	if pointsRequested > 0 {
		if customer == nil {
			return domain.NewValidationError("loyalty_points_to_redeem", "requires a customer")
		}
		p.pointsUsed, p.pointsDiscount, err = redeemPoints(pointsRequested, customer.LoyaltyPoints, p.promo.FinalAmount)
		if err != nil {
			return err
		}
	}

	p.apply(sale, now)
	if errs := sale.ValidateInvariants(); len(errs) > 0 {
		return fmt.Errorf("sale %s totals: %w", sale.ID, errors.Join(errs...))
	}
	return nil
}

// reserve применяет эффекты pending-продажи: списывает остатки и баллы, увеличивает счётчики акций.
func reserve(ctx context.Context, tx domain.Tx, sale domain.Sale) error {
	qty := sale.QuantityByProduct()
	for _, id := range sortedIDs(qty) {
		if err := tx.Products().AdjustStock(ctx, id, -qty[id]); err != nil {
			if errors.Is(err, domain.ErrStockConflict) {
				product, getErr := tx.Products().Get(ctx, id)
				if getErr != nil {
					return fmt.Errorf("reload product %s: %w", id, getErr)
				}
				return &domain.InsufficientStockError{ProductID: id, Requested: qty[id], Available: product.StockQuantity}
			}
			return fmt.Errorf("decrement stock %s: %w", id, err)
		}
	}
	for _, applied := range sale.AppliedPromotions {
		if err := tx.Promotions().IncrementUsage(ctx, applied.PromotionID); err != nil {
			if errors.Is(err, domain.ErrPromotionUsageExhausted) {
				if applied.CouponCode != "" {
					return domain.NewValidationError("coupon_code", "coupon usage limit reached")
				}
				return fmt.Errorf("promotion %s: %w", applied.PromotionID, err)
			}
			return fmt.Errorf("increment promotion usage %s: %w", applied.PromotionID, err)
		}
	}
	if sale.LoyaltyPointsUsed > 0 {
		if err := tx.Customers().AddLoyaltyPoints(ctx, sale.CustomerID, -sale.LoyaltyPointsUsed); err != nil {
			if errors.Is(err, domain.ErrLoyaltyPointsInsufficient) {
				return domain.NewValidationError("loyalty_points_to_redeem", err.Error())
			}
			return fmt.Errorf("redeem loyalty points: %w", err)
		}
	}
	return nil
}

// ReleaseReservation откатывает эффекты pending-продажи: возвращает остатки,
// списанные баллы и счётчики акций. Вызывается внутри единицы работы.
func ReleaseReservation(ctx context.Context, tx domain.Tx, sale domain.Sale) error {
	qty := sale.QuantityByProduct()
	for _, id := range sortedIDs(qty) {
		if err := tx.Products().AdjustStock(ctx, id, qty[id]); err != nil {
			return fmt.Errorf("restore stock %s: %w", id, err)
		}
	}
	for _, applied := range sale.AppliedPromotions {
		if err := tx.Promotions().DecrementUsage(ctx, applied.PromotionID); err != nil && !errors.Is(err, domain.ErrPromotionNotFound) {
			return fmt.Errorf("decrement promotion usage %s: %w", applied.PromotionID, err)
		}
	}
	if sale.LoyaltyPointsUsed > 0 {
		if err := tx.Customers().AddLoyaltyPoints(ctx, sale.CustomerID, sale.LoyaltyPointsUsed); err != nil {
			return fmt.Errorf("restore redeemed points: %w", err)
		}
	}
	return nil
}

// reverseCompletion откатывает эффекты CompleteSale.
func reverseCompletion(ctx context.Context, tx domain.Tx, sale domain.Sale) error {
	if sale.CustomerID != "" {
		customers := tx.Customers()
		if err := customers.AddLoyaltyPoints(ctx, sale.CustomerID, -sale.LoyaltyPointsEarned); err != nil {
			if errors.Is(err, domain.ErrLoyaltyPointsInsufficient) {
				return earnedPointsSpent(ctx, tx, sale)
			}
			return fmt.Errorf("reverse earned points: %w", err)
		}
		last, err := lastPurchaseExcluding(ctx, tx, sale.CustomerID, sale.ID)
		if err != nil {
			return err
		}
		if err := customers.AddPurchaseTotal(ctx, sale.CustomerID, money.Of(sale.Total).Neg(), -1, last); err != nil {
			return fmt.Errorf("reverse purchase total: %w", err)
		}
	}
	for _, line := range sale.Lines {
		if err := tx.Products().RecordSale(ctx, line.ProductID, -line.Quantity, lineRevenue(line).Neg()); err != nil {
			return fmt.Errorf("reverse product sale %s: %w", line.ProductID, err)
		}
	}
	return nil
}

// earnedPointsSpent строит отказ отмены, когда клиент уже потратил начисленные за продажу баллы.
func earnedPointsSpent(ctx context.Context, tx domain.Tx, sale domain.Sale) error {
	customer, err := tx.Customers().Get(ctx, sale.CustomerID)
	if err != nil {
		return fmt.Errorf("reload customer %s: %w", sale.CustomerID, err)
	}
	return &domain.LoyaltyPointsError{
		CustomerID: sale.CustomerID,
		Requested:  sale.LoyaltyPointsEarned,
		Available:  customer.LoyaltyPoints,
	}
}

// lastPurchaseExcluding ищет дату последней проведённой продажи клиента без учёта saleID.
func lastPurchaseExcluding(ctx context.Context, tx domain.Tx, customerID, saleID string) (*time.Time, error) {
	sales, err := tx.Sales().ListByCustomer(ctx, customerID, 0)
	if err != nil {
		return nil, fmt.Errorf("list customer sales: %w", err)
	}
	var last *time.Time
	for _, s := range sales {
		if s.ID == saleID || s.Status != domain.SaleStatusCompleted || s.CompletedAt == nil {
			continue
		}
		if last == nil || s.CompletedAt.After(*last) {
			t := *s.CompletedAt
			last = &t
		}
	}
	return last, nil
}

// lineRevenue — выручка позиции без налога.
func lineRevenue(line domain.SaleLine) decimal.Decimal {
	return line.LineTotal.Sub(line.Tax)
}

func loadCustomer(ctx context.Context, tx domain.Tx, customerID string) (*domain.Customer, error) {
	if customerID == "" {
		return nil, nil
	}
	customer, err := tx.Customers().Get(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return nil, domain.NewValidationError("customer_id", "customer "+customerID+" not found")
		}
		return nil, fmt.Errorf("load customer: %w", err)
	}
	return &customer, nil
}

func lockProducts(ctx context.Context, tx domain.Tx, ids []string) (map[string]domain.Product, error) {
	products, err := tx.Products().Lock(ctx, ids)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.NewValidationError("lines", err.Error())
		}
		return nil, fmt.Errorf("lock products: %w", err)
	}
	return products, nil
}

// afterCommit пишет лог и метрики событий после успешной фиксации.
func (e *Engine) afterCommit(sale domain.Sale, eventType string) {
	e.metrics.RecordTimelineEvent()
	e.metrics.RecordOutboxEvent()
	e.logger.WithFields(log.Fields{
		"sale_id":     sale.ID,
		"customer_id": sale.CustomerID,
		"status":      sale.Status,
		"total":       money.Of(sale.Total).StringFixed(money.Scale),
		"event":       eventType,
	}).Info("sale state changed")
}

// withTimeline дополняет результат историей; ошибка чтения истории не отменяет операцию.
func (e *Engine) withTimeline(ctx context.Context, sale domain.Sale) SaleResult {
	events, err := e.Timeline(ctx, sale.ID)
	if err != nil {
		e.logger.WithError(err).WithField("sale_id", sale.ID).Warn("load sale timeline failed")
	}
	return SaleResult{Sale: sale, Timeline: events}
}
