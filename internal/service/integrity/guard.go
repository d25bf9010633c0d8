// Package integrity удаляет записи с предварительной проверкой зависимостей.
//
// Каждое удаление работает в одном из двух режимов: безопасный отказывает при
// наличии зависимых записей и возвращает их количество, принудительный явно
// удаляет или отвязывает зависимые записи. Каскадные правила хранилища не
// используются: схема объявляет внешние ключи с ON DELETE RESTRICT.
package integrity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/service/sales"
)

const (
	suggestCustomer = "process or cancel all sales and returns first, or retry with force"
	suggestProduct  = "deactivate the product instead"
	suggestSupplier = "receive or cancel open purchase orders first, or retry with force"
	suggestSale     = "remove the sale's returns first, or retry with force"
)

// DeleteRequest — запрос на удаление записи.
type DeleteRequest struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Force      bool              `json:"force"`
}

// DeleteResult описывает, что было удалено и что отвязано.
type DeleteResult struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Deleted    map[string]int    `json:"deleted"`
	Detached   map[string]int    `json:"detached"`
}

func newResult(req DeleteRequest) DeleteResult {
	return DeleteResult{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Deleted:    make(map[string]int),
		Detached:   make(map[string]int),
	}
}

func (r DeleteResult) add(t domain.EntityType, n int) {
	if n > 0 {
		r.Deleted[string(t)] += n
	}
}

func (r DeleteResult) detach(t domain.EntityType, n int) {
	if n > 0 {
		r.Detached[string(t)] += n
	}
}

// Option настраивает Guard.
type Option func(*Guard)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithMetrics задаёт метрики удалений.
func WithMetrics(m *metrics.SalesMetrics) Option {
	return func(g *Guard) {
		g.metrics = m
	}
}

// Guard удаляет записи, соблюдая ссылочную целостность.
type Guard struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.SalesMetrics
}

// NewGuard создаёт guard поверх единицы работы хранилища.
func NewGuard(uow domain.UnitOfWork, options ...Option) *Guard {
	g := &Guard{
		uow:    uow,
		logger: log.WithField("component", "integrity-guard"),
	}
	for _, option := range options {
		option(g)
	}
	return g
}

// Delete удаляет запись указанного типа в безопасном или принудительном режиме.
func (g *Guard) Delete(ctx context.Context, req DeleteRequest) (result DeleteResult, err error) {
	req.EntityID = strings.TrimSpace(req.EntityID)
	if req.EntityID == "" {
		return DeleteResult{}, domain.NewValidationError("entity_id", "is required")
	}

	var run func(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error
	switch req.EntityType {
	case domain.EntityCustomer:
		run = deleteCustomer
	case domain.EntityProduct:
		run = deleteProduct
	case domain.EntityCategory:
		run = deleteCategory
	case domain.EntitySupplier:
		run = deleteSupplier
	case domain.EntitySale:
		run = deleteSale
	default:
		return DeleteResult{}, domain.NewValidationError("entity_type", fmt.Sprintf("deletion of %q is not supported", req.EntityType))
	}

	defer func() { g.record(req, result, err) }()

	result = newResult(req)
	err = g.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		for k := range result.Deleted {
			delete(result.Deleted, k)
		}
		for k := range result.Detached {
			delete(result.Detached, k)
		}
		if err := run(ctx, tx, req, result); err != nil {
			return err
		}
		return enqueueDeleted(ctx, tx, result)
	})
	if err != nil {
		return DeleteResult{}, err
	}
	return result, nil
}

func (g *Guard) record(req DeleteRequest, result DeleteResult, err error) {
	entry := g.logger.WithFields(log.Fields{
		"entity_type": req.EntityType,
		"entity_id":   req.EntityID,
		"force":       req.Force,
	})
	switch {
	case err == nil:
		g.metrics.RecordDeletion(string(req.EntityType), req.Force, metrics.ResultSuccess)
		entry.WithFields(log.Fields{
			"deleted":  result.Deleted,
			"detached": result.Detached,
		}).Info("entity deleted")
	case errors.Is(err, domain.ErrDataIntegrityViolation), domain.IsNotFound(err), errors.Is(err, domain.ErrValidation):
		g.metrics.RecordDeletion(string(req.EntityType), req.Force, metrics.ResultRejected)
		entry.WithError(err).Warn("deletion refused")
	default:
		g.metrics.RecordDeletion(string(req.EntityType), req.Force, metrics.ResultError)
		entry.WithError(err).Error("deletion failed")
	}
}

// violation собирает ошибку целостности только из ненулевых зависимостей.
func violation(t domain.EntityType, id, suggestion string, deps ...domain.Dependent) error {
	nonZero := make([]domain.Dependent, 0, len(deps))
	for _, dep := range deps {
		if dep.Count > 0 {
			nonZero = append(nonZero, dep)
		}
	}
	if len(nonZero) == 0 {
		return nil
	}
	return &domain.DataIntegrityViolation{
		ResourceType: t,
		ResourceID:   id,
		Dependents:   nonZero,
		Suggestion:   suggestion,
	}
}

func deleteCustomer(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error {
	if _, err := tx.Customers().Get(ctx, req.EntityID); err != nil {
		return err
	}
	salesCount, err := tx.Sales().CountByCustomer(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("count sales: %w", err)
	}
	returnsCount, err := tx.Returns().CountByCustomer(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("count returns: %w", err)
	}

	if !req.Force {
		if err := violation(domain.EntityCustomer, req.EntityID, suggestCustomer,
			domain.Dependent{Type: domain.EntitySale, Count: salesCount},
			domain.Dependent{Type: domain.EntityReturn, Count: returnsCount},
		); err != nil {
			return err
		}
	}

	returns, items, err := tx.Returns().DeleteByCustomer(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("delete returns: %w", err)
	}
	res.add(domain.EntityReturn, returns)
	res.add(domain.EntityReturnItem, items)

	customerSales, err := tx.Sales().ListByCustomer(ctx, req.EntityID, 0)
	if err != nil {
		return fmt.Errorf("list sales: %w", err)
	}
	for _, sale := range customerSales {
		if err := removeSale(ctx, tx, sale, res); err != nil {
			return err
		}
	}

	if err := tx.Customers().Delete(ctx, req.EntityID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	res.add(domain.EntityCustomer, 1)
	return nil
}

func deleteProduct(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error {
	if _, err := tx.Products().Get(ctx, req.EntityID); err != nil {
		return err
	}
	saleLines, err := tx.Sales().CountLinesByProduct(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("count sale lines: %w", err)
	}
	returnItems, err := tx.Returns().CountItemsByProduct(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("count return items: %w", err)
	}
	poLines, err := tx.PurchaseOrders().CountLinesByProduct(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("count purchase order lines: %w", err)
	}

	// Историю продаж не удаляем ни в каком режиме.
	if err := violation(domain.EntityProduct, req.EntityID, suggestProduct,
		domain.Dependent{Type: domain.EntitySaleLine, Count: saleLines},
		domain.Dependent{Type: domain.EntityReturnItem, Count: returnItems},
		domain.Dependent{Type: domain.EntityPurchaseOrderLine, Count: poLines},
	); err != nil {
		return err
	}

	if err := tx.Products().Delete(ctx, req.EntityID); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	res.add(domain.EntityProduct, 1)
	return nil
}

func deleteCategory(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error {
	if _, err := tx.Categories().Get(ctx, req.EntityID); err != nil {
		return err
	}
	cleared, err := tx.Products().ClearCategory(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("clear category: %w", err)
	}
	res.detach(domain.EntityProduct, cleared)

	if err := tx.Categories().Delete(ctx, req.EntityID); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	res.add(domain.EntityCategory, 1)
	return nil
}

func deleteSupplier(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error {
	if _, err := tx.Suppliers().Get(ctx, req.EntityID); err != nil {
		return err
	}
	orders, err := tx.PurchaseOrders().ListBySupplier(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("list purchase orders: %w", err)
	}

	if req.Force {
		for _, order := range orders {
			lines, err := tx.PurchaseOrders().Delete(ctx, order.ID)
			if err != nil {
				return fmt.Errorf("delete purchase order %s: %w", order.ID, err)
			}
			res.add(domain.EntityPurchaseOrder, 1)
			res.add(domain.EntityPurchaseOrderLine, lines)
		}
	} else {
		open := 0
		for _, order := range orders {
			if order.Status.Open() {
				open++
			}
		}
		if err := violation(domain.EntitySupplier, req.EntityID, suggestSupplier,
			domain.Dependent{Type: domain.EntityPurchaseOrder, Count: open},
		); err != nil {
			return err
		}
		detached, err := tx.PurchaseOrders().DetachSupplier(ctx, req.EntityID)
		if err != nil {
			return fmt.Errorf("detach purchase orders: %w", err)
		}
		res.detach(domain.EntityPurchaseOrder, detached)
	}

	products, err := tx.Products().ClearSupplier(ctx, req.EntityID)
	if err != nil {
		return fmt.Errorf("clear product supplier: %w", err)
	}
	res.detach(domain.EntityProduct, products)

	if err := tx.Suppliers().Delete(ctx, req.EntityID); err != nil {
		return fmt.Errorf("delete supplier: %w", err)
	}
	res.add(domain.EntitySupplier, 1)
	return nil
}

func deleteSale(ctx context.Context, tx domain.Tx, req DeleteRequest, res DeleteResult) error {
	sale, err := tx.Sales().Get(ctx, req.EntityID)
	if err != nil {
		return err
	}
	if !req.Force {
		returns, err := tx.Returns().CountBySale(ctx, sale.ID, false)
		if err != nil {
			return fmt.Errorf("count returns: %w", err)
		}
		if err := violation(domain.EntitySale, sale.ID, suggestSale,
			domain.Dependent{Type: domain.EntityReturn, Count: returns},
		); err != nil {
			return err
		}
	}
	return removeSale(ctx, tx, sale, res)
}

// removeSale удаляет продажу вместе с её возвратами. Остатки, зарезервированные
// pending-продажей, возвращаются на склад.
func removeSale(ctx context.Context, tx domain.Tx, sale domain.Sale, res DeleteResult) error {
	returns, items, err := tx.Returns().DeleteBySale(ctx, sale.ID)
	if err != nil {
		return fmt.Errorf("delete returns of sale %s: %w", sale.ID, err)
	}
	res.add(domain.EntityReturn, returns)
	res.add(domain.EntityReturnItem, items)

	if sale.Status == domain.SaleStatusPending {
		if err := sales.ReleaseReservation(ctx, tx, sale); err != nil {
			return fmt.Errorf("release sale %s: %w", sale.ID, err)
		}
	}

	if err := tx.Sales().Delete(ctx, sale.ID); err != nil {
		return fmt.Errorf("delete sale %s: %w", sale.ID, err)
	}
	res.add(domain.EntitySale, 1)
	res.add(domain.EntitySaleLine, len(sale.Lines))
	res.add(domain.EntityAppliedPromotion, len(sale.AppliedPromotions))
	return nil
}

type deletedEvent struct {
	EntityType domain.EntityType `json:"entity_type"`
	EntityID   string            `json:"entity_id"`
	Deleted    map[string]int    `json:"deleted"`
	Detached   map[string]int    `json:"detached"`
	OccurredAt string            `json:"occurred_at"`
}

func enqueueDeleted(ctx context.Context, tx domain.Tx, res DeleteResult) error {
	payload, err := json.Marshal(deletedEvent{
		EntityType: res.EntityType,
		EntityID:   res.EntityID,
		Deleted:    res.Deleted,
		Detached:   res.Detached,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", domain.EventEntityDeleted, err)
	}
	if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: string(res.EntityType),
		AggregateID:   res.EntityID,
		EventType:     domain.EventEntityDeleted,
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue %s: %w", domain.EventEntityDeleted, err)
	}
	return nil
}
