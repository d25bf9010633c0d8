// Package sales реализует движок продаж: создание, изменение, проведение и отмену
// продажи с согласованным изменением остатков, баллов лояльности и счётчиков акций.
//
// Каждая операция выполняется одной единицей работы (domain.UnitOfWork): либо
// применяются все изменения, либо ни одного.
package sales

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/metrics"
	"github.com/vladislavdragonenkov/salescore/internal/service/promotion"
)

// Имена операций для логов и метрик.
const (
	opCreate   = "create"
	opUpdate   = "update"
	opComplete = "complete"
	opCancel   = "cancel"
)

// EngineOptions задаёт зависимости движка продаж.
type EngineOptions struct {
	Logger     *log.Entry
	Metrics    *metrics.SalesMetrics
	Promotions *promotion.Engine
	Clock      func() time.Time
}

// Option настраивает Engine.
type Option func(*EngineOptions)

// WithLogger задаёт logger движка.
func WithLogger(logger *log.Entry) Option {
	return func(opts *EngineOptions) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики; без них движок метрики не пишет.
func WithMetrics(m *metrics.SalesMetrics) Option {
	return func(opts *EngineOptions) {
		opts.Metrics = m
	}
}

// WithPromotionEngine подменяет движок акций.
func WithPromotionEngine(engine *promotion.Engine) Option {
	return func(opts *EngineOptions) {
		opts.Promotions = engine
	}
}

// WithClock подменяет источник времени (в тестах).
func WithClock(clock func() time.Time) Option {
	return func(opts *EngineOptions) {
		opts.Clock = clock
	}
}

// Engine — движок продаж.
type Engine struct {
	uow        domain.UnitOfWork
	promotions *promotion.Engine
	logger     *log.Entry
	metrics    *metrics.SalesMetrics
	now        func() time.Time
}

// NewEngine создаёт движок продаж поверх единицы работы хранилища.
func NewEngine(uow domain.UnitOfWork, options ...Option) *Engine {
	var opts EngineOptions
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "sales-engine")
	}
	if opts.Promotions == nil {
		opts.Promotions = promotion.NewEngine(logger.WithField("component", "promotion-engine"))
	}
	if opts.Clock == nil {
		opts.Clock = func() time.Time { return time.Now().UTC() }
	}

	return &Engine{
		uow:        uow,
		promotions: opts.Promotions,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        opts.Clock,
	}
}

// GetSale возвращает продажу вместе с её timeline.
func (e *Engine) GetSale(ctx context.Context, saleID string) (SaleResult, error) {
	var result SaleResult
	err := e.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		sale, err := tx.Sales().Get(ctx, saleID)
		if err != nil {
			return err
		}
		events, err := tx.Timeline().List(ctx, saleID)
		if err != nil {
			return err
		}
		result = SaleResult{Sale: sale, Timeline: events}
		return nil
	})
	return result, err
}

// ListCustomerSales возвращает продажи клиента, новые первыми.
func (e *Engine) ListCustomerSales(ctx context.Context, customerID string, limit int) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := e.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Customers().Get(ctx, customerID); err != nil {
			return err
		}
		list, err := tx.Sales().ListByCustomer(ctx, customerID, limit)
		if err != nil {
			return err
		}
		sales = list
		return nil
	})
	return sales, err
}

// Timeline возвращает историю событий продажи.
func (e *Engine) Timeline(ctx context.Context, saleID string) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := e.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Sales().Get(ctx, saleID); err != nil {
			return err
		}
		list, err := tx.Timeline().List(ctx, saleID)
		if err != nil {
			return err
		}
		events = list
		return nil
	})
	return events, err
}

// finish пишет метрики и лог по итогам операции.
func (e *Engine) finish(op, saleID string, start time.Time, err error) {
	duration := time.Since(start)
	if err == nil {
		e.metrics.RecordOperation(op, metrics.ResultSuccess, duration)
		return
	}

	entry := e.logger.WithError(err).WithFields(log.Fields{
		"operation": op,
		"sale_id":   saleID,
	})
	if reason := rejectionReason(err); reason != "" {
		e.metrics.RecordOperation(op, metrics.ResultRejected, duration)
		e.metrics.RecordRejection(reason)
		entry.WithField("reason", reason).Warn("sale operation rejected")
		return
	}
	e.metrics.RecordOperation(op, metrics.ResultError, duration)
	entry.Error("sale operation failed")
}

// rejectionReason классифицирует бизнес-отказ; пустая строка — внутренняя ошибка.
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientStock), errors.Is(err, domain.ErrStockConflict):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrDataIntegrityViolation):
		return "integrity"
	case errors.Is(err, domain.ErrPromotionUsageExhausted):
		return "promotion_exhausted"
	case errors.Is(err, domain.ErrLoyaltyPointsInsufficient):
		return "loyalty_points"
	case errors.Is(err, domain.ErrVersionConflict):
		return "version_conflict"
	case domain.IsNotFound(err):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return ""
	}
}
