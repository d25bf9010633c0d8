// Package catalog принимает справочные данные: клиентов, товары, категории,
// поставщиков, акции, заказы поставщикам и возвраты.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.now = clock
		}
	}
}

// Service создаёт и читает справочные записи.
type Service struct {
	uow    domain.UnitOfWork
	logger *log.Entry
	now    func() time.Time
	newID  func() string
}

// NewService создаёт сервис справочников.
func NewService(uow domain.UnitOfWork, options ...Option) *Service {
	s := &Service{
		uow:    uow,
		logger: log.WithField("component", "catalog"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// GetCustomer возвращает клиента.
func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	var customer domain.Customer
	err := s.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		customer, err = tx.Customers().Get(ctx, id)
		return err
	})
	return customer, err
}

// GetProduct возвращает товар.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := s.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		product, err = tx.Products().Get(ctx, id)
		return err
	})
	return product, err
}

// GetReturn возвращает возврат с позициями.
func (s *Service) GetReturn(ctx context.Context, id string) (domain.Return, error) {
	var ret domain.Return
	err := s.uow.View(ctx, func(ctx context.Context, tx domain.Tx) error {
		var err error
		ret, err = tx.Returns().Get(ctx, id)
		return err
	})
	return ret, err
}

func (s *Service) created(entity domain.EntityType, id string) {
	s.logger.WithFields(log.Fields{
		"entity_type": entity,
		"entity_id":   id,
	}).Info("record created")
}
