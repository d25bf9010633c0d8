package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type RepositoriesIntegrationSuite struct {
	suite.Suite
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestRepositoriesIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RepositoriesIntegrationSuite))
}

func (s *RepositoriesIntegrationSuite) SetupTest() {
	s.store = openPostgresStoreForIntegrationTest(s.T())
	s.ctx = context.Background()
	s.now = time.Now().UTC().Truncate(time.Microsecond)
	seedCatalog(s.T(), s.store, 10)
}

func (s *RepositoriesIntegrationSuite) do(fn func(ctx context.Context, tx domain.Tx) error) error {
	return s.store.Do(s.ctx, fn)
}

func (s *RepositoriesIntegrationSuite) TestPromotionUsageLimit() {
	limit := 1
	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		return tx.Promotions().Create(ctx, domain.Promotion{
			ID: "promo-1", Name: "Spring", Type: domain.DiscountPercentage, Value: decimal.NewFromInt(10),
			StartsAt: s.now.Add(-time.Hour), Eligibility: domain.EligibilityAll, Active: true,
			MaxUsage: &limit, CouponCode: "SPRING10", Version: 1, CreatedAt: s.now, UpdatedAt: s.now,
		})
	}))

	err := s.do(func(ctx context.Context, tx domain.Tx) error {
		return tx.Promotions().Create(ctx, domain.Promotion{
			ID: "promo-2", Name: "Dup", Type: domain.DiscountPercentage, Value: decimal.NewFromInt(5),
			StartsAt: s.now, Eligibility: domain.EligibilityAll, CouponCode: "SPRING10", CreatedAt: s.now, UpdatedAt: s.now,
		})
	})
	s.ErrorIs(err, domain.ErrAlreadyExists)

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		return tx.Promotions().IncrementUsage(ctx, "promo-1")
	}))
	err = s.do(func(ctx context.Context, tx domain.Tx) error {
		return tx.Promotions().IncrementUsage(ctx, "promo-1")
	})
	s.ErrorIs(err, domain.ErrPromotionUsageExhausted)

	s.Require().NoError(s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		promo, err := tx.Promotions().FindByCoupon(ctx, "SPRING10")
		if err != nil {
			return err
		}
		s.Equal(1, promo.UsageCount)
		s.True(promo.EndsAt.IsZero())

		active, err := tx.Promotions().FindActiveByWindow(ctx, s.now)
		s.Len(active, 1)
		return err
	}))
}

func (s *RepositoriesIntegrationSuite) TestReturnsLifecycle() {
	sale := pendingSale("s-1", 2)
	sale.Status = domain.SaleStatusCompleted
	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Sales().Create(ctx, sale); err != nil {
			return err
		}
		return tx.Returns().Create(ctx, domain.Return{
			ID: "r-1", SaleID: "s-1", CustomerID: "c-1", Status: domain.ReturnStatusRequested,
			Items: []domain.ReturnItem{{
				ID: "ri-1", SaleLineID: "s-1-l1", ProductID: "p-1", Quantity: 1,
				RefundAmount: decimal.RequireFromString("20.00"),
			}},
			CreatedAt: s.now, UpdatedAt: s.now,
		})
	}))

	s.Require().NoError(s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		ret, err := tx.Returns().Get(ctx, "r-1")
		if err != nil {
			return err
		}
		s.Require().Len(ret.Items, 1)
		s.Equal("r-1", ret.Items[0].ReturnID)

		active, err := tx.Returns().CountBySale(ctx, "s-1", true)
		s.Equal(1, active)
		return err
	}))

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		return tx.Returns().UpdateStatus(ctx, "r-1", domain.ReturnStatusCancelled)
	}))

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		active, err := tx.Returns().CountBySale(ctx, "s-1", true)
		if err != nil {
			return err
		}
		s.Zero(active)

		returns, items, err := tx.Returns().DeleteByCustomer(ctx, "c-1")
		s.Equal(1, returns)
		s.Equal(1, items)
		return err
	}))

	err := s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Returns().Get(ctx, "r-1")
		return err
	})
	s.ErrorIs(err, domain.ErrReturnNotFound)
}

func (s *RepositoriesIntegrationSuite) TestPurchaseOrdersAndSupplierDetach() {
	supplierID := "sup-1"
	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Suppliers().Create(ctx, domain.Supplier{ID: supplierID, Name: "Acme", CreatedAt: s.now}); err != nil {
			return err
		}
		return tx.PurchaseOrders().Create(ctx, domain.PurchaseOrder{
			ID: "po-1", SupplierID: &supplierID, Status: domain.PurchaseOrderDraft,
			Lines: []domain.PurchaseOrderLine{
				{ID: "pol-1", ProductID: "p-1", Quantity: 5, UnitCost: decimal.RequireFromString("7.50")},
				{ID: "pol-2", ProductID: "p-1", Quantity: 1, UnitCost: decimal.RequireFromString("8.00")},
			},
			CreatedAt: s.now, UpdatedAt: s.now,
		})
	}))

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		orders, err := tx.PurchaseOrders().ListBySupplier(ctx, supplierID)
		if err != nil {
			return err
		}
		s.Require().Len(orders, 1)
		s.Require().Len(orders[0].Lines, 2)
		s.Equal("pol-1", orders[0].Lines[0].ID)

		lines, err := tx.PurchaseOrders().CountLinesByProduct(ctx, "p-1")
		if err != nil {
			return err
		}
		s.Equal(2, lines)

		detached, err := tx.PurchaseOrders().DetachSupplier(ctx, supplierID)
		if err != nil {
			return err
		}
		s.Equal(1, detached)
		return tx.Suppliers().Delete(ctx, supplierID)
	}))

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		po, err := tx.PurchaseOrders().Get(ctx, "po-1")
		if err != nil {
			return err
		}
		s.Nil(po.SupplierID)

		removed, err := tx.PurchaseOrders().Delete(ctx, "po-1")
		s.Equal(2, removed)
		return err
	}))
}

func (s *RepositoriesIntegrationSuite) TestCategoryClearOnProducts() {
	categoryID := "cat-1"
	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Categories().Create(ctx, domain.Category{ID: categoryID, Name: "Tools", CreatedAt: s.now}); err != nil {
			return err
		}
		return tx.Products().Create(ctx, domain.Product{
			ID: "p-2", SKU: "SKU-2", Name: "Hammer", CategoryID: &categoryID, Price: decimal.NewFromInt(15),
			Active: true, TotalRevenue: decimal.Zero, CreatedAt: s.now, UpdatedAt: s.now,
		})
	}))

	s.Require().NoError(s.do(func(ctx context.Context, tx domain.Tx) error {
		cleared, err := tx.Products().ClearCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		s.Equal(1, cleared)
		return tx.Categories().Delete(ctx, categoryID)
	}))

	err := s.store.View(s.ctx, func(ctx context.Context, tx domain.Tx) error {
		_, err := tx.Categories().Get(ctx, categoryID)
		return err
	})
	s.ErrorIs(err, domain.ErrCategoryNotFound)
}
