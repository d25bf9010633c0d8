package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
	"github.com/vladislavdragonenkov/salescore/internal/money"
)

// CreateCustomer регистрирует клиента.
func (s *Service) CreateCustomer(ctx context.Context, in CustomerInput) (domain.Customer, error) {
	if err := required("name", in.Name); err != nil {
		return domain.Customer{}, err
	}
	now := s.now()
	customer := domain.Customer{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Customers().Create(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, fmt.Errorf("create customer: %w", err)
	}
	s.created(domain.EntityCustomer, customer.ID)
	return customer, nil
}

// CreateCategory создаёт категорию.
func (s *Service) CreateCategory(ctx context.Context, in CategoryInput) (domain.Category, error) {
	if err := required("name", in.Name); err != nil {
		return domain.Category{}, err
	}
	category := domain.Category{ID: s.newID(), Name: strings.TrimSpace(in.Name), CreatedAt: s.now()}
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Categories().Create(ctx, category)
	})
	if err != nil {
		return domain.Category{}, fmt.Errorf("create category: %w", err)
	}
	s.created(domain.EntityCategory, category.ID)
	return category, nil
}

// CreateSupplier создаёт поставщика.
func (s *Service) CreateSupplier(ctx context.Context, in SupplierInput) (domain.Supplier, error) {
	if err := required("name", in.Name); err != nil {
		return domain.Supplier{}, err
	}
	supplier := domain.Supplier{
		ID:        s.newID(),
		Name:      strings.TrimSpace(in.Name),
		Contact:   strings.TrimSpace(in.Contact),
		CreatedAt: s.now(),
	}
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Suppliers().Create(ctx, supplier)
	})
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	s.created(domain.EntitySupplier, supplier.ID)
	return supplier, nil
}

// CreateProduct создаёт активный товар. Категория и поставщик, если заданы, должны существовать.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (domain.Product, error) {
	if err := in.validate(); err != nil {
		return domain.Product{}, err
	}
	now := s.now()
	product := domain.Product{
		ID:            s.newID(),
		SKU:           strings.TrimSpace(in.SKU),
		Name:          strings.TrimSpace(in.Name),
		Price:         money.Round(in.Price),
		StockQuantity: in.StockQuantity,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.TaxRate != nil {
		product.TaxRate = money.Valid(*in.TaxRate)
	}
	if id := strings.TrimSpace(in.CategoryID); id != "" {
		product.CategoryID = &id
	}
	if id := strings.TrimSpace(in.SupplierID); id != "" {
		product.SupplierID = &id
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		if product.CategoryID != nil {
			if _, err := tx.Categories().Get(ctx, *product.CategoryID); err != nil {
				return referenceError("category_id", err)
			}
		}
		if product.SupplierID != nil {
			if _, err := tx.Suppliers().Get(ctx, *product.SupplierID); err != nil {
				return referenceError("supplier_id", err)
			}
		}
		return tx.Products().Create(ctx, product)
	})
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.created(domain.EntityProduct, product.ID)
	return product, nil
}

// CreatePromotion создаёт активную акцию. Код купона хранится как есть, с учётом регистра.
func (s *Service) CreatePromotion(ctx context.Context, in PromotionInput) (domain.Promotion, error) {
	if err := in.validate(); err != nil {
		return domain.Promotion{}, err
	}
	now := s.now()
	promotion := domain.Promotion{
		ID:          s.newID(),
		Name:        strings.TrimSpace(in.Name),
		Type:        in.Type,
		Value:       in.Value,
		StartsAt:    in.StartsAt.UTC(),
		Eligibility: in.Eligibility,
		AutoApply:   in.AutoApply,
		Stackable:   in.Stackable,
		Active:      true,
		CouponCode:  strings.TrimSpace(in.CouponCode),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if promotion.Eligibility == "" {
		promotion.Eligibility = domain.EligibilityAll
	}
	if in.EndsAt != nil {
		promotion.EndsAt = in.EndsAt.UTC()
	}
	if in.MinOrderAmount != nil {
		promotion.MinOrderAmount = money.Valid(*in.MinOrderAmount)
	}
	if in.MaxUsage != nil {
		limit := *in.MaxUsage
		promotion.MaxUsage = &limit
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		return tx.Promotions().Create(ctx, promotion)
	})
	if errors.Is(err, domain.ErrAlreadyExists) && promotion.CouponCode != "" {
		return domain.Promotion{}, domain.NewValidationError("coupon_code", "is already in use")
	}
	if err != nil {
		return domain.Promotion{}, fmt.Errorf("create promotion: %w", err)
	}
	s.created(domain.EntityPromotion, promotion.ID)
	return promotion, nil
}

// CreatePurchaseOrder создаёт заказ поставщику; статус по умолчанию draft.
func (s *Service) CreatePurchaseOrder(ctx context.Context, in PurchaseOrderInput) (domain.PurchaseOrder, error) {
	if err := required("supplier_id", in.SupplierID); err != nil {
		return domain.PurchaseOrder{}, err
	}
	if err := in.validate(); err != nil {
		return domain.PurchaseOrder{}, err
	}
	now := s.now()
	supplierID := strings.TrimSpace(in.SupplierID)
	order := domain.PurchaseOrder{
		ID:         s.newID(),
		SupplierID: &supplierID,
		Status:     in.Status,
		Lines:      make([]domain.PurchaseOrderLine, 0, len(in.Lines)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if order.Status == "" {
		order.Status = domain.PurchaseOrderDraft
	}
	for _, line := range in.Lines {
		order.Lines = append(order.Lines, domain.PurchaseOrderLine{
			ID:              s.newID(),
			PurchaseOrderID: order.ID,
			ProductID:       strings.TrimSpace(line.ProductID),
			Quantity:        line.Quantity,
			UnitCost:        money.Round(line.UnitCost),
		})
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		if _, err := tx.Suppliers().Get(ctx, supplierID); err != nil {
			return referenceError("supplier_id", err)
		}
		for i, line := range order.Lines {
			if _, err := tx.Products().Get(ctx, line.ProductID); err != nil {
				return referenceError(fmt.Sprintf("lines[%d].product_id", i), err)
			}
		}
		return tx.PurchaseOrders().Create(ctx, order)
	})
	if err != nil {
		return domain.PurchaseOrder{}, fmt.Errorf("create purchase order: %w", err)
	}
	s.created(domain.EntityPurchaseOrder, order.ID)
	return order, nil
}

// CreateReturn оформляет возврат по завершённой продаже. Количество по каждой строке
// вместе с другими активными возвратами не может превышать проданное.
func (s *Service) CreateReturn(ctx context.Context, in ReturnInput) (domain.Return, error) {
	if err := in.validate(); err != nil {
		return domain.Return{}, err
	}
	now := s.now()
	ret := domain.Return{
		ID:        s.newID(),
		SaleID:    strings.TrimSpace(in.SaleID),
		Status:    domain.ReturnStatusRequested,
		Reason:    strings.TrimSpace(in.Reason),
		Items:     make([]domain.ReturnItem, 0, len(in.Items)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		sale, err := tx.Sales().Get(ctx, ret.SaleID)
		if err != nil {
			return referenceError("sale_id", err)
		}
		if sale.Status != domain.SaleStatusCompleted {
			return domain.NewValidationError("sale_id", fmt.Sprintf("only completed sales can be returned, sale is %s", sale.Status))
		}
		ret.CustomerID = sale.CustomerID

		existing, err := tx.Returns().ListBySale(ctx, sale.ID)
		if err != nil {
			return fmt.Errorf("list returns: %w", err)
		}
		returned := returnedQuantities(existing)

		lines := make(map[string]domain.SaleLine, len(sale.Lines))
		for _, line := range sale.Lines {
			lines[line.ID] = line
		}

		ret.Items = ret.Items[:0]
		for i, item := range in.Items {
			field := fmt.Sprintf("items[%d]", i)
			line, ok := lines[strings.TrimSpace(item.SaleLineID)]
			if !ok {
				return domain.NewValidationError(field+".sale_line_id", "does not belong to the sale")
			}
			returned[line.ID] += item.Quantity
			if returned[line.ID] > line.Quantity {
				return domain.NewValidationError(field+".quantity",
					fmt.Sprintf("exceeds sold quantity %d", line.Quantity))
			}
			ret.Items = append(ret.Items, domain.ReturnItem{
				ID:           s.newID(),
				ReturnID:     ret.ID,
				SaleLineID:   line.ID,
				ProductID:    line.ProductID,
				Quantity:     item.Quantity,
				RefundAmount: refundAmount(line, item.Quantity),
			})
		}
		return tx.Returns().Create(ctx, ret)
	})
	if err != nil {
		return domain.Return{}, fmt.Errorf("create return: %w", err)
	}
	s.created(domain.EntityReturn, ret.ID)
	return ret, nil
}

// CancelReturn отменяет возврат; отменённый возврат больше не блокирует отмену продажи.
func (s *Service) CancelReturn(ctx context.Context, id string) (domain.Return, error) {
	var ret domain.Return
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Returns().Get(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.Active() {
			return domain.NewValidationError("status", "return is already cancelled")
		}
		if err := tx.Returns().UpdateStatus(ctx, id, domain.ReturnStatusCancelled); err != nil {
			return err
		}
		ret, err = tx.Returns().Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Return{}, err
	}
	s.logger.WithField("return_id", id).Info("return cancelled")
	return ret, nil
}

// DeactivateProduct снимает товар с продажи.
func (s *Service) DeactivateProduct(ctx context.Context, id string) (domain.Product, error) {
	var product domain.Product
	err := s.uow.Do(ctx, func(ctx context.Context, tx domain.Tx) error {
		if err := tx.Products().SetActive(ctx, id, false); err != nil {
			return err
		}
		var err error
		product, err = tx.Products().Get(ctx, id)
		return err
	})
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithField("product_id", id).Info("product deactivated")
	return product, nil
}

func returnedQuantities(returns []domain.Return) map[string]int {
	result := make(map[string]int)
	for _, ret := range returns {
		if !ret.Status.Active() {
			continue
		}
		for _, item := range ret.Items {
			result[item.SaleLineID] += item.Quantity
		}
	}
	return result
}

// refundAmount — доля итога строки, пропорциональная возвращаемому количеству.
func refundAmount(line domain.SaleLine, qty int) decimal.Decimal {
	if line.Quantity == qty {
		return line.LineTotal
	}
	return money.Round(line.LineTotal.Mul(decimal.NewFromInt(int64(qty))).Div(decimal.NewFromInt(int64(line.Quantity))))
}

// referenceError превращает отсутствие связанной записи в ошибку валидации поля.
func referenceError(field string, err error) error {
	if domain.IsNotFound(err) {
		return domain.NewValidationError(field, err.Error())
	}
	return err
}
