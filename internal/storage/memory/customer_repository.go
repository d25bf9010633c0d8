package memory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

type customerRepository struct {
	tx *memTx
}

func (r *customerRepository) Create(_ context.Context, customer domain.Customer) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, exists := r.tx.st.customers[customer.ID]; exists {
		return domain.ErrAlreadyExists
	}
	r.tx.st.customers[customer.ID] = customer.Clone()
	return nil
}

func (r *customerRepository) Get(_ context.Context, id string) (domain.Customer, error) {
	customer, ok := r.tx.st.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer.Clone(), nil
}

func (r *customerRepository) GetMany(_ context.Context, ids []string) (map[string]domain.Customer, error) {
	result := make(map[string]domain.Customer, len(ids))
	for _, id := range ids {
		if customer, ok := r.tx.st.customers[id]; ok {
			result[id] = customer.Clone()
		}
	}
	return result, nil
}

func (r *customerRepository) AddLoyaltyPoints(_ context.Context, id string, delta int) error {
	return r.update(id, func(c *domain.Customer) error {
		if c.LoyaltyPoints+delta < 0 {
			return domain.ErrLoyaltyPointsInsufficient
		}
		c.LoyaltyPoints += delta
		return nil
	})
}

func (r *customerRepository) AddPurchaseTotal(_ context.Context, id string, amount decimal.Decimal, purchases int, lastPurchaseAt *time.Time) error {
	return r.update(id, func(c *domain.Customer) error {
		c.TotalPurchases = c.TotalPurchases.Add(amount)
		c.PurchaseCount += purchases
		if lastPurchaseAt != nil {
			t := *lastPurchaseAt
			c.LastPurchaseAt = &t
		} else {
			c.LastPurchaseAt = nil
		}
		return nil
	})
}

func (r *customerRepository) Delete(_ context.Context, id string) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	if _, ok := r.tx.st.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	delete(r.tx.st.customers, id)
	return nil
}

func (r *customerRepository) update(id string, mutate func(c *domain.Customer) error) error {
	if err := r.tx.checkWritable(); err != nil {
		return err
	}
	customer, ok := r.tx.st.customers[id]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	updated := customer.Clone()
	if err := mutate(&updated); err != nil {
		return err
	}
	updated.UpdatedAt = time.Now().UTC()
	r.tx.st.customers[id] = updated
	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
