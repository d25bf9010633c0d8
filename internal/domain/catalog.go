package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Category — категория товаров.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Supplier — поставщик товаров.
type Supplier struct {
	ID        string
	Name      string
	Contact   string
	CreatedAt time.Time
}

// PurchaseOrderStatus — статус заказа поставщику.
type PurchaseOrderStatus string

const (
	PurchaseOrderDraft     PurchaseOrderStatus = "draft"
	PurchaseOrderOrdered   PurchaseOrderStatus = "ordered"
	PurchaseOrderReceived  PurchaseOrderStatus = "received"
	PurchaseOrderCancelled PurchaseOrderStatus = "cancelled"
)

// Open сообщает, что заказ ещё не закрыт (не получен и не отменён).
func (s PurchaseOrderStatus) Open() bool {
	return s == PurchaseOrderDraft || s == PurchaseOrderOrdered
}

// Valid проверяет, что статус поддерживается.
func (s PurchaseOrderStatus) Valid() bool {
	switch s {
	case PurchaseOrderDraft, PurchaseOrderOrdered, PurchaseOrderReceived, PurchaseOrderCancelled:
		return true
	default:
		return false
	}
}

// PurchaseOrderLine — позиция заказа поставщику.
type PurchaseOrderLine struct {
	ID              string
	PurchaseOrderID string
	ProductID       string
	Quantity        int
	UnitCost        decimal.Decimal
}

// PurchaseOrder — заказ поставщику. SupplierID обнуляется, когда поставщика удаляют
// при закрытом заказе.
type PurchaseOrder struct {
	ID         string
	SupplierID *string
	Status     PurchaseOrderStatus
	Lines      []PurchaseOrderLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone копирует заказ поставщику.
func (po PurchaseOrder) Clone() PurchaseOrder {
	dst := po
	dst.Lines = append([]PurchaseOrderLine(nil), po.Lines...)
	if po.SupplierID != nil {
		v := *po.SupplierID
		dst.SupplierID = &v
	}
	return dst
}
