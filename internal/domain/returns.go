package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnStatus — статус возврата.
type ReturnStatus string

const (
	ReturnStatusRequested ReturnStatus = "requested"
	ReturnStatusApproved  ReturnStatus = "approved"
	ReturnStatusProcessed ReturnStatus = "processed"
	ReturnStatusCancelled ReturnStatus = "cancelled"
)

// Active сообщает, что возврат ещё учитывается (не отменён).
func (s ReturnStatus) Active() bool {
	return s != ReturnStatusCancelled
}

// ReturnItem — позиция возврата.
type ReturnItem struct {
	ID           string
	ReturnID     string
	SaleLineID   string
	ProductID    string
	Quantity     int
	RefundAmount decimal.Decimal
}

// Return — возврат по продаже.
type Return struct {
	ID         string
	SaleID     string
	CustomerID string
	Status     ReturnStatus
	Reason     string
	Items      []ReturnItem
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone копирует возврат.
func (r Return) Clone() Return {
	dst := r
	dst.Items = append([]ReturnItem(nil), r.Items...)
	return dst
}
