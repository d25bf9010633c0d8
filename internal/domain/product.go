package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product — товар каталога со складским остатком.
type Product struct {
	ID         string
	SKU        string
	Name       string
	CategoryID *string
	SupplierID *string
	Price      decimal.Decimal
	// TaxRate в процентах; отсутствие значения означает ставку 0.
	TaxRate       decimal.NullDecimal
	StockQuantity int
	Active        bool
	TotalSold     int
	TotalRevenue  decimal.Decimal
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone копирует товар вместе со ссылками на категорию и поставщика.
func (p Product) Clone() Product {
	dst := p
	if p.CategoryID != nil {
		v := *p.CategoryID
		dst.CategoryID = &v
	}
	if p.SupplierID != nil {
		v := *p.SupplierID
		dst.SupplierID = &v
	}
	return dst
}
