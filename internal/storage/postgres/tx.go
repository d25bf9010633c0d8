package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

// querier — общее подмножество *sql.DB и *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type pgTx struct {
	q querier
}

func (t *pgTx) Sales() domain.SaleRepository           { return &saleRepository{q: t.q} }
func (t *pgTx) Products() domain.ProductRepository     { return &productRepository{q: t.q} }
func (t *pgTx) Customers() domain.CustomerRepository   { return &customerRepository{q: t.q} }
func (t *pgTx) Promotions() domain.PromotionRepository { return &promotionRepository{q: t.q} }
func (t *pgTx) Returns() domain.ReturnRepository       { return &returnRepository{q: t.q} }
func (t *pgTx) Categories() domain.CategoryRepository  { return &categoryRepository{q: t.q} }
func (t *pgTx) Suppliers() domain.SupplierRepository   { return &supplierRepository{q: t.q} }
func (t *pgTx) PurchaseOrders() domain.PurchaseOrderRepository {
	return &purchaseOrderRepository{q: t.q}
}
func (t *pgTx) Timeline() domain.TimelineRepository { return &timelineRepository{q: t.q} }
func (t *pgTx) Outbox() domain.OutboxWriter         { return &outboxRepository{q: t.q} }

// nullString хранит пустую строку как NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

var _ domain.Tx = (*pgTx)(nil)
