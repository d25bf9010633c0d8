package domain

// Типы событий transactional outbox и timeline.
const (
	EventSaleCreated   = "sale.created"
	EventSaleUpdated   = "sale.updated"
	EventSaleCompleted = "sale.completed"
	EventSaleCancelled = "sale.cancelled"
	EventEntityDeleted = "entity.deleted"
)

// AggregateSale — тип агрегата продажи в outbox.
const AggregateSale = "sale"
