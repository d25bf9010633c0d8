package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// UnitOfWork выполняет набор операций атомарно.
type UnitOfWork interface {
	// Do выполняет fn в транзакции. Ошибка из fn откатывает все изменения.
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// View выполняет fn только на чтение, без блокировок на запись.
	View(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx даёт доступ к репозиториям в рамках одной единицы работы.
type Tx interface {
	Sales() SaleRepository
	Products() ProductRepository
	Customers() CustomerRepository
	Promotions() PromotionRepository
	Returns() ReturnRepository
	Categories() CategoryRepository
	Suppliers() SupplierRepository
	PurchaseOrders() PurchaseOrderRepository
	Timeline() TimelineRepository
	Outbox() OutboxWriter
}

// SaleRepository хранит продажи вместе с позициями и применёнными акциями.
type SaleRepository interface {
	// Create сохраняет новую продажу. ErrAlreadyExists, если ID занят.
	Create(ctx context.Context, sale Sale) error
	// Get возвращает продажу или ErrSaleNotFound.
	Get(ctx context.Context, id string) (Sale, error)
	// Save перезаписывает продажу с проверкой версии и увеличивает сохранённую версию.
	Save(ctx context.Context, sale Sale) error
	// Delete удаляет продажу с позициями, акциями и timeline.
	Delete(ctx context.Context, id string) error
	// ListByCustomer возвращает продажи клиента, новые первыми; limit<=0 — без ограничения.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Sale, error)
	// ListByWindow возвращает продажи, созданные в полуинтервале [from, to).
	ListByWindow(ctx context.Context, from, to time.Time) ([]Sale, error)
	// CountByCustomer считает продажи клиента в любом статусе.
	CountByCustomer(ctx context.Context, customerID string) (int, error)
	// CountLinesByProduct считает позиции продаж, ссылающиеся на товар.
	CountLinesByProduct(ctx context.Context, productID string) (int, error)
}

// ProductRepository хранит товары и складские остатки.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	Get(ctx context.Context, id string) (Product, error)
	// Lock читает товары с блокировкой строк до конца транзакции.
	Lock(ctx context.Context, ids []string) (map[string]Product, error)
	// AdjustStock атомарно меняет остаток на delta; ErrStockConflict, если остаток ушёл бы в минус.
	AdjustStock(ctx context.Context, id string, delta int) error
	// RecordSale добавляет проданное количество и выручку (отрицательные значения откатывают).
	RecordSale(ctx context.Context, id string, quantity int, revenue decimal.Decimal) error
	SetActive(ctx context.Context, id string, active bool) error
	// ClearCategory снимает категорию со всех её товаров и возвращает их число.
	ClearCategory(ctx context.Context, categoryID string) (int, error)
	// ClearSupplier снимает поставщика со всех его товаров и возвращает их число.
	ClearSupplier(ctx context.Context, supplierID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// CustomerRepository хранит клиентов и их накопительные показатели.
type CustomerRepository interface {
	Create(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	// GetMany возвращает найденных клиентов; отсутствующие ID пропускаются.
	GetMany(ctx context.Context, ids []string) (map[string]Customer, error)
	// AddLoyaltyPoints меняет баланс баллов; ErrLoyaltyPointsInsufficient, если он ушёл бы в минус.
	AddLoyaltyPoints(ctx context.Context, id string, delta int) error
	// AddPurchaseTotal меняет сумму и число покупок и выставляет дату последней покупки.
	AddPurchaseTotal(ctx context.Context, id string, amount decimal.Decimal, purchases int, lastPurchaseAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

// PromotionRepository хранит акции и счётчики их использования.
type PromotionRepository interface {
	Create(ctx context.Context, promotion Promotion) error
	Get(ctx context.Context, id string) (Promotion, error)
	// LockApplicable блокирует до конца транзакции акции, активные в момент at,
	// и акцию купона couponCode, в порядке id.
	LockApplicable(ctx context.Context, at time.Time, couponCode string) error
	// FindActiveByWindow возвращает акции, активные в момент at.
	FindActiveByWindow(ctx context.Context, at time.Time) ([]Promotion, error)
	// FindByCoupon ищет акцию по точному (регистрозависимому) коду купона.
	FindByCoupon(ctx context.Context, code string) (Promotion, error)
	// IncrementUsage атомарно увеличивает счётчик; ErrPromotionUsageExhausted при исчерпании лимита.
	IncrementUsage(ctx context.Context, id string) error
	// DecrementUsage уменьшает счётчик, не опуская его ниже нуля.
	DecrementUsage(ctx context.Context, id string) error
}

// ReturnRepository хранит возвраты и их позиции.
type ReturnRepository interface {
	Create(ctx context.Context, ret Return) error
	Get(ctx context.Context, id string) (Return, error)
	UpdateStatus(ctx context.Context, id string, status ReturnStatus) error
	ListBySale(ctx context.Context, saleID string) ([]Return, error)
	// CountBySale считает возвраты по продаже; activeOnly исключает отменённые.
	CountBySale(ctx context.Context, saleID string, activeOnly bool) (int, error)
	CountByCustomer(ctx context.Context, customerID string) (int, error)
	CountItemsByProduct(ctx context.Context, productID string) (int, error)
	// DeleteBySale удаляет возвраты продажи; возвращает число возвратов и позиций.
	DeleteBySale(ctx context.Context, saleID string) (int, int, error)
	// DeleteByCustomer удаляет возвраты клиента; возвращает число возвратов и позиций.
	DeleteByCustomer(ctx context.Context, customerID string) (int, int, error)
}

// CategoryRepository хранит категории.
type CategoryRepository interface {
	Create(ctx context.Context, category Category) error
	Get(ctx context.Context, id string) (Category, error)
	Delete(ctx context.Context, id string) error
}

// SupplierRepository хранит поставщиков.
type SupplierRepository interface {
	Create(ctx context.Context, supplier Supplier) error
	Get(ctx context.Context, id string) (Supplier, error)
	Delete(ctx context.Context, id string) error
}

// PurchaseOrderRepository хранит заказы поставщикам.
type PurchaseOrderRepository interface {
	Create(ctx context.Context, order PurchaseOrder) error
	Get(ctx context.Context, id string) (PurchaseOrder, error)
	ListBySupplier(ctx context.Context, supplierID string) ([]PurchaseOrder, error)
	// DetachSupplier обнуляет ссылку на поставщика у его заказов и возвращает их число.
	DetachSupplier(ctx context.Context, supplierID string) (int, error)
	// Delete удаляет заказ и возвращает число удалённых позиций.
	Delete(ctx context.Context, id string) (int, error)
	CountLinesByProduct(ctx context.Context, productID string) (int, error)
}

// TimelineRepository хранит события жизненного цикла продажи.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, saleID string) ([]TimelineEvent, error)
}

// OutboxWriter ставит события в transactional outbox в рамках транзакции.
type OutboxWriter interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет воркеру забирать и помечать события outbox.
type OutboxRepository interface {
	OutboxWriter
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит ключи идемпотентности POST /sales.
type IdempotencyRepository interface {
	// CreateProcessing занимает ключ; истёкший ключ занимается заново.
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	// Settle сохраняет итог запроса (done или failed) вместе с созданной продажей.
	Settle(ctx context.Context, key string, status IdempotencyStatus, resp IdempotencyResponse) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
