package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

var errReadOnly = errors.New("memory store: write inside read-only view")

// state — полный снимок данных. Внутри транзакции работаем с копией,
// при успешном завершении копия подменяет текущее состояние.
type state struct {
	sales          map[string]domain.Sale
	products       map[string]domain.Product
	customers      map[string]domain.Customer
	promotions     map[string]domain.Promotion
	returns        map[string]domain.Return
	categories     map[string]domain.Category
	suppliers      map[string]domain.Supplier
	purchaseOrders map[string]domain.PurchaseOrder
	timeline       map[string][]domain.TimelineEvent
	outbox         map[string]outboxRecord
	outboxSeq      int64
}

func newState() *state {
	return &state{
		sales:          make(map[string]domain.Sale),
		products:       make(map[string]domain.Product),
		customers:      make(map[string]domain.Customer),
		promotions:     make(map[string]domain.Promotion),
		returns:        make(map[string]domain.Return),
		categories:     make(map[string]domain.Category),
		suppliers:      make(map[string]domain.Supplier),
		purchaseOrders: make(map[string]domain.PurchaseOrder),
		timeline:       make(map[string][]domain.TimelineEvent),
		outbox:         make(map[string]outboxRecord),
	}
}

// clone копирует карты. Значения в картах не мутируются на месте
// (репозитории всегда кладут новую копию), поэтому достаточно поверхностной копии.
func (s *state) clone() *state {
	return &state{
		sales:          copyMap(s.sales),
		products:       copyMap(s.products),
		customers:      copyMap(s.customers),
		promotions:     copyMap(s.promotions),
		returns:        copyMap(s.returns),
		categories:     copyMap(s.categories),
		suppliers:      copyMap(s.suppliers),
		purchaseOrders: copyMap(s.purchaseOrders),
		timeline:       copyMap(s.timeline),
		outbox:         copyMap(s.outbox),
		outboxSeq:      s.outboxSeq,
	}
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Store — in-memory хранилище для локальной разработки и тестов.
// Единицы работы сериализуются эксклюзивной блокировкой.
type Store struct {
	mu    sync.RWMutex
	state *state
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Do выполняет fn над копией состояния и публикует её только при успехе.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &memTx{st: work, writable: true}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// View выполняет fn над текущим состоянием без права записи.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(ctx, &memTx{st: s.state})
}

// Ping всегда успешен; нужен для health-проверки наравне с PostgreSQL.
func (s *Store) Ping(context.Context) error {
	return nil
}

type memTx struct {
	st       *state
	writable bool
}

func (t *memTx) checkWritable() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

func (t *memTx) Sales() domain.SaleRepository                   { return &saleRepository{tx: t} }
func (t *memTx) Products() domain.ProductRepository             { return &productRepository{tx: t} }
func (t *memTx) Customers() domain.CustomerRepository           { return &customerRepository{tx: t} }
func (t *memTx) Promotions() domain.PromotionRepository         { return &promotionRepository{tx: t} }
func (t *memTx) Returns() domain.ReturnRepository               { return &returnRepository{tx: t} }
func (t *memTx) Categories() domain.CategoryRepository          { return &categoryRepository{tx: t} }
func (t *memTx) Suppliers() domain.SupplierRepository           { return &supplierRepository{tx: t} }
func (t *memTx) PurchaseOrders() domain.PurchaseOrderRepository { return &purchaseOrderRepository{tx: t} }
func (t *memTx) Timeline() domain.TimelineRepository            { return &timelineRepository{tx: t} }
func (t *memTx) Outbox() domain.OutboxWriter                    { return &outboxWriter{tx: t} }

var (
	_ domain.UnitOfWork = (*Store)(nil)
	_ domain.Tx         = (*memTx)(nil)
)
