package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation: базовая ошибка валидации входных данных; конкретика в ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInsufficientStock означает, что на складе не хватает товара; конкретика в InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStateTransition: запрошенный переход статуса продажи недопустим.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrDataIntegrityViolation означает, что операция нарушила бы ссылочную целостность.
	ErrDataIntegrityViolation = errors.New("data integrity violation")

	// ErrSaleNotFound возвращается, если продажа не найдена.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrProductNotFound возвращается, если товар не найден.
	ErrProductNotFound = errors.New("product not found")
	// ErrCustomerNotFound возвращается, если клиент не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrPromotionNotFound возвращается, если акция не найдена.
	ErrPromotionNotFound = errors.New("promotion not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrSupplierNotFound возвращается, если поставщик не найден.
	ErrSupplierNotFound = errors.New("supplier not found")
	// ErrPurchaseOrderNotFound возвращается, если заказ поставщику не найден.
	ErrPurchaseOrderNotFound = errors.New("purchase order not found")
	// ErrReturnNotFound возвращается, если возврат не найден.
	ErrReturnNotFound = errors.New("return not found")

	// ErrAlreadyExists: запись с таким идентификатором уже есть.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStockConflict: атомарное списание остатка не прошло проверку stock + delta >= 0.
	ErrStockConflict = errors.New("stock change would make quantity negative")
	// ErrPromotionUsageExhausted: лимит использований акции исчерпан.
	ErrPromotionUsageExhausted = errors.New("promotion usage limit exhausted")
	// ErrLoyaltyPointsInsufficient: у клиента меньше баллов, чем списывается.
	ErrLoyaltyPointsInsufficient = errors.New("insufficient loyalty points")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrPublisherUnavailable: брокер временно недоступен, события остаются в outbox.
	ErrPublisherUnavailable = errors.New("event publisher unavailable")

	// ErrIdempotencyKeyRequired: пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired: пустой hash запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyNotFound: ключ не найден.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyAlreadyExists: ключ уже использован тем же запросом.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch: ключ использован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
)

// ValidationError описывает некорректное поле запроса.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is позволяет сопоставлять ошибку с ErrValidation через errors.Is.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientStockError сообщает, какого товара не хватило и сколько было доступно.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Is позволяет сопоставлять ошибку с ErrInsufficientStock.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InvalidStateTransitionError описывает отклонённый переход статуса продажи.
type InvalidStateTransitionError struct {
	SaleID    string
	Current   SaleStatus
	Attempted SaleStatus
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("sale %s: cannot move from %s to %s", e.SaleID, e.Current, e.Attempted)
}

// Is позволяет сопоставлять ошибку с ErrInvalidStateTransition.
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}

// LoyaltyPointsError сообщает, что баланс клиента не покрывает списание баллов.
type LoyaltyPointsError struct {
	CustomerID string
	Requested  int
	Available  int
}

func (e *LoyaltyPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points for customer %s: requested %d, available %d",
		e.CustomerID, e.Requested, e.Available)
}

// Is позволяет сопоставлять ошибку с ErrLoyaltyPointsInsufficient.
func (e *LoyaltyPointsError) Is(target error) bool {
	return target == ErrLoyaltyPointsInsufficient
}

// Dependent — количество зависимых записей одного типа.
type Dependent struct {
	Type  EntityType `json:"type"`
	Count int        `json:"count"`
}

// DataIntegrityViolation описывает отказ в удалении/изменении из-за зависимых записей.
type DataIntegrityViolation struct {
	ResourceType EntityType
	ResourceID   string
	Dependents   []Dependent
	Suggestion   string
}

func (e *DataIntegrityViolation) Error() string {
	parts := make([]string, 0, len(e.Dependents))
	for _, dep := range e.Dependents {
		parts = append(parts, fmt.Sprintf("%d %s", dep.Count, dep.Type))
	}
	msg := fmt.Sprintf("%s %s is referenced by %s", e.ResourceType, e.ResourceID, strings.Join(parts, ", "))
	if e.Suggestion != "" {
		msg += ": " + e.Suggestion
	}
	return msg
}

// Is позволяет сопоставлять ошибку с ErrDataIntegrityViolation.
func (e *DataIntegrityViolation) Is(target error) bool {
	return target == ErrDataIntegrityViolation
}

// DependentCount возвращает количество зависимостей указанного типа.
func (e *DataIntegrityViolation) DependentCount(t EntityType) int {
	for _, dep := range e.Dependents {
		if dep.Type == t {
			return dep.Count
		}
	}
	return 0
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsIdempotencyConflict сообщает, что ключ уже занят (тем же или другим запросом).
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsNotFound объединяет все not-found ошибки домена.
func IsNotFound(err error) bool {
	for _, target := range []error{
		ErrSaleNotFound, ErrProductNotFound, ErrCustomerNotFound, ErrPromotionNotFound,
		ErrCategoryNotFound, ErrSupplierNotFound, ErrPurchaseOrderNotFound, ErrReturnNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
