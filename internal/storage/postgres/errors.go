package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/salescore/internal/domain"
)

const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isRetryable(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	default:
		return false
	}
}

// translate переводит нарушения ограничений БД в ошибки домена.
// Нарушение внешнего ключа означает, что на запись ещё ссылаются.
func translate(err error, entity domain.EntityType, id string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		return domain.ErrAlreadyExists
	case codeForeignKeyViolation:
		return &domain.DataIntegrityViolation{
			ResourceType: entity,
			ResourceID:   id,
			Dependents:   []domain.Dependent{{Type: tableEntity(pgErr.TableName), Count: 1}},
			Suggestion:   "remove or reassign dependent records first (" + pgErr.ConstraintName + ")",
		}
	case codeCheckViolation:
		return domain.NewValidationError(pgErr.ConstraintName, pgErr.Message)
	default:
		return err
	}
}

func tableEntity(table string) domain.EntityType {
	switch table {
	case "sales":
		return domain.EntitySale
	case "sale_lines":
		return domain.EntitySaleLine
	case "applied_promotions":
		return domain.EntityAppliedPromotion
	case "returns":
		return domain.EntityReturn
	case "return_items":
		return domain.EntityReturnItem
	case "purchase_orders":
		return domain.EntityPurchaseOrder
	case "purchase_order_lines":
		return domain.EntityPurchaseOrderLine
	case "products":
		return domain.EntityProduct
	case "customers":
		return domain.EntityCustomer
	default:
		return domain.EntityUnknown
	}
}
