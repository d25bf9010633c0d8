package domain

// EntityType называет тип записи в сообщениях об ошибках целостности и в событиях.
type EntityType string

const (
	EntityCustomer          EntityType = "customer"
	EntityProduct           EntityType = "product"
	EntityCategory          EntityType = "category"
	EntitySupplier          EntityType = "supplier"
	EntitySale              EntityType = "sale"
	EntitySaleLine          EntityType = "sale_line"
	EntityAppliedPromotion  EntityType = "applied_promotion"
	EntityReturn            EntityType = "return"
	EntityReturnItem        EntityType = "return_item"
	EntityPurchaseOrder     EntityType = "purchase_order"
	EntityPurchaseOrderLine EntityType = "purchase_order_line"
	EntityPromotion         EntityType = "promotion"
	EntityUnknown           EntityType = "unknown"
)

// ParseEntityType приводит строку к EntityType; ok=false для неизвестных типов.
func ParseEntityType(raw string) (EntityType, bool) {
	switch t := EntityType(raw); t {
	case EntityCustomer, EntityProduct, EntityCategory, EntitySupplier, EntitySale,
		EntityReturn, EntityPurchaseOrder, EntityPromotion:
		return t, true
	default:
		return "", false
	}
}
