// Package models holds the gorm models shared by every internal package.
package models

// All returns every model in dependency order for auto-migration. SQL
// migrations remain the source of truth for production schemas; this list
// backs dev bootstrapping and in-memory test databases.
func All() []any {
	return []any{
		&Product{},
		&Cart{},
		&CartItem{},
		&PromoCode{},
		&Address{},
		&ShippingMethod{},
		&DeliveryAgent{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&Notification{},
	}
}
