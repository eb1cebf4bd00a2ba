package models

// All lists every persisted model in dependency order. Used for sqlite
// AutoMigrate in local runs and tests; Postgres schemas come from goose.
func All() []any {
	return []any{
		&Order{},
		&LineItem{},
		&OrderAdjustment{},
		&Transaction{},
		&InventoryItem{},
		&Refund{},
		&LedgerEvent{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
