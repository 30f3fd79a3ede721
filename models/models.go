package models

// All lists every persisted model in dependency order for migration.
func All() []interface{} {
	return []interface{}{&User{}, &Pact{}, &CheckIn{}, &Kudo{}}
}
