package db

import "gorm.io/gorm"

// IsPostgres reports whether tx talks to postgres. Row locking clauses and
// jsonb operators are only emitted for that dialect.
func IsPostgres(tx *gorm.DB) bool {
	return tx != nil && tx.Dialector != nil && tx.Dialector.Name() == "postgres"
}
