package db

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate adds a row lock to the query. sqlite serializes writers on its
// own and rejects the clause, so the lock is skipped there.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// IsSQLite reports whether the connection is backed by the sqlite dialector.
func IsSQLite(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	return tx.Dialector.Name() == "sqlite"
}

// ForUpdateSkipLocked locks the selected rows and skips rows other workers
// already hold, so concurrent pollers split a batch instead of waiting.
func ForUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	if IsSQLite(tx) {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
