package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique violation on Postgres or
// sqlite. With names, the violated constraint must match one of them: the
// Postgres constraint name, or the "table.column" sqlite reports.
func IsUniqueViolation(err error, names ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return matchesAny(pgErr.ConstraintName+" "+pgErr.Message, names)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return matchesAny(msg, names)
}

func matchesAny(text string, names []string) bool {
	matched, constrained := false, false
	for _, name := range names {
		if name == "" {
			continue
		}
		constrained = true
		if strings.Contains(text, name) {
			matched = true
		}
	}
	return matched || !constrained
}
