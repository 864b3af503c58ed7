package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// jsonbValue converts a kv.Map to a JSONB parameter. Returns nil for an
// empty map so the column default applies.
func jsonbValue(m kv.Map) any {
	if len(m) == 0 {
		return nil
	}
	return m
}

// nullString converts an empty string to nil for nullable columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
