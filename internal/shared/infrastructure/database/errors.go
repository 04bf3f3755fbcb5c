// Package database holds helpers shared by the SQLite and PostgreSQL
// repository implementations.
package database

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
)

// IsNoRows reports whether err means the query matched nothing, for either
// driver. Repositories translate this into their domain not-found error.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}
