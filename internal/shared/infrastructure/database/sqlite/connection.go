// Package sqlite opens SQLite databases with the pragmas the rest of
// the application assumes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

// Open opens (creating if necessary) a SQLite database at path.
//
// Pragmas:
//   - journal_mode=WAL: Write-Ahead Logging for better concurrency
//   - foreign_keys=ON: Enforce foreign key constraints
//   - busy_timeout=5000: Wait 5s on lock instead of failing immediately
//   - synchronous=NORMAL: Good balance of safety and speed
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, shareddomain.NewStorageError("open sqlite", err)
	}

	// SQLite doesn't support multiple writers, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, shareddomain.NewStorageError("ping sqlite", err)
	}

	return db, nil
}

// OpenInMemory opens a fresh in-memory database. Used in tests.
func OpenInMemory(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, ":memory:")
}
