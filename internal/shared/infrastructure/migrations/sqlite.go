// Package migrations applies the embedded SQLite schema. Migration files
// are idempotent (CREATE ... IF NOT EXISTS), so running them on every
// startup is safe.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

// RunSQLiteMigrations applies every *.up.sql migration in lexical order.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	files, err := upMigrations()
	if err != nil {
		return err
	}

	for _, name := range files {
		script, err := sqliteFS.ReadFile("sqlite/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
	}
	return nil
}

func upMigrations() ([]string, error) {
	entries, err := sqliteFS.ReadDir("sqlite")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
