package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
)

// RunMigrations executes SQL migrations from migrations in lexical order.
// Every statement must be idempotent; there is no applied-version table.
func RunMigrations(ctx context.Context, logger *slog.Logger, db *sql.DB, migrations fs.FS) error {
	files, err := fs.Glob(migrations, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		stmt, err := fs.ReadFile(migrations, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if len(stmt) == 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
		logger.Debug("migration applied", slog.String("file", file))
	}
	return nil
}
