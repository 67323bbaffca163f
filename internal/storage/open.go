package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"ttseval/internal/config"
	"ttseval/internal/items"
)

// Open selects the annotation backend named by cfg.StoreBackend. For
// postgres it waits for the database and applies migrations. The returned
// close func is always non-nil.
func Open(ctx context.Context, logger *slog.Logger, cfg config.Config, migrations fs.FS) (items.Store, func(), error) {
	noop := func() {}

	if cfg.StoreBackend != config.BackendPostgres {
		if err := os.MkdirAll(cfg.AnnotationDir, 0o755); err != nil {
			return nil, noop, fmt.Errorf("create annotation dir: %w", err)
		}
		return NewFileStore(cfg.AnnotationDir), noop, nil
	}

	db, err := sql.Open("pgx", cfg.DBDSN)
	if err != nil {
		return nil, noop, fmt.Errorf("open db: %w", err)
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("close db failed", slog.String("error", err.Error()))
		}
	}

	// ensure DB is reachable
	if err := pingDB(ctx, db); err != nil {
		closeDB()
		return nil, noop, err
	}

	if err := RunMigrations(ctx, logger, db, migrations); err != nil {
		closeDB()
		return nil, noop, fmt.Errorf("run migrations: %w", err)
	}

	return NewAnnotationRepository(db), closeDB, nil
}

func pingDB(ctx context.Context, db *sql.DB) error {
	const (
		maxAttempts = 10
		baseDelay   = time.Second
	)

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pingCtx)
		cancel()

		if err == nil {
			return nil
		}

		// allow caller to abort early
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping db: %w", err)
		case <-time.After(time.Duration(attempt) * baseDelay):
		}
	}

	return fmt.Errorf("ping db: %w", err)
}
