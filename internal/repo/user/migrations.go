package user

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/mkrupp/kbchat/internal/infra/logging"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

// migrate applies the embedded migrations for dialect. Already applied versions are
// skipped, which makes it safe to run on every start.
func migrate(ctx context.Context, db *sql.DB, dialect goose.Dialect, dir string, log logging.Logger) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return fmt.Errorf("sub migrations: %w", err)
	}

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("new migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	for _, result := range results {
		log.InfoContext(ctx, "migration applied",
			logging.Group("migration",
				"version", result.Source.Version,
				"path", result.Source.Path,
				"duration", result.Duration.String(),
			))
	}

	return nil
}
