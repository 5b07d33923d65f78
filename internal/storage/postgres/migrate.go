package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/site-audit/internal/logging"
	"github.com/JakeFAU/site-audit/internal/storage/postgres/migrations"
)

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Migrator applies the embedded schema migrations.
type Migrator struct {
	dsn    string
	logger *zap.Logger
}

// NewMigrator creates a Migrator for dsn.
func NewMigrator(dsn string, logger *zap.Logger) *Migrator {
	return &Migrator{dsn: dsn, logger: logging.OrNop(logger)}
}

// Migrate brings the schema up to the latest version.
func (m *Migrator) Migrate(ctx context.Context) error {
	if m.dsn == "" {
		return fmt.Errorf("db.dsn is required")
	}
	db, err := sql.Open("pgx", m.dsn)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			m.logger.Warn("failed to close migration connection", zap.Error(cerr))
		}
	}()
	return Up(ctx, db, m.logger)
}

// Up applies all pending migrations on db.
func Up(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(logging.NewPrintf(logger))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
