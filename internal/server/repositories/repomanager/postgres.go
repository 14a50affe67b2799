// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/migrations"
	"github.com/buffermesh/buffermesh/internal/server/repositories/buffers"
	"github.com/buffermesh/buffermesh/internal/server/repositories/clients"
	"github.com/buffermesh/buffermesh/internal/server/repositories/deviceaccesstokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devices"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devicetokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/messages"
	"github.com/buffermesh/buffermesh/internal/server/repositories/refreshtokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/schemes"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Clients(db dbx.DBTX) clients.Repository {
	return clients.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Devices(db dbx.DBTX) devices.Repository {
	return devices.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Buffers(db dbx.DBTX) buffers.Repository {
	return buffers.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Schemes(db dbx.DBTX) schemes.Repository {
	return schemes.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Messages(db dbx.DBTX) messages.Repository {
	return messages.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) DeviceTokens(db dbx.DBTX) devicetokens.Repository {
	return devicetokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) DeviceAccessTokens(db dbx.DBTX) deviceaccesstokens.Repository {
	return deviceaccesstokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
