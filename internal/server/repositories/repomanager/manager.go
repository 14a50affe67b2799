package repomanager

import (
	"context"
	"database/sql"

	"github.com/buffermesh/buffermesh/internal/dbx"
	"github.com/buffermesh/buffermesh/internal/server/repositories/buffers"
	"github.com/buffermesh/buffermesh/internal/server/repositories/clients"
	"github.com/buffermesh/buffermesh/internal/server/repositories/deviceaccesstokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devices"
	"github.com/buffermesh/buffermesh/internal/server/repositories/devicetokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/messages"
	"github.com/buffermesh/buffermesh/internal/server/repositories/refreshtokens"
	"github.com/buffermesh/buffermesh/internal/server/repositories/schemes"
)

// RepositoryManager vends per-entity repositories bound to a DBTX, so a
// service can run several repositories inside one transaction by handing
// them the same *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Clients(db dbx.DBTX) clients.Repository
	Devices(db dbx.DBTX) devices.Repository
	Buffers(db dbx.DBTX) buffers.Repository
	Schemes(db dbx.DBTX) schemes.Repository
	Messages(db dbx.DBTX) messages.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	DeviceTokens(db dbx.DBTX) devicetokens.Repository
	DeviceAccessTokens(db dbx.DBTX) deviceaccesstokens.Repository
}
