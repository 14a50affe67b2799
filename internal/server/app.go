// Package server initializes and runs a buffermesh server process. It
// opens the database, runs migrations, connects the bus transport, starts
// responders for the service roles this process hosts, and serves the
// HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/bwmarrin/snowflake"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/buffermesh/buffermesh/internal/bus"
	"github.com/buffermesh/buffermesh/internal/logging"
	"github.com/buffermesh/buffermesh/internal/server/auth"
	"github.com/buffermesh/buffermesh/internal/server/config"
	"github.com/buffermesh/buffermesh/internal/server/httpapi"
	"github.com/buffermesh/buffermesh/internal/server/remote"
	"github.com/buffermesh/buffermesh/internal/server/repositories/repomanager"
	"github.com/buffermesh/buffermesh/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db        *sql.DB
	transport bus.Transport
	router    *bus.Router

	httpServer *httpapi.Server
	responders []*bus.Responder
	closers    []func()
}

// NewApp wires the full process for the roles named in cfg.Services.
// Capabilities whose owning role runs in this process are bound directly;
// the rest go through the bus.
func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := &App{config: cfg, logger: logger}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	if cfg.RedisAddr != "" {
		redisTransport := bus.NewRedisTransport(cfg.RedisAddr, logger)
		if err := redisTransport.Ping(context.Background()); err != nil {
			return nil, fmt.Errorf("bus init error: %w", err)
		}
		app.transport = redisTransport
		app.closers = append(app.closers, func() { _ = redisTransport.Close() })
	} else {
		app.transport = bus.NewMemoryTransport()
	}

	roles := cfg.ServiceList()
	hosts := func(role string) bool { return slices.Contains(roles, role) }

	router, err := bus.NewRouter(app.transport, cfg.BusTopicPrefix, "server", logger)
	if err != nil {
		return nil, fmt.Errorf("bus router error: %w", err)
	}
	app.router = router
	caller := remote.NewCaller(router, cfg.BusTopicPrefix, cfg.CallTimeout)

	authority := auth.NewAuthority(db, manager, cfg)

	// Local facades for hosted roles.
	var (
		authSvc   *services.AuthService
		deviceSvc *services.DeviceService
		bufferSvc *services.BufferService
		schemeSvc *services.SchemeService
	)
	if hosts("auth") {
		authSvc = services.NewAuthService(db, manager, authority)
	}
	if hosts("device") {
		deviceSvc = services.NewDeviceService(db, manager, authority)
	}
	if hosts("buffer") {
		bufferSvc = services.NewBufferService(db, manager)
	}

	// Capability wiring: local when the owning role is hosted, bus-backed
	// otherwise.
	var verifier services.TokenVerifier
	if authSvc != nil {
		verifier = authSvc
	} else {
		verifier = remote.NewTokenVerifier(caller)
	}

	var buffers services.BufferDirectory
	if bufferSvc != nil {
		buffers = bufferSvc
	} else {
		buffers = remote.NewBufferDirectory(caller)
	}

	var devices services.DeviceDirectory
	if deviceSvc != nil {
		devices = deviceSvc
	} else {
		devices = remote.NewDeviceDirectory(caller)
	}

	if hosts("scheme") {
		schemeSvc = services.NewSchemeService(db, manager, buffers)
	}
	var schemes services.SchemeDirectory
	if schemeSvc != nil {
		schemes = schemeSvc
	} else {
		schemes = remote.NewSchemeDirectory(caller)
	}

	var messageSvc *services.MessageService
	if hosts("message") {
		node, err := snowflake.NewNode(nodeID())
		if err != nil {
			return nil, fmt.Errorf("snowflake init error: %w", err)
		}
		messageSvc = services.NewMessageService(db, manager, cfg, schemes, buffers, devices, node)
	}

	// Responders answer bus commands for hosted roles.
	addResponder := func(role string, register func(*bus.Responder)) {
		responder := bus.NewResponder(app.transport, bus.CommandTopic(cfg.BusTopicPrefix, role), role, logger)
		register(responder)
		app.responders = append(app.responders, responder)
	}
	if authSvc != nil {
		addResponder("auth", func(r *bus.Responder) { remote.RegisterAuthHandlers(r, authSvc) })
	}
	if deviceSvc != nil {
		addResponder("device", func(r *bus.Responder) { remote.RegisterDeviceHandlers(r, deviceSvc) })
	}
	if bufferSvc != nil {
		addResponder("buffer", func(r *bus.Responder) { remote.RegisterBufferHandlers(r, bufferSvc) })
	}
	if schemeSvc != nil {
		addResponder("scheme", func(r *bus.Responder) { remote.RegisterSchemeHandlers(r, schemeSvc) })
	}
	if messageSvc != nil {
		addResponder("message", func(r *bus.Responder) {})
	}

	var opts []httpapi.Option
	if authSvc != nil {
		opts = append(opts, httpapi.WithAuth(authSvc))
	}
	if deviceSvc != nil {
		opts = append(opts, httpapi.WithDevices(deviceSvc), httpapi.WithDeviceAuth(authority))
	}
	if bufferSvc != nil {
		opts = append(opts, httpapi.WithBuffers(bufferSvc))
	}
	if schemeSvc != nil {
		opts = append(opts, httpapi.WithSchemes(schemeSvc))
	}
	if messageSvc != nil {
		opts = append(opts, httpapi.WithMessages(messageSvc))
	}
	opts = append(opts, httpapi.WithHealth(caller, remoteRoles(roles)))

	app.httpServer = httpapi.NewServer(cfg.EndpointAddrHTTP, verifier, logger, opts...)

	return app, nil
}

// remoteRoles lists the roles this process depends on over the bus: every
// known role it does not host itself. These are the ones the health
// endpoint has to probe; hosted roles answer in-process.
func remoteRoles(hosted []string) []string {
	var roles []string
	for _, role := range config.KnownServices {
		if !slices.Contains(hosted, role) {
			roles = append(roles, role)
		}
	}
	return roles
}

// nodeID derives a snowflake worker ID from the hostname so two message
// processes on different hosts do not mint colliding UIDs.
func nodeID() int64 {
	host, err := os.Hostname()
	if err != nil {
		return 1
	}
	var sum int64
	for _, b := range []byte(host) {
		sum = (sum*31 + int64(b)) % 1024
	}
	return sum
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives, then shuts everything
// down in reverse start order.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server", "roles", app.config.Services)

	app.initSignalHandler(cancelFunc)

	for _, responder := range app.responders {
		if err := responder.Start(); err != nil {
			app.logger.Error(ctx, "responder start failed", "error", err)
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "http server error", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	for _, responder := range app.responders {
		responder.Close()
	}
	app.router.Close()
	for _, closer := range app.closers {
		closer()
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "server stopped")
}
