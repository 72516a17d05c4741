// Package server wires the salesdash components together: stores, the
// session manager, the data source, and the HTTP and gRPC front ends.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/salesdash/internal/cryptox"
	"github.com/dmitrijs2005/salesdash/internal/logging"
	"github.com/dmitrijs2005/salesdash/internal/server/audit"
	"github.com/dmitrijs2005/salesdash/internal/server/auth"
	"github.com/dmitrijs2005/salesdash/internal/server/config"
	"github.com/dmitrijs2005/salesdash/internal/server/dashboard"
	"github.com/dmitrijs2005/salesdash/internal/server/datasource"
	"github.com/dmitrijs2005/salesdash/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/salesdash/internal/server/services"
	"github.com/dmitrijs2005/salesdash/internal/server/sessions"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/salesdash/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	stores   *repomanager.Stores
	source   datasource.Source
	sessions *sessions.Manager
	users    *services.UserService
	http     *dashboard.Server
	grpc     *gs.GRPCServer
	sweeper  *sessions.Sweeper
	closers  []io.Closer
}

// NewApp builds every component from c. On error, everything opened so far
// is closed again.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, os.Stdout)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger}
	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (app *App) init(ctx context.Context) (err error) {
	c, logger := app.config, app.logger

	app.stores, err = repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, app.stores)

	hasher, err := cryptox.NewHasher(c.HashCostFactor)
	if err != nil {
		return err
	}

	sink, err := app.auditSink()
	if err != nil {
		return err
	}

	// Login and password change share one limiter, keyed by user name.
	limiter := auth.NewAttemptLimiter(c.MaxFailedAttempts, c.LockoutWindow, nil)
	app.sessions = sessions.NewManager(app.stores.Sessions, services.NewUserDirectory(app.stores.Users), hasher,
		sessions.WithLifetime(c.SessionLifetime),
		sessions.WithSlidingExpiration(c.SlidingExpiration),
		sessions.WithLimiter(limiter),
		sessions.WithAudit(sink),
		sessions.WithLogger(logger),
	)
	app.users = services.NewUserService(app.stores.Users, hasher, app.sessions, sink, logger,
		services.WithAttemptLimiter(limiter))

	if c.BootstrapUser != "" {
		if _, err = app.users.EnsureUser(ctx, c.BootstrapUser, c.BootstrapPassword); err != nil {
			return fmt.Errorf("bootstrap user: %w", err)
		}
	}

	app.source, err = datasource.New(ctx, c, logger)
	if err != nil {
		return fmt.Errorf("data source init error: %w", err)
	}
	app.closers = append(app.closers, app.source)

	sealer := auth.NewTokenSealer(c.SecretKey)
	app.http = dashboard.New(c.HTTPAddress, dashboard.Deps{
		Sessions:     app.sessions,
		Passwords:    app.users,
		Source:       app.source,
		Sealer:       sealer,
		LoginTimeout: c.LoginTimeout,
		Logger:       logger,
	})
	app.grpc = gs.NewGRPCServer(c.GRPCAddress, logger, app.sessions, sealer, c.LoginTimeout)
	app.sweeper = sessions.NewSweeper(app.sessions, c.SweepInterval, logger)

	return nil
}

func (app *App) auditSink() (audit.Sink, error) {
	sinks := audit.MultiSink{audit.NewLogSink(app.logger)}
	if app.config.AMQPURL == "" {
		return sinks, nil
	}

	amqpSink, err := audit.DialAMQPSink(app.config.AMQPURL, app.config.AMQPExchange, app.logger)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, amqpSink)
	return append(sinks, amqpSink), nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

// Run serves until ctx is cancelled, a signal arrives or a component fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "data_source", app.source.Name(), "persistent", app.stores.DB != nil)
	app.initSignalHandler(ctx, cancelFunc)

	if err := app.http.Listen(); err != nil {
		return fmt.Errorf("http listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.http.Run(gctx) })
	g.Go(func() error { return app.grpc.Run(gctx) })
	g.Go(func() error { return app.sweeper.Run(gctx) })

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

// Close releases the data source, the audit publisher and the stores.
func (app *App) Close() error {
	var first error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	app.closers = nil
	return first
}
