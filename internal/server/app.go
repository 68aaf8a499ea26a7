// Package server wires configuration, storage backends and the HTTP adapter
// into a runnable auth server and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/docauth/internal/logging"
	"github.com/dmitrijs2005/docauth/internal/server/auth"
	"github.com/dmitrijs2005/docauth/internal/server/config"
	"github.com/dmitrijs2005/docauth/internal/server/credentials"
	"github.com/dmitrijs2005/docauth/internal/server/httpapi"
	"github.com/dmitrijs2005/docauth/internal/server/lockout"
	"github.com/dmitrijs2005/docauth/internal/server/metrics"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/identities"
	"github.com/dmitrijs2005/docauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docauth/internal/server/services"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	auth    *services.AuthService
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))
	app := &App{config: c, logger: logger, metrics: metrics.New("docauth")}

	if c.SecretKey == "secretKey" {
		logger.Warn(ctx, "using the development secret key; set DOCAUTH_SECRET_KEY")
	}

	repo, tx, err := app.initIdentityStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	store, err := app.initLockoutStore(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	tracker := lockout.NewTracker(store, lockout.WithThreshold(c.LockoutThreshold), lockout.WithWindow(c.LockoutWindow))
	tokens := auth.NewTokenService([]byte(c.SecretKey), c.AccessTokenValidityDuration, c.RefreshTokenValidityDuration)
	hasher := credentials.NewHasher(c.BcryptCost)

	app.auth = services.NewAuthService(repo, hasher, tokens, tracker, logger, app.metrics, services.WithTransactor(tx))
	return app, nil
}

func (app *App) initIdentityStore(ctx context.Context) (identities.Repository, repomanager.Transactor, error) {
	if app.config.DatabaseDSN == "" {
		app.logger.Warn(ctx, "no database DSN configured, identities are kept in memory")
		repo := identities.NewMemoryRepository()
		return repo, repomanager.DirectTransactor{Repo: repo}, nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := db.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("migration error: %w", err)
	}
	return m.Identities(db), repomanager.NewSQLTransactor(db, m), nil
}

func (app *App) initLockoutStore(ctx context.Context) (lockout.Store, error) {
	switch app.config.LockoutBackend {
	case config.LockoutBackendMemory, "":
		return lockout.NewMemoryStore(), nil
	case config.LockoutBackendRedis:
		s, err := lockout.NewRedisStoreFromURL(ctx, app.config.RedisURL, app.config.LockoutWindow)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown lockout backend %q", app.config.LockoutBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.EndpointAddrHTTP, &httpapi.Deps{
		Auth:    app.auth,
		Metrics: app.metrics,
		Logger:  app.logger,
	})
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or the process receives a stop signal.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(ctx, "close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}

// Close releases the database and redis connections.
func (app *App) Close() error {
	var errs []error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	app.closers = nil
	return errors.Join(errs...)
}
