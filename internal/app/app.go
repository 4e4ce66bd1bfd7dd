// Package app wires the sync service together: configuration, logging,
// cloud container, asset storage, local mirror and the sync facade. It also
// runs the background duplicate-connection sweep and handles graceful
// shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nadavital/cauldron/internal/assets"
	"github.com/nadavital/cauldron/internal/cloudstore"
	"github.com/nadavital/cauldron/internal/config"
	"github.com/nadavital/cauldron/internal/localstore"
	"github.com/nadavital/cauldron/internal/logging"
	"github.com/nadavital/cauldron/internal/session"
	syncer "github.com/nadavital/cauldron/internal/sync"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	facade  *syncer.Facade
	tokens  *session.Manager
	session *session.Handle
	local   *localstore.Store
	closer  func() error
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault()

	var (
		container  cloudstore.Container
		assetStore assets.Store
		closer     func() error
	)

	if cfg.Environment == config.EnvDisabled {
		container = cloudstore.NewDisabledContainer()
		assetStore = assets.NewMemoryStore()
		closer = func() error { return nil }
	} else {
		pg, err := cloudstore.NewPostgresContainer(cfg.DatabaseDSN, cfg.AccountID)
		if err != nil {
			return nil, fmt.Errorf("cloud store init error: %w", err)
		}
		container = pg
		closer = pg.Close

		s3Store, err := assets.NewS3Store(ctx, assets.S3Config{
			Region:       cfg.S3Region,
			AccessKey:    cfg.S3RootUser,
			SecretKey:    cfg.S3RootPassword,
			Bucket:       cfg.S3Bucket,
			BaseEndpoint: cfg.S3BaseEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("asset store init error: %w", err)
		}
		assetStore = s3Store
	}

	local, err := localstore.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	tokens := session.NewManager([]byte(cfg.SessionSecret), cfg.SessionValidity)
	sess := session.NewHandle(restoreIdentity(ctx, cfg, tokens, local, logger))
	facade := syncer.NewFacade(container, assetStore, local, sess, logger)

	return &App{
		config:  cfg,
		logger:  logger,
		facade:  facade,
		tokens:  tokens,
		session: sess,
		local:   local,
		closer:  closer,
	}, nil
}

// restoreIdentity resolves the app user id from the configured device
// session token, falling back to the token persisted by a previous launch.
// No valid token means the session starts unauthenticated and is bound
// during bootstrap once the profile resolves.
func restoreIdentity(ctx context.Context, cfg *config.Config, tokens *session.Manager, local *localstore.Store, logger logging.Logger) string {
	token := cfg.SessionToken
	if token == "" {
		stored, err := local.GetSessionToken(ctx)
		if err != nil {
			logger.Warn(ctx, "failed to read stored session token", "err", err)
		}
		token = stored
	}
	if token == "" {
		return ""
	}
	userID, err := tokens.UserID(token)
	if err != nil {
		logger.Warn(ctx, "ignoring invalid session token", "err", err)
		return ""
	}
	return userID
}

// Facade exposes the sync API to callers embedding the app.
func (app *App) Facade() *syncer.Facade { return app.facade }

// Tokens exposes the session token manager.
func (app *App) Tokens() *session.Manager { return app.tokens }

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// bootstrap resolves the signed-in user's profile, binds the session to the
// app user id and registers subscriptions once the cloud account is
// reachable. The backend account id is the container's identity, not the
// connection keyspace; only the profile's own id is. Failures are logged;
// the app still runs local-only with whatever identity the session token
// restored.
func (app *App) bootstrap(ctx context.Context) {
	if !app.facade.Manager.IsAvailable(ctx) {
		app.logger.Info(ctx, "cloud account unavailable, running local-only",
			"status", app.facade.Manager.AccountStatus(ctx).String())
		return
	}

	user, err := app.facade.Users.FetchCurrentProfile(ctx)
	if err != nil {
		app.logger.Error(ctx, "failed to load current profile", "err", err)
		return
	}
	if user == nil {
		app.logger.Info(ctx, "no profile provisioned yet")
		return
	}
	app.session.Bind(user.ID)
	if err := app.local.UpsertUser(ctx, user); err != nil {
		app.logger.Warn(ctx, "failed to mirror current user locally", "err", err)
	}
	if token, err := app.tokens.Issue(user.ID); err != nil {
		app.logger.Warn(ctx, "failed to issue session token", "err", err)
	} else if err := app.local.SaveSessionToken(ctx, user.ID, token); err != nil {
		app.logger.Warn(ctx, "failed to persist session token", "err", err)
	}
	if err := app.facade.Connections.Subscribe(ctx, user.ID); err != nil {
		app.logger.Warn(ctx, "failed to register subscriptions", "err", err)
	}
}

// sweep reloads the signed-in user's connections, which also reconciles any
// duplicate edges left behind by concurrent requests. Edges are keyed by
// the app user id bound at bootstrap; an unbound session sweeps nothing.
func (app *App) sweep(ctx context.Context) (int, error) {
	userID := app.session.CurrentUserID()
	if userID == "" {
		return 0, nil
	}
	conns, err := app.facade.Connections.FetchConnections(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(conns), nil
}

func (app *App) runSweep(ctx context.Context) {
	ticker := time.NewTicker(app.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !app.facade.Manager.IsAvailable(ctx) {
				continue
			}
			n, err := app.sweep(ctx)
			if err != nil {
				app.logger.Warn(ctx, "connection sweep failed", "err", err)
				continue
			}
			app.logger.Debug(ctx, "connection sweep complete", "connections", n)
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.bootstrap(ctx)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runSweep(ctx)
	}()

	wg.Wait()

	if err := app.local.Close(); err != nil {
		app.logger.Error(ctx, "failed to close local store", "err", err)
	}
	if err := app.closer(); err != nil {
		app.logger.Error(ctx, "failed to close cloud store", "err", err)
	}
}
