package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"credbroker/internal/config"
	"credbroker/internal/secrets"
	"credbroker/pkg/logging"
)

// Application represents the main application structure that bootstraps and
// runs credbroker.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads configuration and secrets, then initializes every
// service. It returns an error if any of those steps fails.
func NewApplication(ctx context.Context, cfg *Config) (*Application, error) {
	appLogLevel := logging.LevelInfo
	if cfg.Debug {
		appLogLevel = logging.LevelDebug
	}

	var logOutput io.Writer = os.Stderr
	if cfg.Silent {
		logOutput = io.Discard
	}
	logging.InitForCLI(appLogLevel, logOutput)

	if cfg.Broker == nil {
		brokerCfg, err := config.Load(cfg.ConfigPath)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load configuration from %s", cfg.ConfigPath)
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Broker = &brokerCfg
	}

	if err := cfg.Broker.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if !cfg.Debug {
		appLogLevel = logging.ParseLevel(cfg.Broker.Logging.Level)
	}
	logging.Init(appLogLevel, logging.Format(strings.ToLower(cfg.Broker.Logging.Format)), logOutput)

	if cfg.Secrets == nil {
		material, err := secrets.Load(ctx, cfg.Broker.Secrets)
		if err != nil {
			logging.Error("Bootstrap", err, "Failed to load secret material from %s source", cfg.Broker.Secrets.Source)
			return nil, fmt.Errorf("failed to load secrets: %w", err)
		}
		cfg.Secrets = material
	}

	services, err := InitializeServices(ctx, cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services exposes the initialized components.
func (a *Application) Services() *Services {
	return a.services
}

// Run serves HTTP until ctx is cancelled. Token writes started by in-flight
// requests are awaited before it returns.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.services.Server.Run(gctx)
	})

	if a.services.NonceLedger != nil {
		g.Go(func() error {
			a.purgeNonces(gctx, a.config.Broker.State.Validity)
			return nil
		})
	}

	err := g.Wait()
	a.services.Google.Wait()
	logging.Info("Bootstrap", "Shutdown complete")
	return err
}

// Close releases the credential store.
func (a *Application) Close() error {
	return a.services.DB.Close()
}

// purgeNonces drops consumed nonces once their state can no longer verify.
func (a *Application) purgeNonces(ctx context.Context, validity time.Duration) {
	ticker := time.NewTicker(validity)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.services.NonceLedger.Purge(ctx, time.Now().Add(-validity))
			if err != nil {
				logging.Warn("Bootstrap", "Failed to purge state nonces: %v", err)
				continue
			}
			if n > 0 {
				logging.Debug("Bootstrap", "Purged %d expired state nonces", n)
			}
		}
	}
}
