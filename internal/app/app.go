package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"enteliwatch/internal/alerting"
	"enteliwatch/internal/config"
	"enteliwatch/internal/gateway"
	"enteliwatch/internal/poller"
	"enteliwatch/internal/scheduler"
	"enteliwatch/internal/server"
	"enteliwatch/internal/storage"
	"enteliwatch/internal/trend"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newGateway() *gateway.Client {
	return gateway.New(gateway.Options{
		Host:      a.Config.Gateway.Host,
		Site:      a.Config.Gateway.Site,
		Device:    a.Config.Gateway.Device,
		Username:  a.Config.Gateway.Username,
		Password:  a.Config.Gateway.Password,
		Timeout:   a.Config.Gateway.RequestTimeout,
		UserAgent: a.Config.Gateway.UserAgent,
	}, a.Logger)
}

func (a *App) newPipeline(client *gateway.Client) (*trend.Pipeline, error) {
	return trend.NewPipeline(client, trend.Options{
		LogBufferURL:     client.LogBufferURL(a.Config.Points.TrendLogInstance),
		ExpectedInterval: a.Config.Trend.ExpectedInterval,
		MaxGapSamples:    a.Config.Trend.MaxGapSamples,
		MaxPoints:        a.Config.Trend.MaxPoints,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Serve runs the HTTP server, plus the snapshot poller when enabled,
// until interrupted.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := a.newGateway()
	pipeline, err := a.newPipeline(client)
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; snapshot persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	srv := server.New(a.Config, pipeline, client, a.Logger)

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Start(a.Config.Server.ListenAddr)
	}()

	if a.Config.Scheduler.Enabled {
		sched := scheduler.New(scheduler.Options{
			Interval:     a.Config.Scheduler.Interval,
			AlignToStart: a.Config.Scheduler.AlignToBucket,
			StartupDelay: a.Config.Scheduler.StartupDelay,
		}, a.Logger)

		var snapshotStore storage.SnapshotStore
		if store != nil {
			snapshotStore = store
		}

		p := poller.New(a.Config, sched, client, snapshotStore, a.newNotifier(), a.Logger)
		go func() {
			errCh <- p.Run(ctx)
		}()
		a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("snapshot poller started")
	}

	a.Logger.Info().Msg("enteliwatch serving")

	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("component terminated with error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.Error().Err(shutdownErr).Msg("http shutdown failed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info().Msg("enteliwatch stopped")
	return nil
}

// TrendsOptions configure a one-shot trend query.
type TrendsOptions struct {
	Range string
}

// ExportOptions hold parameters for exporting a trend range.
type ExportOptions struct {
	Range   string
	PNGPath string
	CSVPath string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
