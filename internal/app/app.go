package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/wlcloud/internal/entity"
	"github.com/chrissnell/wlcloud/internal/managers"
	"github.com/chrissnell/wlcloud/internal/weatherlink"
	"github.com/chrissnell/wlcloud/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the station and its controllers and blocks until shutdown.
// Configuration problems and credentials the vendor rejects are returned;
// transient setup failures are retried by the station itself.
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	// Providers migrate legacy entries on load; env overrides apply on top.
	if err := config.ApplyEnv(&cfg.Entry); err != nil {
		return err
	}

	catalog, err := managers.LoadCatalog(cfg.Entry)
	if err != nil {
		return err
	}
	a.logger.Infof("Using sensor catalog version %s", catalog.Version)

	wsm, err := managers.NewWeatherStationManager(ctx, &wg, cfg.Entry, catalog, a.logger)
	if err != nil {
		return err
	}

	builder := entity.NewBuilder(catalog, a.logger.Named("entity"))
	cm, err := managers.NewControllerManager(ctx, &wg, cfg, wsm.Source(), builder, wsm.MaxAge(), a.logger)
	if err != nil {
		return err
	}
	if cm.Len() == 0 {
		a.logger.Warn("No controllers configured; observations will only be polled")
	}

	// Controllers subscribe before the station's first poll so none of them
	// misses it.
	if err := cm.StartControllers(); err != nil {
		return err
	}

	stationErr := make(chan error, 1)
	go func() {
		stationErr <- wsm.StartWeatherStations()
	}()

	a.logger.Info("Application started successfully")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	var runErr error
	for done := false; !done; {
		select {
		case <-sigs:
			a.logger.Info("shutdown signal received, initiating graceful shutdown...")
			done = true
		case <-ctx.Done():
			a.logger.Info("context cancelled, shutting down...")
			done = true
		case err := <-stationErr:
			stationErr = nil
			if err == nil {
				// Setup finished; keep waiting for shutdown.
				continue
			}
			if !errors.Is(err, context.Canceled) {
				runErr = err
				if weatherlink.IsFatal(err) {
					a.logger.Errorf("WeatherLink rejected the configured station: %v", err)
				}
			}
			done = true
		}
	}

	cancel()

	// The station adds its polling goroutine to wg, so it must be out of
	// setup before we wait.
	if stationErr != nil {
		<-stationErr
	}

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return runErr
}
