package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/autocal/internal/controllers/restserver"
	"github.com/chrissnell/autocal/internal/engine"
	"github.com/chrissnell/autocal/internal/log"
	"github.com/chrissnell/autocal/internal/managers"
	"github.com/chrissnell/autocal/pkg/config"
	"go.uber.org/zap"
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

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, cfg.Storage, a.logger.Named("storage"))
	if err != nil {
		return err
	}
	defer storageManager.Store.Close()

	eng, err := engine.New(cfg.Calibration, storageManager.Store, a.logger.Named("engine"))
	if err != nil {
		return err
	}

	// Per-device event queues
	dm := managers.NewDeviceManager(ctx, &wg, eng, managers.DefaultQueueSize, a.logger.Named("devices"))

	// Initialize the controller manager
	deps := restserver.Deps{
		Submitter: dm,
		Store:     storageManager.Store,
		Health:    storageManager.Health,
	}
	cm, err := managers.NewControllerManager(ctx, &wg, cfg.Controllers, deps, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	log.Infow("Application started successfully", "storage", storageManager.Backend, "controllers", len(cfg.Controllers))

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
