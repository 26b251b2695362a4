// Package server initializes and runs the main application server.
// It opens the database, applies migrations, configures the blob backend,
// and starts the HTTP API alongside the lifecycle scheduler, handling
// graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hushdrop/hushdrop/internal/logging"
	"github.com/hushdrop/hushdrop/internal/server/blob"
	"github.com/hushdrop/hushdrop/internal/server/capability"
	"github.com/hushdrop/hushdrop/internal/server/config"
	"github.com/hushdrop/hushdrop/internal/server/httpapi"
	"github.com/hushdrop/hushdrop/internal/server/lifecycle"
	"github.com/hushdrop/hushdrop/internal/server/repositories/repomanager"
	"github.com/hushdrop/hushdrop/internal/server/services"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	service   *services.RecordService
	scheduler *lifecycle.Scheduler
	httpAPI   *httpapi.Server
}

func NewApp(c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, rm, err := repomanager.Open(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	blobs, err := newBlobStore(c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	service := services.NewRecordService(db, rm, blobs, capability.NewVerifier(), logger, c)

	scheduler := lifecycle.NewScheduler(service, logger, lifecycle.Config{
		SweepInterval: c.SweepInterval,
		WipePeriod:    time.Duration(c.WipePeriodHours) * time.Hour,
		AlignMidnight: c.WipeAlignMidnight,
	})

	api := httpapi.NewServer(service, scheduler, logger, c)

	return &App{
		config:    c,
		logger:    logger,
		db:        db,
		service:   service,
		scheduler: scheduler,
		httpAPI:   api,
	}, nil
}

func newBlobStore(c *config.Config) (blob.Store, error) {
	switch c.BlobBackend {
	case "s3":
		return blob.NewS3Store(context.Background(), blob.S3Options{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case "fs", "":
		return blob.NewFileStore(c.UploadDir)
	default:
		return nil, fmt.Errorf("unknown blob backend: %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.scheduler.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpAPI.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "failed to close database", "error", err)
	}
}
