// Package server wires the dirlist services together and runs them: the
// gRPC endpoint, the Prometheus endpoint and the finished-job janitor.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/dirlist/internal/logging"
	"github.com/dmitrijs2005/dirlist/internal/server/config"
	"github.com/dmitrijs2005/dirlist/internal/server/coordination"
	"github.com/dmitrijs2005/dirlist/internal/server/jobs"
	"github.com/dmitrijs2005/dirlist/internal/server/metrics"
	"github.com/dmitrijs2005/dirlist/internal/server/services"
	"github.com/dmitrijs2005/dirlist/internal/server/storage"
	"github.com/dmitrijs2005/dirlist/internal/workerpool"

	gs "github.com/dmitrijs2005/dirlist/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	backend    coordination.Backend
	pool       *workerpool.Pool
	metrics    *metrics.Metrics
	extraction *services.ExtractionService
	zips       *services.DirectoryZipService
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, c.LogLevel, c.LogFormat)

	if err := os.MkdirAll(c.CacheDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("cache directory: %w", err)
	}

	backend, err := coordination.New(c.Coordination, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("coordination init error: %w", err)
	}

	m := metrics.New()
	pool := workerpool.New(c.WorkerPoolSize, workerpool.WithPanicHandler(func(r any) {
		logger.Error(context.Background(), "worker panicked", "panic", r)
	}))

	var mirror services.ArtifactMirror
	if c.MirrorEnabled() {
		mirror = storage.NewS3Mirror(c)
	}

	return &App{
		config:     c,
		logger:     logger,
		backend:    backend,
		pool:       pool,
		metrics:    m,
		extraction: services.NewExtractionService(c, backend.Locks(), backend.Jobs(), pool, m, logger),
		zips:       services.NewDirectoryZipService(c, backend.Locks(), mirror, m, logger),
	}, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.extraction, app.zips)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startMetricsServer(ctx context.Context, cancelFunc context.CancelFunc) {

	mux := http.NewServeMux()
	mux.Handle("/metrics", app.metrics.Handler())
	srv := &http.Server{Addr: app.config.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startJanitor(ctx context.Context) {
	p := jobs.Purgers{app.backend.Purger(), app.extraction}
	jobs.RunJanitor(ctx, p, app.config.JanitorInterval, func(err error) {
		app.logger.Warn(ctx, "purging expired jobs failed", "error", err)
	})
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains the extraction pool and releases the coordination backend.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "coordination", app.config.Coordination, "root", app.config.RootDirectory)

	if err := app.backend.RunMigrations(ctx); err != nil {
		app.close(ctx)
		return err
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startMetricsServer(ctx, cancelFunc)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startJanitor(ctx)
	}()

	wg.Wait()

	app.close(ctx)
	app.logger.Info(ctx, "App stopped")
	return nil
}

func (app *App) close(ctx context.Context) {
	app.pool.Close()
	if err := app.backend.Close(); err != nil {
		app.logger.Error(ctx, "closing coordination backend", "error", err)
	}
}
