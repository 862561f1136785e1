package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger   *zap.Logger
	config   *Config
	server   *http.Server
	store    func() error
	cleanups []func() error
}

// Storages holds the storage backends selected by the configured driver.
type Storages struct {
	books   BookStorage
	ratings RatingStorage
	close   func() error
}

// NewStorages connects to the configured storage driver and provides the book
// and rating storages sharing that single connection.
func NewStorages(config *Config, logger *zap.Logger) (*Storages, error) {
	switch config.Storage.Driver {
	case StorageDriverBolt:
		client, err := GetBoltDBClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to boltdb: %s", err)
		}
		return &Storages{
			books:   NewBoltBookStorage(logger, client),
			ratings: NewBoltRatingStorage(logger, client),
			close:   client.Close,
		}, nil
	case StorageDriverRedis:
		client, err := GetRedisClient(config)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		return &Storages{
			books:   NewRedisBookStorage(logger, client),
			ratings: NewRedisRatingStorage(logger, client),
			close:   client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", config.Storage.Driver)
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and Setup the logging module.
	if err = os.MkdirAll(config.LogFolder, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewClock(config.IsProduction)
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))

	store, err := NewStorages(config, logger)
	if err != nil {
		_ = logWriter.Close()
		return nil, err
	}

	idsHandler := NewIDsHandler()
	metadata := NewGoogleBooksClient(logger, &config.Metadata, nil)
	catalog := NewCatalogService(logger, idsHandler, store.books, store.ratings, metadata)

	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		idsHandler,
		catalog,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	return &App{
		logger: logger,
		config: config,
		server: srv,
		store:  store.close,
		cleanups: []func() error{
			flusher,
			logWriter.Close,
		},
	}, nil
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	g.Go(app.Serve())
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		if err := f(); err != nil {
			fmt.Println("error during app cleanup: ", err)
		}
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
			zap.String("app.storage", app.config.Storage.Driver),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` method result. The storage
// connection is closed once no more request is served.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}

		if cerr := app.store(); cerr != nil {
			app.logger.Error("failed to close storage connection", zap.Error(cerr))
		}
		return nil
	}
}
