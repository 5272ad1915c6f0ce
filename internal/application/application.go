package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/market-symbols/internal/api"
	"github.com/eugenenazirov/market-symbols/internal/config"
	"github.com/eugenenazirov/market-symbols/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// Option configures New.
type Option func(*options)

type options struct {
	storage storage.Storage
}

// WithStorage injects a ready storage instead of building one from the
// datasource configuration.
func WithStorage(store storage.Storage) Option {
	return func(o *options) {
		o.storage = store
	}
}

// New initializes the application with all dependencies from the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := o.storage
	if store == nil {
		var err error
		store, err = NewStorage(ctx, cfg.Datasource, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}
	logger.Info("datasource initialized", zap.String("driver", cfg.Datasource.Driver))

	handler := api.NewHandler(store, api.WithHandlerLogger(logger))
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithAllowedOrigins(cfg.AllowedOrigins),
	)

	return &App{
		storage: store,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, apiRouter),
	}, nil
}

// NewStorage builds the symbol storage selected by the datasource driver.
func NewStorage(ctx context.Context, ds config.DatasourceConfig, logger *zap.Logger) (storage.Storage, error) {
	switch ds.Driver {
	case config.DriverMemory:
		store, err := storage.NewMemoryStorage(ds.Symbols...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverPostgres, "":
		store, err := storage.NewPostgresStorage(ctx, ds, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported datasource driver %q", ds.Driver)
	}
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = "0.0.0.0:" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the storage. Call it after the server has shut down.
func (a *App) Close() {
	a.storage.Close()
}
