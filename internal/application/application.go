package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/svcharness/internal/api"
	"github.com/eugenenazirov/svcharness/internal/shutdown"
)

// RateLimitConfig configures the API token bucket. Zero values disable limiting.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps" validate:"gte=0"`
	Burst int     `mapstructure:"burst" validate:"gte=0"`
}

// ServerConfig is the application section of Config.yaml.
type ServerConfig struct {
	Service              string          `mapstructure:"service" validate:"required"`
	Port                 string          `mapstructure:"port" validate:"required"`
	ShutdownGracePeriod  time.Duration   `mapstructure:"shutdown_grace_period"`
	ReadHeaderTimeout    time.Duration   `mapstructure:"read_header_timeout"`
	WriteTimeout         time.Duration   `mapstructure:"write_timeout"`
	IdleTimeout          time.Duration   `mapstructure:"idle_timeout"`
	EnableRequestLogging bool            `mapstructure:"enable_request_logging"`
	RateLimit            RateLimitConfig `mapstructure:"rate_limit"`
}

// Defaults returns the lowest-precedence values for ServerConfig.
func Defaults() map[string]any {
	return map[string]any{
		"service":                "svcharness",
		"port":                   "8080",
		"shutdown_grace_period":  "10s",
		"read_header_timeout":    "5s",
		"write_timeout":          "15s",
		"idle_timeout":           "60s",
		"enable_request_logging": true,
		"rate_limit.rps":         25,
		"rate_limit.burst":       50,
	}
}

// App encapsulates the HTTP server and its handler chain.
type App struct {
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server

	addr net.Addr
}

// New wires the API router into an HTTP server built from cfg.
func New(cfg ServerConfig, logger *zap.Logger, stopper api.Stopper) (*App, error) {
	if strings.TrimSpace(cfg.Port) == "" {
		return nil, errors.New("port must not be empty")
	}

	handler := api.NewHandler(cfg.Service, stopper)
	router := api.NewRouter(handler, logger.Named("http"),
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	)

	return &App{
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg ServerConfig, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listener and serves in a goroutine. The returned channel
// receives the serve error, if any, and is closed when serving stops.
func (a *App) Start() (<-chan error, error) {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}

	a.addr = ln.Addr()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		a.logger.Info("server listening", zap.String("addr", ln.Addr().String()))
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh, nil
}

// Addr reports the bound listener address, or nil before Start.
func (a *App) Addr() net.Addr {
	return a.addr
}

// Shutdown drains in-flight requests within timeout and force-closes the
// server when draining does not finish in time.
func (a *App) Shutdown(timeout time.Duration) error {
	a.logger.Info("shutting down server", zap.Duration("grace_period", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := a.server.Close(); closeErr != nil {
			a.logger.Error("forced close failed", zap.Error(closeErr))
			return closeErr
		}
		return err
	}
	return nil
}

// Main is the service entry point handed to the bootstrap harness. It serves
// until an interrupt is received or the server fails on its own.
func Main(logger *zap.Logger, cfg ServerConfig, sig *shutdown.Signal) error {
	app, err := New(cfg, logger, sig)
	if err != nil {
		logger.Error("failed to initialize application", zap.Error(err))
		return err
	}

	errCh, err := app.Start()
	if err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return err
	}

	select {
	case <-sig.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			logger.Error("server error", zap.Error(err))
			return err
		}
		return nil
	}

	return app.Shutdown(cfg.ShutdownGracePeriod)
}
