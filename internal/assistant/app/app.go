// Package app wires config, clients, stores, the engine and the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yungbote/restoration-assistant/internal/assistant/config"
	"github.com/yungbote/restoration-assistant/internal/assistant/engine"
	"github.com/yungbote/restoration-assistant/internal/assistant/httpapi"
	"github.com/yungbote/restoration-assistant/internal/assistant/respond"
	"github.com/yungbote/restoration-assistant/internal/assistant/understanding"
	"github.com/yungbote/restoration-assistant/internal/observability"
	"github.com/yungbote/restoration-assistant/internal/platform/logger"
)

type App struct {
	Log     *logger.Logger
	Config  *config.Config
	Clients *Clients
	Stores  Stores
	Engine  *engine.Engine
	Handler http.Handler

	server       *http.Server
	otelShutdown func(context.Context) error
}

// New loads config, builds the logger and starts tracing, then wires
// everything else through Build.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	shutdown := observability.InitOTel(ctx, log, observability.OtelConfigFromEnv("restoration-assistant", cfg.Env))
	a, err := Build(ctx, log, cfg)
	if err != nil {
		_ = shutdown(context.Background())
		log.Sync()
		return nil, err
	}
	a.otelShutdown = shutdown
	return a, nil
}

// Build wires an App from an already-normalized config.
func Build(ctx context.Context, log *logger.Logger, cfg *config.Config) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	stores := wireStores(log, cfg, clients)
	notifier, err := wireNotifier(log, cfg, clients)
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("init escalation notifier: %w", err)
	}

	deps := engine.Deps{
		Log:               log,
		Contexts:          stores.Contexts,
		History:           stores.History,
		Understanding:     understanding.New(log, clients.Understanding, cfg.Understanding.Type, cfg.Understanding.Timeout.Duration),
		Responder:         respond.New(log, clients.Generation, cfg.Generation.Type, cfg.Generation.Timeout.Duration),
		Notifier:          notifier,
		ImageTimeout:      cfg.Vision.Timeout.Duration,
		SpeechTimeout:     cfg.Speech.Timeout.Duration,
		EscalationTimeout: cfg.Escalation.Timeout.Duration,
	}
	// Typed nil pointers must not reach the engine's interfaces.
	if clients.Vision != nil {
		deps.Images = clients.Vision
	}
	if clients.Speech != nil {
		deps.Transcriber = clients.Speech
	}
	eng, err := engine.New(deps)
	if err != nil {
		clients.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	handler := wireRouter(log, cfg, eng, clients)
	return &App{
		Log:     log,
		Config:  cfg,
		Clients: clients,
		Stores:  stores,
		Engine:  eng,
		Handler: handler,
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout.Duration,
			IdleTimeout:       cfg.HTTP.IdleTimeout.Duration,
			WriteTimeout:      0,
		},
	}, nil
}

func wireRouter(log *logger.Logger, cfg *config.Config, eng *engine.Engine, clients *Clients) http.Handler {
	log.Info("Wiring handlers...")
	var uploader httpapi.Uploader
	var maxUpload int64
	if clients.Media != nil {
		uploader = clients.Media
		// multipart framing on top of the file itself
		maxUpload = cfg.Media.MaxBytes + 1<<20
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:             log,
		ChatHandler:     httpapi.NewChatHandler(eng, uploader),
		WSHandler:       httpapi.NewWSHandler(log, eng, cfg.HTTP.AllowedOrigins, cfg.HTTP.MaxRequestBytes),
		HealthHandler:   httpapi.NewHealthHandler(clients.Ready),
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		MaxUploadBytes:  maxUpload,
		ServiceName:     "restoration-assistant",
	})
}

// Run serves HTTP until ctx is cancelled, then drains within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("Server listening", "addr", a.server.Addr)
		errCh <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		timeout := a.Config.HTTP.ShutdownTimeout.Duration
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.Log.Info("Shutting down server...")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("server shutdown incomplete", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.otelShutdown(ctx)
	}
	a.Log.Sync()
}
