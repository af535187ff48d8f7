// Command engine runs the resource allocation and council escalation
// engine with its HTTP query surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xbard-C42/resource-council/internal/adapters/http/api"
	"github.com/xbard-C42/resource-council/internal/adapters/transport"
	app "github.com/xbard-C42/resource-council/internal/app"
	"github.com/xbard-C42/resource-council/internal/config"
	"github.com/xbard-C42/resource-council/internal/domain/trust"
	"github.com/xbard-C42/resource-council/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// The trust store is shared between the engine, which grants tokens on
	// engagement, and the bus, which gates whispers on them.
	store := trust.NewStore(trust.WithTokenTTL(cfg.TrustTokenTTL))
	bus := transport.NewBus(transport.WithTrustGate(store, cfg.MinWhisperTrust))
	defer bus.Close()

	svc := app.New(
		app.WithTransport(bus),
		app.WithTrustStore(store),
		app.WithLogger(log),
		app.WithQueueSize(cfg.IntakeQueueSize),
		app.WithConfidenceThreshold(cfg.ConfidenceThreshold),
		app.WithConcentrationLimit(cfg.ConcentrationLimit),
		app.WithCouncilQuorum(cfg.CouncilQuorum),
		app.WithCouncilDeadline(cfg.CouncilDeadline),
		app.WithInsightWeight(cfg.SynthesisInsightWeight),
		app.WithMinWhisperTrust(cfg.MinWhisperTrust),
		app.WithTrustTokenTTL(cfg.TrustTokenTTL),
		app.WithHistoryLimit(cfg.HistoryLimit),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start engine: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	api.NewServer(svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down engine...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "engine stopped")
}
