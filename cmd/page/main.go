package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/api/ws"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/config"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/logging"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/aptools/internal/page"
	"github.com/GriffinCanCode/aptools/internal/protocol"
	"github.com/GriffinCanCode/aptools/internal/shared/types"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 10 * time.Second
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	listen := flag.String("listen", "", "Page proxy listen address (overrides config)")
	target := flag.String("target", "", "Target origin (overrides config)")
	hostURL := flag.String("host", "", "Host URL (overrides config)")
	dev := flag.Bool("dev", false, "Development logging")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	override(&cfg.Page.Listen, *listen)
	override(&cfg.Page.TargetOrigin, *target)
	override(&cfg.Page.HostURL, *hostURL)
	if *dev {
		cfg.Logging.Development = true
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	origin, err := url.Parse(cfg.Page.TargetOrigin)
	if err != nil || origin.Host == "" {
		logger.Fatal("Invalid target origin", zap.String("origin", cfg.Page.TargetOrigin))
	}

	id := types.PageID(cfg.Page.ID)
	if id == "" {
		id = types.PageID(uuid.NewString())
	}

	rt, err := page.NewRuntime(page.Options{
		PageID:         id,
		ReplayBaseURL:  cfg.Replay.BaseURL,
		ReplayTimeout:  cfg.Replay.Timeout.Duration,
		ReloadDelay:    cfg.Replay.ReloadDelay.Duration,
		SyntheticDelay: cfg.Replay.SyntheticDelay.Duration,
		Logger:         logger.Component("page"),
		Metrics:        monitoring.NewMetrics(),
	})
	if err != nil {
		logger.Fatal("Failed to create page runtime", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Page.Listen,
		Handler:           page.NewHandler(rt, origin),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("Serving page",
			zap.String("page_id", string(id)),
			zap.String("addr", cfg.Page.Listen),
			zap.String("target", origin.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Page server stopped", zap.Error(err))
			stop()
		}
	}()

	connect(ctx, rt, cfg.Page.HostURL, logger.Component("ws"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down page server", zap.Error(err))
	}
}

// connect keeps the page attached to the host, redialing with backoff.
// While disconnected the page keeps working and its messages are dropped.
func connect(ctx context.Context, rt *page.Runtime, hostURL string, logger *zap.Logger) {
	backoff := minBackoff
	for ctx.Err() == nil {
		conn, _, err := ws.Dial(ctx, hostURL, rt.ID(), logger)
		if err != nil {
			logger.Warn("Host unavailable", zap.String("host", hostURL), zap.Duration("retry_in", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = minBackoff

		logger.Info("Connected to host", zap.String("host", hostURL))
		serve(ctx, rt, conn, conn.Messages(), logger)
		conn.Close()
	}
}

// serve attaches the page to port and handles in until the link ends.
func serve(ctx context.Context, rt *page.Runtime, port protocol.Port, in <-chan protocol.Message, logger *zap.Logger) {
	rt.Attach(port)
	defer rt.Attach(protocol.Discard)

	if err := rt.Run(ctx, in); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Host link ended", zap.Error(err))
	}
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
