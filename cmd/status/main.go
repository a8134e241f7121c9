package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/aptools/internal/infrastructure/config"
	"github.com/GriffinCanCode/aptools/internal/infrastructure/logging"
	"github.com/GriffinCanCode/aptools/internal/ui"
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	hostURL := flag.String("host", "", "Host URL (overrides config)")
	pageID := flag.String("page", "", "Page id to watch (overrides config)")
	once := flag.Bool("once", false, "Render once and exit")
	flag.Parse()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *hostURL != "" {
		cfg.UI.HostURL = *hostURL
	}
	if *pageID != "" {
		cfg.UI.PageID = *pageID
	}

	// Logs go to stderr so they do not interleave with the status view.
	logger := logging.NewOrNop(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stderr"},
	})
	defer logger.Close()

	source := ui.NewHTTPSource(cfg.UI.HostURL, cfg.UI.PageID).
		WithLogger(logger.Component("source"))
	poller := ui.NewPoller(source, ui.NewTextRenderer(os.Stdout), cfg.UI.TargetHost).
		WithInterval(cfg.UI.Interval.Duration).
		WithLogger(logger.Component("poller"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if err := poller.Refresh(ctx); err != nil {
			logger.Fatal("Render failed", zap.Error(err))
		}
		return
	}
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Status view stopped", zap.Error(err))
	}
}
