// Package cmd implements the CLI entry points.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/uplinkd/internal/brand"
	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/failover"
	"grimm.is/uplinkd/internal/logging"
	"grimm.is/uplinkd/internal/metrics"
	"grimm.is/uplinkd/internal/network"
)

// RunStart runs the monitoring daemon in the foreground until SIGINT or
// SIGTERM. Service supervision (systemd, runit) handles backgrounding.
func RunStart(configFile string) error {
	if configFile == "" {
		configFile = brand.DefaultConfigFile()
	}

	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	// Level name already validated by config.Validate.
	level, _ := logging.ParseLevel(cfg.LogLevel)
	logCfg := logging.DefaultConfig()
	logCfg.Level = level
	logCfg.JSON = cfg.LogJSON
	logger := logging.New(logCfg)
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsListen != "" {
		go metrics.Serve(ctx, cfg.MetricsListen, logger.WithComponent("metrics"))
	}

	logger.Info("Starting", "version", brand.Version, "config", configFile)

	ctl := failover.NewController(cfg, network.DefaultNetlinker, network.DefaultCommandExecutor, logger)
	if err := ctl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
