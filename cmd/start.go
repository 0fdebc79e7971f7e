// Package cmd implements CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/argus/internal/capture"
	"firestige.xyz/argus/internal/config"
	"firestige.xyz/argus/internal/log"
	"firestige.xyz/argus/internal/metrics"
	"firestige.xyz/argus/internal/sink"
	"firestige.xyz/argus/internal/sink/console"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start capturing",
	Long: `Start the Argus capture agent in the foreground.

Runs until interrupted (SIGINT, SIGTERM); on shutdown the remaining
reassembly state is flushed and pending records are stitched.

Examples:
  argus start                        # use the default config path
  argus start -c config.yml          # use config.yml`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStartCommand(); err != nil {
			exitWithError("agent failed", err)
		}
	},
}

func runStartCommand() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return err
	}
	logger := log.GetLogger()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, cfg.Metrics.Path)
		if err := metricsServer.Start(); err != nil {
			return err
		}
	}

	out, err := newSink(cfg.Sink)
	if err != nil {
		return err
	}

	agent, err := capture.NewAgent(cfg, out)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runErr := agent.Run(ctx)

	if err := out.Close(); err != nil {
		logger.WithError(err).Warn("failed to close sink")
	}
	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			logger.WithError(err).Warn("failed to stop metrics server")
		}
	}
	return runErr
}

func newSink(cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Type {
	case "console":
		return console.New(cfg.Format)
	default:
		return nil, fmt.Errorf("unsupported sink type %q", cfg.Type)
	}
}
