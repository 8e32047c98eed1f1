package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alevsk/rollout-scope/internal/api"
	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/alevsk/rollout-scope/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	// Server flags
	serverHost      string
	serverPort      int
	serverTimeout   string
	serverKubeFlags kubeFlags
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Rollout-Scope API server",
	PreRun: func(cmd *cobra.Command, args []string) {
		// Override config values with flags if provided
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		if cmd.Flags().Changed("timeout") {
			if duration, err := time.ParseDuration(serverTimeout); err == nil {
				cfg.Server.Timeout = duration
			}
		}
		serverKubeFlags.apply(cmd.Flags(), &cfg.Kube)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := newRegistry(cfg)
		if err != nil {
			return err
		}
		client, err := newClient(cfg.Kube)
		if err != nil {
			return err
		}
		tracer, err := telemetry.NewTracer(cfg.Tracing, version)
		if err != nil {
			return err
		}
		defer func() {
			if err := tracer.Shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("failed to flush traces")
			}
		}()

		server := api.NewServer(api.Options{
			Registry:     registry,
			Client:       client,
			Metrics:      telemetry.NewMetrics(),
			Tracer:       tracer.Tracer(),
			PollInterval: cfg.Verify.PollInterval,
			Timeout:      cfg.Verify.Timeout,
			Kinds:        cfg.Verify.Kinds,
			ReadTimeout:  cfg.Server.Timeout,
		})
		return server.Start(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	},
}

func init() {
	// Server flags
	serveCmd.Flags().StringVarP(&serverHost, "host", "H", "", "Server host (default: 0.0.0.0)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default: 8080)")
	serveCmd.Flags().StringVarP(&serverTimeout, "timeout", "t", "", "Server read timeout (e.g., 30s, 1m)")
	serverKubeFlags.register(serveCmd.Flags())
}
