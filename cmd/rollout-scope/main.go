package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/alevsk/rollout-scope/internal/config"
	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var cfg = config.Default()

var rootCmd = &cobra.Command{
	Use:   "rollout-scope",
	Short: "Rollout-Scope - verify that applied Kubernetes manifests reached their intended state",
	Long: `Rollout-Scope reads Kubernetes manifests from files, directories, Helm charts,
Kustomize directories or URLs, and polls the cluster until every selected object
is verified or the timeout expires.`,
	SilenceErrors: true, // We'll handle error printing ourselves
	SilenceUsage:  true, // We'll handle usage printing ourselves
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		// Load configuration from file or environment variable
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		// flags override config due to highest precedence
		if debug {
			cfg.Debug = true
		}

		// Initialize logger
		logger.Init(cfg)

		// Print configuration source
		if configPath != "" || os.Getenv(config.RolloutScopeConfigPathEnvVar) != "" {
			logger.Debug().Msgf("Using config file: %s", configPath)
		} else {
			logger.Debug().Msg("Using default configuration")
		}

		return nil
	},
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config.yml in current directory)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose logging and additional debug information")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(kubeconfigCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	cmd, err := rootCmd.ExecuteC()
	if err == nil {
		return
	}
	// the report has already been printed
	if errors.Is(err, errNotVerified) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	// Show usage first
	fmt.Println(cmd.UsageString())
	// Then show the error
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
