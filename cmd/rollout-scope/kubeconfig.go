package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alevsk/rollout-scope/internal/kubeconfig"
	"github.com/spf13/cobra"
)

type kubeconfigOptions struct {
	Cluster   kubeconfig.Cluster
	CAFile    string
	Token     string
	TokenFile string
	Output    string
}

var kubeconfigOpts kubeconfigOptions

var kubeconfigCmd = &cobra.Command{
	Use:   "kubeconfig",
	Short: "Generate a kubeconfig for a GKE cluster and access token",
	Long: `Generate a kubeconfig with a single cluster, user and context named
gke_{project}_{location}_{cluster}, authenticating with a bearer token.

Examples:
  rollout-scope kubeconfig --project shop --location europe-west1 --cluster main \
    --endpoint 34.76.10.2 --ca-file ca.pem --token-file token -o kubeconfig`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runKubeconfig(cmd.OutOrStdout(), kubeconfigOpts)
	},
}

func init() {
	flags := kubeconfigCmd.Flags()
	flags.StringVar(&kubeconfigOpts.Cluster.Project, "project", "", "cloud project of the cluster")
	flags.StringVar(&kubeconfigOpts.Cluster.Location, "location", "", "region or zone of the cluster")
	flags.StringVar(&kubeconfigOpts.Cluster.Name, "cluster", "", "cluster name")
	flags.StringVar(&kubeconfigOpts.Cluster.Endpoint, "endpoint", "", "API server endpoint")
	flags.StringVar(&kubeconfigOpts.Cluster.Namespace, "namespace", "", "default namespace of the context (default: default)")
	flags.StringVar(&kubeconfigOpts.CAFile, "ca-file", "", "path to the PEM encoded cluster CA certificate")
	flags.StringVar(&kubeconfigOpts.Token, "token", "", "bearer token")
	flags.StringVar(&kubeconfigOpts.TokenFile, "token-file", "", "path to a file holding the bearer token")
	flags.StringVarP(&kubeconfigOpts.Output, "output", "o", "", "write the kubeconfig to this file instead of stdout")
}

func runKubeconfig(out io.Writer, opts kubeconfigOptions) error {
	token := opts.Token
	if opts.TokenFile != "" {
		data, err := os.ReadFile(opts.TokenFile)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return fmt.Errorf("a token is required (--token or --token-file)")
	}

	cluster := opts.Cluster
	if opts.CAFile != "" {
		ca, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return fmt.Errorf("reading CA certificate: %w", err)
		}
		cluster.CAData = ca
	}

	cfg, err := kubeconfig.Build(cluster, token)
	if err != nil {
		return err
	}
	if opts.Output != "" {
		if err := kubeconfig.WriteFile(cfg, opts.Output); err != nil {
			return fmt.Errorf("writing kubeconfig: %w", err)
		}
		fmt.Fprintf(out, "kubeconfig written to %s (context %s)\n", opts.Output, cfg.CurrentContext)
		return nil
	}
	data, err := kubeconfig.Write(cfg)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
