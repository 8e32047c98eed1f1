package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alevsk/rollout-scope/internal/formatter"
	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/alevsk/rollout-scope/internal/source"
	"github.com/alevsk/rollout-scope/internal/telemetry"
	"github.com/alevsk/rollout-scope/internal/verify"
	"github.com/spf13/cobra"
)

var errNotVerified = errors.New("not all targets were verified")

var (
	verifyKinds     []string
	verifyInterval  time.Duration
	verifyTimeout   time.Duration
	verifyOutput    string
	verifyInclude   string
	verifyValues    string
	verifyRelease   string
	verifyRenderNS  string
	verifyKubeFlags kubeFlags
)

// verifyRequest is one verification run from source to printed report
type verifyRequest struct {
	Source   string
	Sources  *source.Options
	Kinds    []string
	Interval time.Duration
	Timeout  time.Duration
	Output   formatter.Type
}

var verifyCmd = &cobra.Command{
	Use:   "verify [source]",
	Short: "Verify that the objects in a manifest source are ready in the cluster",
	Long: `Verify loads manifests from a source, selects objects by kind and polls the
cluster until every selected object is verified or the timeout expires. The
command exits with status 1 when any object is not verified.

Examples:
  # Verify the deployments of a local file
  rollout-scope verify app.yaml

  # Verify every supported kind of a helm chart
  rollout-scope verify ./charts/shop -f values-prod.yaml --kind '*'

  # Verify a kustomization with a longer budget
  rollout-scope verify ./overlays/prod --timeout 10m --interval 10s

  # Verify manifests piped from another tool
  helm template shop ./charts/shop | rollout-scope verify -`,
	Args: cobra.ExactArgs(1),
	PreRun: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		if flags.Changed("kind") {
			cfg.Verify.Kinds = verifyKinds
		}
		if flags.Changed("interval") {
			cfg.Verify.PollInterval = verifyInterval
		}
		if flags.Changed("timeout") {
			cfg.Verify.Timeout = verifyTimeout
		}
		verifyKubeFlags.apply(flags, &cfg.Kube)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := formatter.ParseType(verifyOutput)
		if err != nil {
			return err
		}
		sources := source.DefaultOptions()
		sources.Include = verifyInclude
		sources.Render.ReleaseName = verifyRelease
		sources.Render.Namespace = verifyRenderNS
		if verifyValues != "" {
			values, err := os.ReadFile(verifyValues)
			if err != nil {
				return fmt.Errorf("reading values: %w", err)
			}
			sources.Render.Values = values
		}

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

		_, err = runVerify(cmd.Context(), cmd.OutOrStdout(), verifyRequest{
			Source:   args[0],
			Sources:  sources,
			Kinds:    cfg.Verify.Kinds,
			Interval: cfg.Verify.PollInterval,
			Timeout:  cfg.Verify.Timeout,
			Output:   output,
		}, registry, client, verify.WithTracer(tracer.Tracer()))
		return err
	},
}

func init() {
	flags := verifyCmd.Flags()
	flags.StringSliceVarP(&verifyKinds, "kind", "k", nil, "kinds to verify, '*' for every kind (default from config: deployment)")
	flags.DurationVar(&verifyInterval, "interval", 0, "time between poll cycles (default from config: 5s)")
	flags.DurationVar(&verifyTimeout, "timeout", 0, "overall verification budget (default from config: 5m)")
	flags.StringVarP(&verifyOutput, "output", "o", "text", "output format (text, table, json, yaml, markdown)")
	flags.StringVar(&verifyInclude, "include", source.DefaultInclude, "files read from plain YAML directories")
	flags.StringVarP(&verifyValues, "values", "f", "", "path to a values.yaml file used for rendering a helm chart")
	flags.StringVar(&verifyRelease, "release", "", "helm release name (default: chart name)")
	flags.StringVar(&verifyRenderNS, "render-namespace", "default", "namespace used when rendering a helm chart")
	verifyKubeFlags.register(flags)
}

// runVerify loads the source, runs the coordinator and prints the report.
// Loading and target selection fail before the cluster is queried. A run that
// ends with unverified targets returns errNotVerified after printing.
func runVerify(ctx context.Context, out io.Writer, req verifyRequest, registry *verify.Registry, client kube.Client, opts ...verify.Option) (*verify.Report, error) {
	f, err := formatter.NewFormatter(req.Output, nil)
	if err != nil {
		return nil, err
	}

	resolver, err := source.New(req.Source, req.Sources)
	if err != nil {
		return nil, err
	}
	result, meta, err := resolver.Resolve(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", req.Source, err)
	}
	for _, w := range result.Warnings {
		logger.Warn().Str("source", req.Source).Msg(w)
	}

	targets, err := verify.SelectTargets(result.Objects, req.Kinds)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		logger.Warn().Strs("kinds", req.Kinds).Int("objects", len(result.Objects)).Msg("no objects selected for verification")
	}

	report, runErr := verify.NewCoordinator(registry, client, opts...).Run(ctx, targets, req.Interval, req.Timeout)
	if report == nil {
		return nil, runErr
	}

	text, err := f.Format(formatter.Result{
		Name:      meta.Name,
		Version:   meta.Version,
		Source:    meta.Path,
		Renderer:  string(meta.RendererType),
		Timestamp: time.Now().Unix(),
		Warnings:  result.Warnings,
		Report:    report,
	})
	if err != nil {
		return report, err
	}
	fmt.Fprint(out, text)

	if runErr != nil {
		return report, runErr
	}
	if !report.AllVerified {
		return report, errNotVerified
	}
	return report, nil
}
