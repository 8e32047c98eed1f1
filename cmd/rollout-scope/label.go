package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/alevsk/rollout-scope/internal/manifest"
	"github.com/alevsk/rollout-scope/internal/source"
	"github.com/spf13/cobra"
)

var labelPairs []string

type labelPair struct {
	Key   string
	Value string
}

var labelCmd = &cobra.Command{
	Use:   "label [source]",
	Short: "Ensure labels on every object of a manifest source",
	Long: `Label loads manifests from a source, ensures every object carries the given
labels and prints the result as a YAML stream. A value is merged into an
existing label as a comma separated list.

Examples:
  rollout-scope label app.yaml -l team=payments -l release=2024-05`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLabel(cmd.Context(), cmd.OutOrStdout(), args[0], labelPairs, nil)
	},
}

func init() {
	labelCmd.Flags().StringArrayVarP(&labelPairs, "label", "l", nil, "label to ensure as key=value (repeatable)")
}

func parseLabels(pairs []string) ([]labelPair, error) {
	labels := make([]labelPair, 0, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid label %q: expected key=value", p)
		}
		labels = append(labels, labelPair{Key: key, Value: value})
	}
	return labels, nil
}

func runLabel(ctx context.Context, out io.Writer, src string, pairs []string, opts *source.Options) error {
	labels, err := parseLabels(pairs)
	if err != nil {
		return err
	}
	objects, _, err := source.Load(ctx, src, opts)
	if err != nil {
		return fmt.Errorf("loading %s: %w", src, err)
	}
	for _, obj := range objects {
		for _, l := range labels {
			obj.EnsureLabel(l.Key, l.Value)
		}
	}
	data, err := manifest.Marshal(objects)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
