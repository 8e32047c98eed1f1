package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	rdebug "runtime/debug"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Set through -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionOutput string

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
	Platform  string `json:"platform" yaml:"platform"`
}

// currentBuild reports the ldflags values, filling the gaps from the module
// build info that `go install` embeds.
func currentBuild() BuildInfo {
	info := BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	bi, ok := rdebug.ReadBuildInfo()
	if !ok {
		return info
	}
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch {
		case s.Key == "vcs.revision" && info.Commit == "none":
			info.Commit = s.Value
		case s.Key == "vcs.time" && info.Date == "unknown":
			info.Date = s.Value
		}
	}
	return info
}

func printBuild(out io.Writer, format string, info BuildInfo) error {
	switch format {
	case "json":
		b, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting version to JSON: %w", err)
		}
		fmt.Fprintln(out, string(b))
	case "yaml":
		b, err := yaml.Marshal(info)
		if err != nil {
			return fmt.Errorf("error formatting version to YAML: %w", err)
		}
		fmt.Fprint(out, string(b))
	case "table":
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"KEY", "VALUE"})
		t.AppendRows([]table.Row{
			{"VERSION", info.Version},
			{"COMMIT", info.Commit},
			{"BUILT", info.Date},
			{"GO", info.GoVersion},
			{"PLATFORM", info.Platform},
		})
		t.Render()
	case "plain", "":
		fmt.Fprintf(out, "rollout-scope %s (commit %s, built %s, %s %s)\n",
			info.Version, info.Commit, info.Date, info.GoVersion, info.Platform)
	default:
		return fmt.Errorf("unknown version output %q (want plain, json, yaml or table)", format)
	}
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information for rollout-scope",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printBuild(cmd.OutOrStdout(), versionOutput, currentBuild())
	},
}

func init() {
	versionCmd.Flags().StringVarP(&versionOutput, "output", "o", "plain", "output format (plain, json, yaml, table)")
}
