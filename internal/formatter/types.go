package formatter

import (
	"time"

	"github.com/alevsk/rollout-scope/internal/verify"
)

// Type represents the type of formatter
type Type string

const (
	// TypeJSON formats data as JSON
	TypeJSON Type = "json"
	// TypeYAML formats data as YAML
	TypeYAML Type = "yaml"
	// TypeTable formats data as a table
	TypeTable Type = "table"
	// TypeMarkdown formats data as markdown
	TypeMarkdown Type = "markdown"
	// TypeText formats each outcome as a headline and a detail line
	TypeText Type = "text"
)

// Options configures the formatters
type Options struct {
	// Messages are the headline words for verified and failed targets
	Messages verify.Messages
}

// DefaultOptions returns options using the default message catalogue
func DefaultOptions() *Options {
	return &Options{Messages: verify.DefaultMessages}
}

// Result is a verification report together with where its targets came from
type Result struct {
	Name      string
	Version   string
	Source    string
	Renderer  string
	Timestamp int64
	Warnings  []string
	Report    *verify.Report
}

// JSON implements JSON formatting
type JSON struct {
	opts *Options
}

// YAML implements YAML formatting
type YAML struct {
	opts *Options
}

// Table implements table formatting
type Table struct {
	opts *Options
}

// Markdown implements markdown formatting
type Markdown struct {
	opts *Options
}

// Text implements plain text formatting
type Text struct {
	opts *Options
}

// Document is the serialized form of a Result
type Document struct {
	Metadata MetadataEntry  `json:"metadata" yaml:"metadata"`
	Summary  SummaryEntry   `json:"summary" yaml:"summary"`
	Outcomes []OutcomeEntry `json:"outcomes" yaml:"outcomes"`
}

type MetadataEntry struct {
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Version   string   `json:"version,omitempty" yaml:"version,omitempty"`
	Source    string   `json:"source" yaml:"source"`
	Renderer  string   `json:"renderer,omitempty" yaml:"renderer,omitempty"`
	Timestamp int64    `json:"timestamp" yaml:"timestamp"`
	Warnings  []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

type SummaryEntry struct {
	RunID       string `json:"runId" yaml:"runId"`
	AllVerified bool   `json:"allVerified" yaml:"allVerified"`
	TimedOut    bool   `json:"timedOut" yaml:"timedOut"`
	Cycles      int    `json:"cycles" yaml:"cycles"`
	Elapsed     string `json:"elapsed" yaml:"elapsed"`
	Verified    int    `json:"verified" yaml:"verified"`
	Total       int    `json:"total" yaml:"total"`
}

type OutcomeEntry struct {
	APIVersion string    `json:"apiVersion" yaml:"apiVersion"`
	Kind       string    `json:"kind" yaml:"kind"`
	Namespace  string    `json:"namespace,omitempty" yaml:"namespace,omitempty"`
	Name       string    `json:"name" yaml:"name"`
	Verified   bool      `json:"verified" yaml:"verified"`
	Detail     string    `json:"detail" yaml:"detail"`
	CheckedAt  time.Time `json:"checkedAt" yaml:"checkedAt"`
}
