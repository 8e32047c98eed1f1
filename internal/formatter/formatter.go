// Package formatter renders verification reports for terminals and machines.
package formatter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alevsk/rollout-scope/internal/verify"
	"gopkg.in/yaml.v3"
)

// ErrMissingReport is returned when a Result carries no report
var ErrMissingReport = fmt.Errorf("result has no verification report")

// Formatter defines the interface for formatting data
type Formatter interface {
	Format(data Result) (string, error)
}

// NewDocument flattens a Result into its serialized form. Outcomes keep the
// report order.
func NewDocument(data Result) (*Document, error) {
	if data.Report == nil {
		return nil, ErrMissingReport
	}
	r := data.Report
	doc := &Document{
		Metadata: MetadataEntry{
			Name:      data.Name,
			Version:   data.Version,
			Source:    data.Source,
			Renderer:  data.Renderer,
			Timestamp: data.Timestamp,
			Warnings:  data.Warnings,
		},
		Summary: SummaryEntry{
			RunID:       r.RunID,
			AllVerified: r.AllVerified,
			TimedOut:    r.TimedOut,
			Cycles:      r.Cycles,
			Elapsed:     r.Elapsed.String(),
			Total:       len(r.Outcomes),
		},
		Outcomes: make([]OutcomeEntry, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		if o.Verified {
			doc.Summary.Verified++
		}
		doc.Outcomes = append(doc.Outcomes, OutcomeEntry{
			APIVersion: o.Target.APIVersion,
			Kind:       o.Target.Kind,
			Namespace:  o.Target.Namespace,
			Name:       o.Target.Name,
			Verified:   o.Verified,
			Detail:     o.Detail,
			CheckedAt:  o.Timestamp,
		})
	}
	return doc, nil
}

// Format formats data as JSON
func (j *JSON) Format(data Result) (string, error) {
	doc, err := NewDocument(data)
	if err != nil {
		return "", err
	}
	bytes, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting as JSON: %w", err)
	}
	return string(bytes), nil
}

// Format formats data as YAML
func (y *YAML) Format(data Result) (string, error) {
	doc, err := NewDocument(data)
	if err != nil {
		return "", err
	}
	bytes, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("error formatting as YAML: %w", err)
	}
	return string(bytes), nil
}

// Format writes every outcome as a headline line followed by its detail
func (t *Text) Format(data Result) (string, error) {
	if data.Report == nil {
		return "", ErrMissingReport
	}
	var b strings.Builder
	for _, o := range data.Report.Outcomes {
		b.WriteString(o.DescribeWith(t.opts.Messages))
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Format formats data as tables using go-pretty/v6/table
func (t *Table) Format(data Result) (string, error) {
	metadataTable, outcomeTable, err := buildTables(data, t.opts.Messages)
	if err != nil {
		return "", err
	}
	return metadataTable.Render() + "\n\n" + outcomeTable.Render() + "\n", nil
}

// Format formats data as markdown tables
func (m *Markdown) Format(data Result) (string, error) {
	metadataTable, outcomeTable, err := buildTables(data, m.opts.Messages)
	if err != nil {
		return "", err
	}
	return "## Verification\n\n" + metadataTable.RenderMarkdown() + "\n\n" + outcomeTable.RenderMarkdown() + "\n", nil
}

// ParseType converts a string to a Type
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(s)) {
	case TypeJSON, TypeYAML, TypeTable, TypeMarkdown, TypeText:
		return Type(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown formatter type: %s", s)
	}
}

// NewFormatter creates a new formatter of the specified type
func NewFormatter(t Type, opts *Options) (Formatter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch t {
	case TypeJSON:
		return &JSON{opts: opts}, nil
	case TypeYAML:
		return &YAML{opts: opts}, nil
	case TypeTable:
		return &Table{opts: opts}, nil
	case TypeMarkdown:
		return &Markdown{opts: opts}, nil
	case TypeText:
		return &Text{opts: opts}, nil
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", t)
	}
}

// headline picks the status word for an outcome
func headline(o verify.Outcome, m verify.Messages) string {
	if o.Verified {
		return m.Verified
	}
	return m.NotVerified
}
