package formatter

import (
	"fmt"
	"time"

	"github.com/alevsk/rollout-scope/internal/verify"
	"github.com/jedib0t/go-pretty/v6/table"
)

func newWriter(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(nil)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateColumns = true
	t.SetTitle(title)
	return t
}

// buildTables builds the metadata and outcome tables for the given data.
// Outcome rows keep the report order.
func buildTables(data Result, messages verify.Messages) (table.Writer, table.Writer, error) {
	if data.Report == nil {
		return nil, nil, ErrMissingReport
	}
	r := data.Report

	metadataTable := newWriter("METADATA")
	metadataTable.AppendHeader(table.Row{"KEY", "VALUE"})
	metadataTable.AppendRow(table.Row{"NAME", data.Name})
	metadataTable.AppendRow(table.Row{"VERSION", data.Version})
	metadataTable.AppendRow(table.Row{"SOURCE", data.Source})
	if data.Renderer != "" {
		metadataTable.AppendRow(table.Row{"RENDERER", data.Renderer})
	}
	metadataTable.AppendRow(table.Row{"TIMESTAMP", data.Timestamp})
	metadataTable.AppendRow(table.Row{"RUN", r.RunID})
	metadataTable.AppendRow(table.Row{"CYCLES", r.Cycles})
	metadataTable.AppendRow(table.Row{"ELAPSED", r.Elapsed.Round(time.Millisecond).String()})
	metadataTable.AppendRow(table.Row{"RESULT", summary(r)})

	outcomeTable := newWriter("VERIFICATION")
	outcomeTable.AppendHeader(table.Row{
		"STATUS",
		"KIND",
		"NAMESPACE",
		"NAME",
		"DETAIL",
	})
	for _, o := range r.Outcomes {
		outcomeTable.AppendRow(table.Row{
			headline(o, messages),
			o.Target.Kind,
			o.Target.Namespace,
			o.Target.Name,
			o.Detail,
		})
	}

	return metadataTable, outcomeTable, nil
}

func summary(r *verify.Report) string {
	verified := len(r.Outcomes) - len(r.Failed())
	status := "all verified"
	switch {
	case r.AllVerified:
	case r.TimedOut:
		status = "timed out"
	default:
		status = "not verified"
	}
	return fmt.Sprintf("%s (%d/%d)", status, verified, len(r.Outcomes))
}
