package verify

import (
	"fmt"
	"strings"
	"time"
)

// PendingDetail is the detail of a target no cycle has checked yet.
const PendingDetail = "not yet checked"

// Outcome is the latest verification result for one target.
type Outcome struct {
	Target    Target    `json:"target" yaml:"target"`
	Verified  bool      `json:"verified" yaml:"verified"`
	Detail    string    `json:"detail" yaml:"detail"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Verified builds a positive outcome for target.
func Verified(target Target, format string, args ...interface{}) Outcome {
	return Outcome{Target: target, Verified: true, Detail: fmt.Sprintf(format, args...)}
}

// NotVerified builds a negative outcome for target.
func NotVerified(target Target, format string, args ...interface{}) Outcome {
	return Outcome{Target: target, Detail: fmt.Sprintf(format, args...)}
}

// Messages holds the headline words used by Describe.
type Messages struct {
	Verified    string
	NotVerified string
}

// DefaultMessages is the English catalogue.
var DefaultMessages = Messages{
	Verified:    "✔ verified",
	NotVerified: "✘ not verified",
}

// Describe renders the outcome as a headline and a detail line.
func (o Outcome) Describe() string {
	return o.DescribeWith(DefaultMessages)
}

// DescribeWith renders the outcome with the given message catalogue.
func (o Outcome) DescribeWith(m Messages) string {
	headline := m.NotVerified
	if o.Verified {
		headline = m.Verified
	}
	return fmt.Sprintf("%s %s\n%s", headline, o.Target, o.Detail)
}

// Report is the result of one coordinator run.
type Report struct {
	RunID       string        `json:"runId" yaml:"runId"`
	AllVerified bool          `json:"allVerified" yaml:"allVerified"`
	TimedOut    bool          `json:"timedOut" yaml:"timedOut"`
	Cycles      int           `json:"cycles" yaml:"cycles"`
	Started     time.Time     `json:"started" yaml:"started"`
	Elapsed     time.Duration `json:"elapsed" yaml:"elapsed"`
	Outcomes    []Outcome     `json:"outcomes" yaml:"outcomes"`
}

// Describe renders every outcome, in target order.
func (r *Report) Describe() string {
	lines := make([]string, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		lines = append(lines, o.Describe())
	}
	return strings.Join(lines, "\n")
}

// Failed returns the outcomes that are not verified.
func (r *Report) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if !o.Verified {
			failed = append(failed, o)
		}
	}
	return failed
}

func allVerified(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.Verified {
			return false
		}
	}
	return true
}
