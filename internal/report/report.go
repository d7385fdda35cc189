// Package report holds the result types shared by the troubleshooter and
// everything that renders or stores its output.
//
// A run produces a single Diagnosis: either the platform is not supported,
// the checks completed and produced an ordered Report, or an unexpected
// fault aborted the run and only a rendered message survives.
package report

import (
	"fmt"
	"strings"
)

// Outcome is the tri-state result of a single check.
type Outcome int

const (
	Passed Outcome = iota
	Failed
	Indeterminate
)

var outcomeNames = map[Outcome]string{
	Passed:        "passed",
	Failed:        "failed",
	Indeterminate: "indeterminate",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText encodes the outcome as its lowercase name. Both encoding/json
// and yaml.v3 pick this up.
func (o Outcome) MarshalText() ([]byte, error) {
	if _, ok := outcomeNames[o]; !ok {
		return nil, fmt.Errorf("unknown outcome %d", int(o))
	}
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	value := strings.ToLower(strings.TrimSpace(string(text)))
	for outcome, name := range outcomeNames {
		if name == value {
			*o = outcome
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", value)
}

// OutcomeOf maps a plain boolean to Passed or Failed.
func OutcomeOf(passed bool) Outcome {
	if passed {
		return Passed
	}
	return Failed
}

// CheckResult is the outcome of one health check. The first suggestion is
// the primary remediation; lines starting with "$ " are literal commands.
type CheckResult struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Outcome     Outcome  `json:"outcome" yaml:"outcome"`
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// NeedsAttention reports whether the suggestions of this result should be
// shown to the user.
func (r CheckResult) NeedsAttention() bool {
	return r.Outcome != Passed
}

// Report is the ordered list of check results. Order reflects diagnostic
// priority and is never changed after the run.
type Report struct {
	Checks []CheckResult `json:"checks" yaml:"checks"`
}

// Summary counts results by outcome.
type Summary struct {
	Passed        int `json:"passed" yaml:"passed"`
	Failed        int `json:"failed" yaml:"failed"`
	Indeterminate int `json:"indeterminate" yaml:"indeterminate"`
}

func (r Report) Summary() Summary {
	var summary Summary
	for _, check := range r.Checks {
		switch check.Outcome {
		case Passed:
			summary.Passed++
		case Failed:
			summary.Failed++
		case Indeterminate:
			summary.Indeterminate++
		}
	}
	return summary
}

// OK is true when no check failed. Indeterminate checks do not count.
func (r Report) OK() bool {
	return r.Summary().Failed == 0
}

// Find returns the result with the given id.
func (r Report) Find(id string) (CheckResult, bool) {
	for _, check := range r.Checks {
		if check.ID == id {
			return check, true
		}
	}
	return CheckResult{}, false
}
