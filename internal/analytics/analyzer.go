// Package analytics summarises archived diagnoses per check, to tell a
// one-off failure from one that keeps coming back.
package analytics

import (
	"fmt"
	"sort"

	"razer-doctor/internal/report"
	"razer-doctor/internal/storage"
)

// CheckStats is how one check fared across archived runs.
type CheckStats struct {
	ID            string         `json:"id"             yaml:"id"`
	Name          string         `json:"name"           yaml:"name"`
	Runs          int            `json:"runs"           yaml:"runs"`
	Failures      int            `json:"failures"       yaml:"failures"`
	Indeterminate int            `json:"indeterminate"  yaml:"indeterminate"`
	FailureRate   float64        `json:"failure_rate"   yaml:"failure_rate"` // 0.0 - 1.0
	LastOutcome   report.Outcome `json:"last_outcome"   yaml:"last_outcome"`
	Recurring     bool           `json:"recurring"      yaml:"recurring"`
}

// Summary covers a set of archived runs.
type Summary struct {
	Runs          int          `json:"runs"           yaml:"runs"`
	Completed     int          `json:"completed"      yaml:"completed"`
	Fatal         int          `json:"fatal"          yaml:"fatal"`
	NotApplicable int          `json:"not_applicable" yaml:"not_applicable"`
	Checks        []CheckStats `json:"checks"         yaml:"checks"`
}

const (
	minRunsForRecurring = 3
	recurringRate       = 0.5
)

// Analyze expects records newest first, as storage.ListDiagnoses returns
// them. Checks are ordered by failure rate, then by id.
func Analyze(records []storage.Record) Summary {
	summary := Summary{Runs: len(records), Checks: []CheckStats{}}
	byID := make(map[string]*CheckStats)

	for _, rec := range records {
		switch rec.Kind {
		case report.KindFatal:
			summary.Fatal++
			continue
		case report.KindNotApplicable:
			summary.NotApplicable++
			continue
		}
		if rec.Diagnosis.Report == nil {
			continue
		}
		summary.Completed++

		for _, check := range rec.Diagnosis.Report.Checks {
			stats, ok := byID[check.ID]
			if !ok {
				// Newest run sets the name and last outcome.
				stats = &CheckStats{ID: check.ID, Name: check.Name, LastOutcome: check.Outcome}
				byID[check.ID] = stats
			}
			stats.Runs++
			switch check.Outcome {
			case report.Failed:
				stats.Failures++
			case report.Indeterminate:
				stats.Indeterminate++
			}
		}
	}

	for _, stats := range byID {
		stats.FailureRate = float64(stats.Failures) / float64(stats.Runs)
		stats.Recurring = stats.Runs >= minRunsForRecurring && stats.FailureRate >= recurringRate
		summary.Checks = append(summary.Checks, *stats)
	}

	sort.Slice(summary.Checks, func(i, j int) bool {
		a, b := summary.Checks[i], summary.Checks[j]
		if a.FailureRate != b.FailureRate {
			return a.FailureRate > b.FailureRate
		}
		return a.ID < b.ID
	})

	return summary
}

// Recurring returns a message for every check flagged as recurring.
func (s Summary) Recurring() []string {
	var messages []string
	for _, stats := range s.Checks {
		if !stats.Recurring {
			continue
		}
		messages = append(messages, fmt.Sprintf("'%s' failed in %d of the last %d runs", stats.Name, stats.Failures, stats.Runs))
	}
	return messages
}
