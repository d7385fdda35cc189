// Package troubleshoot runs the OpenRazer health checks and assembles the
// diagnosis.
//
// Checks run one at a time in a fixed order. Each check queries a single
// fact and turns expected conditions (a missing tool, an absent file, a
// failed probe) into a Passed, Failed or Indeterminate result, or leaves
// itself out of the report when its prerequisite does not exist.
//
// Anything a check cannot account for is returned as an error. The first
// such error, or a panic, ends the run: the partial report is dropped and
// the caller receives a Fatal diagnosis carrying a rendered trace.
package troubleshoot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"

	"razer-doctor/internal/capability"
	"razer-doctor/internal/config"
	applog "razer-doctor/internal/logger"
	"razer-doctor/internal/release"
	"razer-doctor/internal/report"
	"razer-doctor/internal/system"
)

// SupportedOS is the only platform the checks know how to inspect.
const SupportedOS = "linux"

// VersionSource reports the latest published driver version.
type VersionSource interface {
	Latest(ctx context.Context) (release.Triple, error)
}

type Options struct {
	Config config.Config

	// Versions defaults to a release.Fetcher for Config.LatestVersionURL.
	Versions VersionSource

	Logger *slog.Logger
}

// state is what checks share within a single run. Only values produced by
// earlier checks and consumed by later ones live here.
type state struct {
	sys      system.System
	caps     capability.Capabilities
	cfg      config.Config
	versions VersionSource
	logger   *slog.Logger

	driverBuilt bool
}

// verdict is what a check decides; the orchestrator adds id and name.
type verdict struct {
	outcome     report.Outcome
	suggestions []string
}

type check struct {
	id   string
	name string

	// omit reports that the check's prerequisite is unavailable, so it
	// must not appear in the report.
	omit func(s *state) bool

	// run returns nil to leave the check out of the report when the
	// prerequisite turns out to be missing only once the check runs.
	run func(ctx context.Context, s *state) (*verdict, error)
}

// Run executes every applicable check and returns the diagnosis. It never
// returns an error or panics; faults become a Fatal diagnosis.
func Run(ctx context.Context, sys system.System, caps capability.Capabilities, opts Options) (diagnosis report.Diagnosis) {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	if goos := sys.GOOS(); goos != SupportedOS {
		logger.Info("troubleshooter not applicable", "os", goos)
		return report.NotApplicable()
	}

	current := "startup"
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("troubleshooter panicked", "check", current, "panic", recovered)
			diagnosis = report.Fatal(renderPanic(current, recovered, debug.Stack()))
		}
	}()

	versions := opts.Versions
	if versions == nil {
		versions = release.NewFetcher(opts.Config.LatestVersionURL, opts.Config.HTTPTimeout)
	}

	s := &state{
		sys:      sys,
		caps:     caps,
		cfg:      opts.Config,
		versions: versions,
		logger:   logger,
	}

	var results []report.CheckResult
	for _, c := range checks(opts.Config) {
		current = c.id
		if c.omit != nil && c.omit(s) {
			logger.Debug("check omitted", "check", c.id, "reason", "prerequisite unavailable")
			continue
		}

		v, err := c.run(ctx, s)
		if err != nil {
			logger.Error("check faulted", "check", c.id, "error", err)
			return report.Fatal(renderFault(c, err))
		}
		if v == nil {
			logger.Debug("check omitted", "check", c.id, "reason", "prerequisite missing")
			continue
		}

		logger.Debug("check finished", "check", c.id, "outcome", v.outcome.String())
		results = append(results, report.CheckResult{
			ID:          c.id,
			Name:        c.name,
			Outcome:     v.outcome,
			Suggestions: v.suggestions,
		})
	}

	return report.Completed(report.Report{Checks: results})
}

func renderFault(c check, err error) string {
	var b strings.Builder
	b.WriteString("Troubleshooter failed to complete!\n")
	fmt.Fprintf(&b, "check: %s (%s)\n", c.id, c.name)
	fmt.Fprintf(&b, "error: %v\n", err)
	return b.String()
}

func renderPanic(checkID string, recovered any, stack []byte) string {
	var b strings.Builder
	b.WriteString("Troubleshooter failed to complete!\n")
	fmt.Fprintf(&b, "check: %s\n", checkID)
	fmt.Fprintf(&b, "panic: %v\n\n", recovered)
	b.Write(stack)
	return b.String()
}
