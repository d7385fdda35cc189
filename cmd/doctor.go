package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"razer-doctor/internal/capability"
	"razer-doctor/internal/config"
	"razer-doctor/internal/render"
	"razer-doctor/internal/report"
	"razer-doctor/internal/storage"
	"razer-doctor/internal/system"
	"razer-doctor/internal/troubleshoot"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	doctorFormat string
	doctorQuiet  bool
	doctorSave   bool
	doctorStrict bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run the OpenRazer health checks",
	Long: `Run every applicable OpenRazer health check and print the report.

Checks:
  - Daemon installed and running
  - Python client library
  - DKMS sources and build for the running kernel
  - Kernel module probe and load
  - Secure Boot state
  - Group membership and log permission errors
  - Connected Razer devices the driver does not recognise
  - Installed version against the latest release

Exit status is 0 when nothing failed (or the platform is not Linux) and 1
when a check failed or the troubleshooter could not complete.`,
	Example: `  # Run the checks
  razer-doctor

  # Only show what needs attention
  razer-doctor doctor --quiet

  # Machine-readable output, archived for later
  razer-doctor doctor --format json --save`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	addDoctorFlags(doctorCmd)
}

// addDoctorFlags binds the doctor flags on cmd. The root command carries
// them too because doctor is its default action.
func addDoctorFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&doctorFormat, "format", "f", string(render.FormatText), "Output format: text, json or yaml")
	cmd.Flags().BoolVarP(&doctorQuiet, "quiet", "q", false, "Only show checks that need attention")
	cmd.Flags().BoolVar(&doctorSave, "save", false, "Archive the diagnosis (see 'razer-doctor history')")
	cmd.Flags().BoolVar(&doctorStrict, "strict-versions", false, "Compare versions component by component")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	format, err := render.ParseFormat(doctorFormat)
	if err != nil {
		return err
	}

	cfg := appConfig
	if cmd.Flags().Changed("strict-versions") {
		cfg = cfg.WithStrictVersionCompare(doctorStrict)
	}

	stop := startSpinner(cmd.ErrOrStderr(), "Running checks...")
	diagnosis := diagnose(cmd.Context(), cfg, appLogger)
	stop()

	if doctorSave {
		if err := saveDiagnosis(cfg, diagnosis); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	opts := render.Options{Width: terminalWidth(out), Quiet: doctorQuiet}
	if err := render.Diagnosis(out, diagnosis, format, opts); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if !diagnosis.Healthy() {
		return errUnhealthy
	}
	return nil
}

// diagnose resolves the client capability once, then runs the checks.
func diagnose(ctx context.Context, cfg config.Config, log *slog.Logger) report.Diagnosis {
	sys := system.Host(cfg.CommandTimeout)

	var caps capability.Capabilities
	if sys.GOOS() == troubleshoot.SupportedOS {
		caps = capability.Probe(ctx, sys.Run, cfg.PythonInterpreter, log)
		log.Debug("client capability resolved", "available", caps.ClientAvailable, "version", caps.DriverVersion, "devices", len(caps.Devices))
	}

	return troubleshoot.Run(ctx, sys, caps, troubleshoot.Options{Config: cfg, Logger: log})
}

func saveDiagnosis(cfg config.Config, d report.Diagnosis) error {
	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	rec, err := storage.SaveDiagnosis(db, d, time.Now())
	if err != nil {
		return err
	}
	appLogger.Info("diagnosis saved", "run_id", rec.RunID)
	return nil
}

// startSpinner shows progress on w when it is a terminal and returns the
// function that clears it.
func startSpinner(w io.Writer, suffix string) func() {
	if !isTerminal(w) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth is zero, meaning no wrapping, unless w is a terminal.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
