package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"razer-doctor/internal/config"
	"razer-doctor/internal/logger"

	"github.com/spf13/cobra"
)

// errUnhealthy makes the process exit 1 without printing anything more;
// the report already explains what is wrong.
var errUnhealthy = errors.New("unhealthy")

var (
	configPath string
	verbose    bool

	appConfig config.Config
	appLogger = logger.Discard()
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "razer-doctor",
	Short: "Troubleshoot the OpenRazer driver stack",
	Long: `razer-doctor checks the pieces OpenRazer needs to drive Razer peripherals
on Linux: the daemon, the Python client library, the DKMS kernel module,
Secure Boot, group membership, connected hardware and the installed version.

Each check reports passed, failed or indeterminate, with suggestions for
anything that needs attention. Running without a subcommand is the same
as 'razer-doctor doctor'.`,
	SilenceUsage:       true,
	SilenceErrors:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
	RunE:               runDoctor,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err == nil {
		return
	}
	if !errors.Is(err, errUnhealthy) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/razer-doctor/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
	addDoctorFlags(rootCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if verbose {
		cfg = cfg.WithLogLevel(slog.LevelDebug.String())
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logDir := ""
	if cfg.KeepLog {
		logDir = cfg.DataDir
	}
	log, closeFn, err := logger.New(logger.Options{Level: level, Console: cmd.ErrOrStderr(), Dir: logDir})
	if err != nil {
		return err
	}

	appConfig = cfg
	appLogger = log
	closeLog = closeFn
	appLogger.Debug("configuration loaded", "command", cmd.Name(), "data_dir", cfg.DataDir, "strict_versions", cfg.StrictVersionCompare)
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	return closeLog()
}
