package cmd

import (
	"fmt"

	"razer-doctor/internal/analytics"
	"razer-doctor/internal/render"
	"razer-doctor/internal/storage"

	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyFormat string
	historyStats  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived diagnoses",
	Long:  `List diagnoses saved with 'razer-doctor doctor --save', newest first.`,
	Example: `  # Last ten runs
  razer-doctor history

  # Everything, as JSON
  razer-doctor history --limit 0 --format json

  # Which checks keep failing
  razer-doctor history --stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := render.ParseFormat(historyFormat)
		if err != nil {
			return err
		}

		db, err := storage.Open(appConfig.DataDir)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer db.Close()

		records, err := storage.ListDiagnoses(db, historyLimit)
		if err != nil {
			return fmt.Errorf("list diagnoses: %w", err)
		}
		if historyStats {
			return render.Stats(cmd.OutOrStdout(), analytics.Analyze(records), format)
		}
		return render.History(cmd.OutOrStdout(), records, format)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show per-check failure statistics instead of runs")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", string(render.FormatText), "Output format: text, json or yaml")
}
