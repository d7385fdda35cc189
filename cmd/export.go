package cmd

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"razer-doctor/internal/render"
	"razer-doctor/internal/storage"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	exportOutput   string
	exportLogLines int
)

var exportCmd = &cobra.Command{
	Use:   "export [run-id]",
	Short: "Export a saved diagnosis as a Markdown report",
	Long: `Export an archived diagnosis as Markdown, ready to paste into an OpenRazer
issue. Without a run id the most recent saved run is used. The tail of the
OpenRazer daemon log is appended unless --log-lines is 0.`,
	Example: `  # Latest run to stdout
  razer-doctor export

  # A specific run (prefix of the id shown by 'history') to a file
  razer-doctor export 6f1c2a9e --output report.md`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to this file instead of stdout")
	exportCmd.Flags().IntVar(&exportLogLines, "log-lines", 50, "Number of daemon log lines to include")
}

func runExport(cmd *cobra.Command, args []string) error {
	db, err := storage.Open(appConfig.DataDir)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer db.Close()

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}
	rec, err := loadRecord(db, prefix)
	if err != nil {
		return err
	}

	var logTail string
	if exportLogLines > 0 {
		if home, err := os.UserHomeDir(); err == nil {
			logTail, err = tailFile(filepath.Join(home, appConfig.LogFile), exportLogLines)
			if err != nil {
				appLogger.Warn("daemon log not included", "error", err)
			}
		}
	}

	if exportOutput == "" {
		return render.Markdown(cmd.OutOrStdout(), rec, logTail)
	}

	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOutput, err)
	}
	if err := render.Markdown(f, rec, logTail); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Saved to: %s\n", exportOutput)
	return nil
}

// loadRecord looks a full run id up directly and otherwise resolves arg as
// a prefix over the whole archive.
func loadRecord(db *sql.DB, arg string) (storage.Record, error) {
	if _, err := uuid.Parse(arg); err == nil {
		rec, err := storage.GetDiagnosis(db, arg)
		if err != nil {
			return storage.Record{}, fmt.Errorf("get diagnosis: %w", err)
		}
		if rec == nil {
			return storage.Record{}, fmt.Errorf("no saved diagnosis with run id %s", arg)
		}
		return *rec, nil
	}

	records, err := storage.ListDiagnoses(db, 0)
	if err != nil {
		return storage.Record{}, fmt.Errorf("list diagnoses: %w", err)
	}
	return pickRecord(records, arg)
}

// pickRecord returns the newest record whose run id starts with prefix.
// An empty prefix selects the newest record.
func pickRecord(records []storage.Record, prefix string) (storage.Record, error) {
	var matches []storage.Record
	for _, rec := range records {
		if strings.HasPrefix(rec.RunID, prefix) {
			matches = append(matches, rec)
		}
	}
	switch {
	case len(matches) == 0 && prefix == "":
		return storage.Record{}, errors.New("no saved diagnoses; run 'razer-doctor doctor --save' first")
	case len(matches) == 0:
		return storage.Record{}, fmt.Errorf("no saved diagnosis matches %q", prefix)
	case len(matches) > 1 && prefix != "":
		return storage.Record{}, fmt.Errorf("%q matches %d runs; use a longer prefix", prefix, len(matches))
	}
	return matches[0], nil
}

// tailFile returns the last n lines of path. A missing file is not an error.
func tailFile(path string, n int) (string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open file failed: %w", err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read file failed: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
