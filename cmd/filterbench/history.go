package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/history"
)

var (
	historyBackend string
	exportDir      string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect, clear or export a backend's benchmark history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the history, most recent first",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every entry of the history",
	Args:  cobra.NoArgs,
	RunE:  clearHistory,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the history as a CSV file",
	Args:  cobra.NoArgs,
	RunE:  exportHistory,
}

func init() {
	historyCmd.PersistentFlags().StringVarP(&historyBackend, "backend", "b", string(backend.Direct), "backend: direct or accelerated")
	historyExportCmd.Flags().StringVarP(&exportDir, "dir", "d", ".", "directory the CSV file is written to")
	historyCmd.AddCommand(historyListCmd, historyClearCmd, historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

func listHistory(cmd *cobra.Command, args []string) error {
	id, err := parseBackend(historyBackend)
	if err != nil {
		return err
	}
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.ctrl.History(id)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no runs recorded for %s\n", id)
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tPRESET\tSIZE\tPIXELS\tMS\tPX/MS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%d\n",
			e.Timestamp.UTC().Format(history.TimestampLayout), e.Preset, e.Size(), e.PixelCount, e.ProcessingTimeMs, e.Throughput)
	}
	return tw.Flush()
}

func clearHistory(cmd *cobra.Command, args []string) error {
	id, err := parseBackend(historyBackend)
	if err != nil {
		return err
	}
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	return a.ctrl.ClearHistory(cmd.Context(), id)
}

func exportHistory(cmd *cobra.Command, args []string) error {
	id, err := parseBackend(historyBackend)
	if err != nil {
		return err
	}
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	export, err := a.ctrl.ExportHistory(id)
	if errors.Is(err, history.ErrEmpty) {
		return errors.Errorf("no runs recorded for %s, nothing to export", id)
	}
	if err != nil {
		return err
	}
	path := filepath.Join(exportDir, export.FileName)
	if err := os.WriteFile(path, export.Body, 0o644); err != nil {
		return errors.Wrap(err, "write export")
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
