package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:     "presets",
	Aliases: []string{"ls"},
	Short:   "List the preset catalog",
	Args:    cobra.NoArgs,
	RunE:    listPresets,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func listPresets(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tDESCRIPTION")
	for _, p := range a.ctrl.ListPresets() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Key, p.Name, p.Description)
	}
	return tw.Flush()
}
