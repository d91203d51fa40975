package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/benchmark"
	"github.com/nvr-ai/filterbench/filters"
	"github.com/nvr-ai/filterbench/images"
)

var (
	comparePreset     string
	compareResolution string
)

var compareCmd = &cobra.Command{
	Use:   "compare <input>",
	Short: "Run one preset on both backends and check that their outputs agree",
	Args:  cobra.ExactArgs(1),
	RunE:  compare,
}

func init() {
	compareCmd.Flags().StringVarP(&comparePreset, "preset", "p", "", "preset key (default: every preset)")
	compareCmd.Flags().StringVarP(&compareResolution, "resolution", "r", "", "resize the input first, a name or WxH")
	rootCmd.AddCommand(compareCmd)
}

func compare(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	var buf *filters.Buffer
	if compareResolution != "" {
		res, err := images.ParseResolution(compareResolution)
		if err != nil {
			return err
		}
		buf, err = images.ResizeToBuffer(data, res)
		if err != nil {
			return err
		}
	} else {
		buf, _, err = images.DecodeToBuffer(data)
		if err != nil {
			return err
		}
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	base, err := a.ctrl.Backend(backend.Direct)
	if err != nil {
		return err
	}
	subj, err := a.ctrl.Backend(backend.Accelerated)
	if err != nil {
		return err
	}
	if !subj.Ready() {
		return errors.Wrapf(backend.ErrNotReady, "backend %s: %s", subj.ID(), subj.Status().Error)
	}

	names := a.catalog.Names()
	if comparePreset != "" {
		names = []string{comparePreset}
	}

	mismatches := 0
	for _, name := range names {
		p, err := a.catalog.Lookup(name)
		if err != nil {
			return err
		}
		c, err := benchmark.Compare(cmd.Context(), base, subj, buf, p)
		if err != nil {
			return err
		}
		verdict := "ok"
		if !c.Equivalent() {
			verdict = "MISMATCH"
			mismatches++
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s %dx%d  %s %v  %s %v  speedup %.2fx  max diff %d  %s\n",
			name, c.Width, c.Height, c.Baseline, c.BaseTime, c.Subject, c.SubjTime, c.Speedup, c.MaxDiff, verdict)
	}
	if mismatches > 0 {
		return errors.Errorf("%d of %d presets differ by more than %d", mismatches, len(names), filters.EquivalenceEpsilon)
	}
	return nil
}
