package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/images"
)

var (
	applyPreset  string
	applyBackend string
)

var applyCmd = &cobra.Command{
	Use:   "apply <input> <output>",
	Short: "Filter one image and record the run in the backend's history",
	Long: `Decodes <input> (PNG, JPEG or WebP), applies the preset on the selected backend and
writes <output> as PNG or JPEG according to its extension.`,
	Args: cobra.ExactArgs(2),
	RunE: apply,
}

func init() {
	applyCmd.Flags().StringVarP(&applyPreset, "preset", "p", "", "preset key (required)")
	applyCmd.Flags().StringVarP(&applyBackend, "backend", "b", string(backend.Direct), "backend: direct or accelerated")
	_ = applyCmd.MarkFlagRequired("preset")
	rootCmd.AddCommand(applyCmd)
}

func apply(cmd *cobra.Command, args []string) error {
	in, out := args[0], args[1]
	id, err := parseBackend(applyBackend)
	if err != nil {
		return err
	}
	format, err := images.FormatFromPath(out)
	if err != nil {
		return err
	}
	if format == images.FormatWebP {
		return errors.Wrap(images.ErrUnsupportedFormat, "webp output")
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return errors.Wrap(err, "read input")
	}
	buf, _, err := images.DecodeToBuffer(data)
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.ctrl.ApplyPreset(cmd.Context(), buf, applyPreset, id)
	if err != nil {
		return err
	}
	encoded, err := images.EncodeBuffer(buf, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, encoded, 0o644); err != nil {
		return errors.Wrap(err, "write output")
	}

	e := res.Entry
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s on %s, %s in %.2fms (%d px/ms)\n",
		out, e.Preset, res.Backend, e.Size(), e.ProcessingTimeMs, e.Throughput)
	return nil
}
