package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/benchmark"
	"github.com/nvr-ai/filterbench/images"
)

var (
	suiteImages        string
	suiteOutput        string
	suitePreset        string
	suiteResolution    string
	suiteQuick         bool
	suiteResolutions   bool
	suitePresets       bool
	suiteScenarioFile  string
	suiteSaveScenarios string
)

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Run benchmark scenarios over an image corpus and write JSON and CSV reports",
	Long: `Runs scenario sets on every ready backend. Without a selection flag the quick set runs.
Corpus images are resized to each scenario's resolution before timing.`,
	Args: cobra.NoArgs,
	RunE: runSuite,
}

func init() {
	f := suiteCmd.Flags()
	f.StringVarP(&suiteImages, "images", "i", "", "image file or directory (overrides the config)")
	f.StringVarP(&suiteOutput, "output", "o", "", "report directory (overrides the config)")
	f.StringVarP(&suitePreset, "preset", "p", "", "preset for the quick and resolution sets (default: first in the catalog)")
	f.StringVarP(&suiteResolution, "resolution", "r", string(images.ResolutionTypeVGA), "resolution for the preset set, a name or WxH")
	f.BoolVar(&suiteQuick, "quick", false, "one preset at two resolutions")
	f.BoolVar(&suiteResolutions, "resolutions", false, "one preset at every resolution")
	f.BoolVar(&suitePresets, "presets", false, "every preset at one resolution")
	f.StringVar(&suiteScenarioFile, "scenarios", "", "load scenarios from a .json or .yaml file")
	f.StringVar(&suiteSaveScenarios, "save-scenarios", "", "write the selected scenarios to a .json or .yaml file")
	rootCmd.AddCommand(suiteCmd)
}

func runSuite(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := setup(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ready := a.ready()
	if len(ready) == 0 {
		return errors.Wrap(backend.ErrNotReady, "no backend is ready")
	}
	ids := make([]backend.ID, 0, len(ready))
	for _, b := range ready {
		ids = append(ids, b.ID())
	}

	preset := suitePreset
	if preset == "" {
		preset = a.catalog.Names()[0]
	}
	predefined := benchmark.PredefinedScenarios{
		Backends:   ids,
		Iterations: a.cfg.Suite.Iterations,
		WarmupRuns: a.cfg.Suite.WarmupRuns,
	}

	var sets []*benchmark.ScenarioSet
	if suiteScenarioFile != "" {
		set, err := benchmark.LoadScenarioSet(suiteScenarioFile)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}
	if suiteResolutions {
		sets = append(sets, predefined.GetResolutionComparisonScenarios(preset))
	}
	if suitePresets {
		res, err := images.ParseResolution(suiteResolution)
		if err != nil {
			return err
		}
		sets = append(sets, predefined.GetPresetComparisonScenarios(a.catalog.Names(), res))
	}
	if suiteQuick || len(sets) == 0 {
		sets = append(sets, predefined.GetQuickScenarios(preset))
	}

	outputDir := a.cfg.Suite.OutputDir
	if suiteOutput != "" {
		outputDir = suiteOutput
	}
	suite := benchmark.NewSuite(benchmark.SuiteOptions{
		Catalog:   a.catalog,
		Backends:  ready,
		OutputDir: outputDir,
		Logger:    a.logger,
	})

	imagesPath := a.cfg.Suite.ImagesPath
	if suiteImages != "" {
		imagesPath = suiteImages
	}
	if imagesPath == "" {
		return errors.New("no images: pass --images or set suite.imagesPath")
	}
	if err := suite.LoadCorpus(imagesPath); err != nil {
		return err
	}

	all := &benchmark.ScenarioSet{Name: "filterbench suite " + suite.RunID()}
	for _, set := range sets {
		all.Scenarios = append(all.Scenarios, set.Scenarios...)
	}
	if suiteSaveScenarios != "" {
		if err := benchmark.SaveScenarioSet(all, suiteSaveScenarios); err != nil {
			return err
		}
	}
	suite.AddScenarioSet(all)

	a.logger.Info("running suite", "run", suite.RunID(), "scenarios", len(all.Scenarios), "images", imagesPath)
	files, err := suite.RunAllScenarios(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d scenarios completed\n%s\n%s\n", len(suite.GetResults()), files.JSON, files.CSV)
	return nil
}
