package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/filterbench/backend"
	"github.com/nvr-ai/filterbench/images"
)

// Scenario defines one point of the benchmark grid.
type Scenario struct {
	Name       string            `json:"name"        yaml:"name"`
	Backend    backend.ID        `json:"backend"     yaml:"backend"`
	Preset     string            `json:"preset"      yaml:"preset"`
	Resolution images.Resolution `json:"resolution"  yaml:"resolution"`
	Iterations int               `json:"iterations"  yaml:"iterations"`
	WarmupRuns int               `json:"warmup_runs" yaml:"warmupRuns"`
}

// Validate checks that s can run.
func (s Scenario) Validate() error {
	switch {
	case s.Name == "":
		return errors.New("scenario: empty name")
	case s.Preset == "":
		return errors.Errorf("scenario %s: empty preset", s.Name)
	case s.Resolution.Width <= 0 || s.Resolution.Height <= 0:
		return errors.Errorf("scenario %s: invalid resolution %dx%d", s.Name, s.Resolution.Width, s.Resolution.Height)
	case s.Iterations <= 0:
		return errors.Errorf("scenario %s: iterations must be positive", s.Name)
	case s.WarmupRuns < 0:
		return errors.Errorf("scenario %s: negative warmup runs", s.Name)
	}
	_, err := backend.ParseID(string(s.Backend))
	return errors.Wrapf(err, "scenario %s", s.Name)
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Backend:    backend.Direct,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithBackend sets the backend to run on
func (sb *ScenarioBuilder) WithBackend(id backend.ID) *ScenarioBuilder {
	sb.scenario.Backend = id
	return sb
}

// WithPreset sets the preset key
func (sb *ScenarioBuilder) WithPreset(preset string) *ScenarioBuilder {
	sb.scenario.Preset = preset
	return sb
}

// WithResolution sets the image resolution
func (sb *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name"        yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios"   yaml:"scenarios"`
}

// PredefinedScenarios builds common scenario sets for a list of backends.
type PredefinedScenarios struct {
	Backends   []backend.ID
	Iterations int
	WarmupRuns int
}

func (ps PredefinedScenarios) backends() []backend.ID {
	if len(ps.Backends) == 0 {
		return backend.IDs()
	}
	return ps.Backends
}

func (ps PredefinedScenarios) build(name string, id backend.ID, preset string, res images.Resolution, iterations, warmups int) Scenario {
	if ps.Iterations > 0 {
		iterations = ps.Iterations
	}
	if ps.WarmupRuns > 0 {
		warmups = ps.WarmupRuns
	}
	return NewScenarioBuilder(name).
		WithBackend(id).
		WithPreset(preset).
		WithResolution(res).
		WithIterations(iterations).
		WithWarmupRuns(warmups).
		Build()
}

// GetQuickScenarios returns a small set: one preset at two resolutions per backend.
func (ps PredefinedScenarios) GetQuickScenarios(preset string) *ScenarioSet {
	quick := []images.ResolutionType{images.ResolutionTypeVGA, images.ResolutionTypeHD720p}

	scenarios := make([]Scenario, 0)
	for _, id := range ps.backends() {
		for _, t := range quick {
			res, _ := images.GetResolutionByType(t)
			scenarios = append(scenarios, ps.build(fmt.Sprintf("quick_%s_%s_%s", id, preset, res.Key()), id, preset, res, 20, 3))
		}
	}
	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "One preset at two resolutions on every backend",
		Scenarios:   scenarios,
	}
}

// GetResolutionComparisonScenarios runs one preset at every resolution of the ladder.
func (ps PredefinedScenarios) GetResolutionComparisonScenarios(preset string) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, id := range ps.backends() {
		for _, res := range images.Ladder() {
			scenarios = append(scenarios, ps.build(fmt.Sprintf("resolution_%s_%s_%s", id, preset, res.Key()), id, preset, res, 50, 5))
		}
	}
	return &ScenarioSet{
		Name:        fmt.Sprintf("Resolution Comparison - %s", preset),
		Description: fmt.Sprintf("Compares every resolution for preset %s", preset),
		Scenarios:   scenarios,
	}
}

// GetPresetComparisonScenarios runs every preset at one resolution.
func (ps PredefinedScenarios) GetPresetComparisonScenarios(presetNames []string, res images.Resolution) *ScenarioSet {
	scenarios := make([]Scenario, 0)
	for _, id := range ps.backends() {
		for _, preset := range presetNames {
			scenarios = append(scenarios, ps.build(fmt.Sprintf("preset_%s_%s_%s", id, preset, res.Key()), id, preset, res, 50, 5))
		}
	}
	return &ScenarioSet{
		Name:        fmt.Sprintf("Preset Comparison @ %s", res.Key()),
		Description: fmt.Sprintf("Compares every preset at %s", res.Key()),
		Scenarios:   scenarios,
	}
}

// SaveScenarioSet saves a scenario set as JSON, or YAML for .yaml/.yml files.
func SaveScenarioSet(scenarioSet *ScenarioSet, filename string) error {
	var data []byte
	var err error
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(scenarioSet)
	default:
		data, err = json.MarshalIndent(scenarioSet, "", "  ")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}
	return nil
}

// LoadScenarioSet loads a scenario set written by SaveScenarioSet and validates every
// scenario.
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var scenarioSet ScenarioSet
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &scenarioSet)
	default:
		err = json.Unmarshal(data, &scenarioSet)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}
	for _, s := range scenarioSet.Scenarios {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &scenarioSet, nil
}
