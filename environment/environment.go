// Package environment resolves, validates, and fingerprints the
// configuration that lets experiments be fairly compared. Resolution is a
// single pass: resolve options, validate, derive the holdout set, plan
// result paths, fingerprint. Any fatal error aborts the whole sequence;
// filesystem side effects already performed (a created results root) are
// left in place.
package environment

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/quarrylabs/quarry-go/dataset"
	"github.com/quarrylabs/quarry-go/keymaker"
	"github.com/quarrylabs/quarry-go/reporting"
)

// Environment is the resolved configuration record plus its planned result
// paths and cross-experiment key. New owns the record exclusively while the
// workflow runs; afterwards consumers treat it as read-only.
type Environment struct {
	RootResultsPath string

	TrainDataset   *dataset.Table
	HoldoutDataset *dataset.Table
	TestDataset    *dataset.Table

	TargetColumn        string
	IDColumn            string
	DoPredictProba      bool
	PredictionFormatter PredictionFormatter
	MetricsMap          map[string]string
	MetricsParams       map[string]any

	CrossValidationType   string
	Runs                  int
	GlobalRandomSeed      int
	RandomSeeds           []int
	RandomSeedBounds      [2]int
	CrossValidationParams map[string]any

	Verbose             bool
	FileBlacklist       Blacklist
	ReportingParams     ReportingParams
	ToCSVParams         map[string]any
	DoFullSave          FullSavePredicate
	ExperimentCallbacks []CallbackFactory

	CrossExperimentParams keymaker.CrossExperimentParams
	ResultPaths           ResultPaths
	CrossExperimentKey    keymaker.Token

	caller       params
	defaultsPath opt[string]
	trainSpec    any
	holdoutSpec  any
	testSpec     any
	reporter     reporting.Sink
}

// New resolves an environment from the training dataset specification
// (a *dataset.Table or a string path) and the caller options. The returned
// Environment is fully resolved: every option has its final value, the
// result path catalogue is planned, and the cross-experiment key is
// computed.
func New(trainDataset any, opts ...Option) (*Environment, error) {
	e := &Environment{
		trainSpec:   trainDataset,
		reporter:    reporting.NewBuffer(),
		ResultPaths: newResultPaths(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.workflow(); err != nil {
		return nil, err
	}
	return e, nil
}

// workflow runs the five resolution states in their fixed order. Each
// transition is one-way; the first failure aborts the sequence.
func (e *Environment) workflow() error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"resolve options", e.resolveOptions},
		{"validate parameters", e.validateParameters},
		{"define holdout set", e.defineHoldoutSet},
		{"format result paths", func() error { e.formatResultPaths(); return nil }},
		{"generate cross-experiment key", e.generateCrossExperimentKey},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}
	e.reporter.Log("cross-experiment key: %s", e.CrossExperimentKey)
	return nil
}

// generateCrossExperimentKey projects the identity-bearing subset of the
// record and hands it to the key maker. The projection is serialized
// immediately; it retains no references to the record.
func (e *Environment) generateCrossExperimentKey() error {
	projection := keymaker.Projection{
		MetricsParams:         e.MetricsParams,
		CrossValidationParams: e.CrossValidationParams,
		TargetColumn:          e.TargetColumn,
		IDColumn:              e.IDColumn,
		DoPredictProba:        e.DoPredictProba,
		PredictionFormatter:   e.PredictionFormatter.Name,
		TrainDataset:          e.TrainDataset.ContentSHA256(),
		TestDataset:           e.TestDataset.ContentSHA256(),
		HoldoutDataset:        e.HoldoutDataset.ContentSHA256(),
		CrossExperimentParams: e.CrossExperimentParams,
		ToCSVParams:           e.ToCSVParams,
	}
	token, err := keymaker.Make(projection)
	if err != nil {
		return err
	}
	e.CrossExperimentKey = token
	return nil
}

// Key returns the environment's identity token.
func (e *Environment) Key() keymaker.Token {
	return e.CrossExperimentKey
}

// Equal reports whether both environments fingerprint to the same key.
func (e *Environment) Equal(other *Environment) bool {
	return other != nil && e.CrossExperimentKey == other.CrossExperimentKey
}

func (e *Environment) String() string {
	return fmt.Sprintf("Environment(cross_experiment_key=%s)", e.CrossExperimentKey)
}

// InitializeReporting installs the real reporting handler and replays any
// messages buffered during resolution into it. When a results root exists,
// the heartbeat defaults to <root>/Heartbeat.log.
func (e *Environment) InitializeReporting(logger *slog.Logger) (*reporting.Handler, error) {
	params := reporting.Params{
		HeartbeatPath: e.ReportingParams.HeartbeatPath,
		FloatFormat:   e.ReportingParams.FloatFormat,
	}
	if params.HeartbeatPath == "" && e.RootResultsPath != "" {
		params.HeartbeatPath = filepath.Join(e.RootResultsPath, "Heartbeat.log")
	}
	handler, err := reporting.NewHandler(logger, params)
	if err != nil {
		return nil, err
	}
	if buffer, ok := e.reporter.(*reporting.Buffer); ok {
		buffer.FlushTo(handler)
	}
	e.reporter = handler
	return handler, nil
}

var (
	activeMu  sync.Mutex
	activeEnv *Environment
)

// Activate registers env as the process-wide active environment consumed by
// collaborators outside this core. Registration is last-writer-wins; the
// orchestration layer is responsible for keeping only one environment
// active at a time.
func Activate(env *Environment) {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeEnv = env
}

// Active returns the currently registered environment, or nil.
func Active() *Environment {
	activeMu.Lock()
	defer activeMu.Unlock()
	return activeEnv
}

// Deactivate clears the registration.
func Deactivate() {
	activeMu.Lock()
	defer activeMu.Unlock()
	activeEnv = nil
}
