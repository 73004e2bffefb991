package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/quarrylabs/quarry-go/dataset"
	"github.com/quarrylabs/quarry-go/keymaker"
)

// metricsMapKey is the reserved metrics-params key the metrics map is
// folded under after the exclusivity check.
const metricsMapKey = "metrics_map"

// csvTargetKey is stripped from the CSV-export params: downstream writers
// always supply their own target.
const csvTargetKey = "path_or_buf"

// validateParameters enforces the cross-field invariants on the resolved
// record and canonicalizes fields in place. Verbosity and path types are
// enforced earlier, by the option signatures and the defaults-record
// decoder.
func (e *Environment) validateParameters() error {
	if e.RootResultsPath == "" {
		e.reporter.Warn("no root results path was given; results will not be stored at all")
	} else {
		if filepath.Base(e.RootResultsPath) != AssetsDirName {
			e.RootResultsPath = filepath.Join(e.RootResultsPath, AssetsDirName)
		}
		if err := os.MkdirAll(e.RootResultsPath, 0o755); err != nil {
			return fmt.Errorf("create results root: %w", err)
		}
		e.ResultPaths[CategoryRoot] = e.RootResultsPath
	}

	blacklist, err := validateFileBlacklist(e.FileBlacklist, e.reporter)
	if err != nil {
		return err
	}
	e.FileBlacklist = blacklist

	switch train := e.trainSpec.(type) {
	case nil:
		return fmt.Errorf("%w: a train dataset is required", ErrMissingRequired)
	case *dataset.Table:
		e.TrainDataset = train
	case string:
		table, err := dataset.Load(train)
		if err != nil {
			return err
		}
		e.TrainDataset = table
	default:
		return typeMismatch("train dataset", "a *dataset.Table or a string path", train)
	}

	switch test := e.testSpec.(type) {
	case nil:
	case *dataset.Table:
		e.TestDataset = test
	case string:
		table, err := dataset.Load(test)
		if err != nil {
			return err
		}
		e.TestDataset = table
	default:
		return typeMismatch("test dataset", "a *dataset.Table or a string path", test)
	}

	nested, hasNested := e.MetricsParams[metricsMapKey]
	switch {
	case e.MetricsMap != nil && hasNested:
		return fmt.Errorf("%w: a metrics map was supplied both directly (%v) and inside metrics_params (%v)",
			ErrMutualExclusion, e.MetricsMap, nested)
	case e.MetricsMap == nil && !hasNested:
		return fmt.Errorf("%w: a metrics map is required, either directly or inside metrics_params", ErrMissingRequired)
	case e.MetricsMap == nil:
		resolved, err := asMetricsMap(metricsMapKey, nested)
		if err != nil {
			return err
		}
		e.MetricsMap = resolved
	}
	e.MetricsParams[metricsMapKey] = e.MetricsMap

	delete(e.ToCSVParams, csvTargetKey)

	// Read-only snapshot for fingerprinting; later mutation of the live
	// fields can no longer reach it.
	e.CrossExperimentParams = keymaker.CrossExperimentParams{
		CrossValidationType: e.CrossValidationType,
		Runs:                e.Runs,
		GlobalRandomSeed:    e.GlobalRandomSeed,
		RandomSeeds:         slices.Clone(e.RandomSeeds),
		RandomSeedBounds:    e.RandomSeedBounds,
	}

	for i, factory := range e.ExperimentCallbacks {
		if factory == nil {
			return typeMismatch(fmt.Sprintf("experiment callback %d", i), "a CallbackFactory", factory)
		}
	}
	return nil
}
