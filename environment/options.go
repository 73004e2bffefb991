package environment

import "github.com/quarrylabs/quarry-go/reporting"

// Defaults-record keys for the file-settable options. Code-valued options
// (formatters, predicates, callbacks, dataset values) are caller-only and
// cannot appear in a defaults record.
const (
	optRootResultsPath       = "root_results_path"
	optTargetColumn          = "target_column"
	optIDColumn              = "id_column"
	optDoPredictProba        = "do_predict_proba"
	optMetricsMap            = "metrics_map"
	optMetricsParams         = "metrics_params"
	optCrossValidationType   = "cross_validation_type"
	optRuns                  = "runs"
	optGlobalRandomSeed      = "global_random_seed"
	optRandomSeeds           = "random_seeds"
	optRandomSeedBounds      = "random_seed_bounds"
	optCrossValidationParams = "cross_validation_params"
	optVerbose               = "verbose"
	optFileBlacklist         = "file_blacklist"
	optReportingParams       = "reporting_params"
	optToCSVParams           = "to_csv_params"
)

var fileSettableKeys = []string{
	optCrossValidationParams,
	optCrossValidationType,
	optDoPredictProba,
	optFileBlacklist,
	optGlobalRandomSeed,
	optIDColumn,
	optMetricsMap,
	optMetricsParams,
	optRandomSeedBounds,
	optRandomSeeds,
	optReportingParams,
	optRootResultsPath,
	optRuns,
	optTargetColumn,
	optToCSVParams,
	optVerbose,
}

// ReportingParams configures the reporting handler built by
// InitializeReporting.
type ReportingParams struct {
	HeartbeatPath string
	FloatFormat   string
}

// opt is an explicitly supplied value. The set flag keeps "unset" distinct
// from a legitimate zero value, so a caller-passed false or empty string is
// never mistaken for absence.
type opt[T any] struct {
	value T
	ok    bool
}

func (o *opt[T]) set(v T) {
	o.value = v
	o.ok = true
}

// params carries one precedence tier of the option set.
type params struct {
	rootResultsPath       opt[string]
	targetColumn          opt[string]
	idColumn              opt[string]
	doPredictProba        opt[bool]
	predictionFormatter   opt[PredictionFormatter]
	metricsMap            opt[map[string]string]
	metricsParams         opt[map[string]any]
	crossValidationType   opt[string]
	runs                  opt[int]
	globalRandomSeed      opt[int]
	randomSeeds           opt[[]int]
	randomSeedBounds      opt[[2]int]
	crossValidationParams opt[map[string]any]
	verbose               opt[bool]
	blacklist             opt[Blacklist]
	reportingParams       opt[ReportingParams]
	toCSVParams           opt[map[string]any]
	doFullSave            opt[FullSavePredicate]
	callbacks             opt[[]CallbackFactory]
}

func pick[T any](tiers ...opt[T]) opt[T] {
	for _, tier := range tiers {
		if tier.ok {
			return tier
		}
	}
	return opt[T]{}
}

// merge resolves each option to its highest-precedence source.
func merge(caller, file, defaults params) params {
	return params{
		rootResultsPath:       pick(caller.rootResultsPath, file.rootResultsPath, defaults.rootResultsPath),
		targetColumn:          pick(caller.targetColumn, file.targetColumn, defaults.targetColumn),
		idColumn:              pick(caller.idColumn, file.idColumn, defaults.idColumn),
		doPredictProba:        pick(caller.doPredictProba, file.doPredictProba, defaults.doPredictProba),
		predictionFormatter:   pick(caller.predictionFormatter, file.predictionFormatter, defaults.predictionFormatter),
		metricsMap:            pick(caller.metricsMap, file.metricsMap, defaults.metricsMap),
		metricsParams:         pick(caller.metricsParams, file.metricsParams, defaults.metricsParams),
		crossValidationType:   pick(caller.crossValidationType, file.crossValidationType, defaults.crossValidationType),
		runs:                  pick(caller.runs, file.runs, defaults.runs),
		globalRandomSeed:      pick(caller.globalRandomSeed, file.globalRandomSeed, defaults.globalRandomSeed),
		randomSeeds:           pick(caller.randomSeeds, file.randomSeeds, defaults.randomSeeds),
		randomSeedBounds:      pick(caller.randomSeedBounds, file.randomSeedBounds, defaults.randomSeedBounds),
		crossValidationParams: pick(caller.crossValidationParams, file.crossValidationParams, defaults.crossValidationParams),
		verbose:               pick(caller.verbose, file.verbose, defaults.verbose),
		blacklist:             pick(caller.blacklist, file.blacklist, defaults.blacklist),
		reportingParams:       pick(caller.reportingParams, file.reportingParams, defaults.reportingParams),
		toCSVParams:           pick(caller.toCSVParams, file.toCSVParams, defaults.toCSVParams),
		doFullSave:            pick(caller.doFullSave, file.doFullSave, defaults.doFullSave),
		callbacks:             pick(caller.callbacks, file.callbacks, defaults.callbacks),
	}
}

// moduleDefaults is the lowest precedence tier. Options absent here stay
// unset when no higher tier supplies them; that absence is meaningful
// (no id column, no metrics map override, no blacklist, no results root).
func moduleDefaults() params {
	var p params
	p.targetColumn.set("target")
	p.doPredictProba.set(false)
	p.predictionFormatter.set(FormatPredictions())
	p.metricsParams.set(map[string]any{})
	p.crossValidationType.set("kfold")
	p.runs.set(1)
	p.globalRandomSeed.set(32)
	p.randomSeedBounds.set([2]int{0, 100000})
	p.crossValidationParams.set(map[string]any{})
	p.verbose.set(true)
	p.reportingParams.set(ReportingParams{FloatFormat: "%.5f"})
	p.toCSVParams.set(map[string]any{})
	p.doFullSave.set(DefaultFullSave())
	p.callbacks.set([]CallbackFactory{})
	return p
}

// Option applies one caller-tier setting to an Environment under
// construction.
type Option func(*Environment)

// WithDefaultsPath points at a YAML or JSON defaults record whose keys are
// a subset of the file-settable option set.
func WithDefaultsPath(path string) Option {
	return func(e *Environment) { e.defaultsPath.set(path) }
}

func WithRootResultsPath(path string) Option {
	return func(e *Environment) { e.caller.rootResultsPath.set(path) }
}

// WithHoldout accepts the holdout specification: a *dataset.Table, a string
// path, or a SplitFunc. Any other type fails resolution.
func WithHoldout(spec any) Option {
	return func(e *Environment) { e.holdoutSpec = spec }
}

// WithTestDataset accepts a *dataset.Table or a string path.
func WithTestDataset(spec any) Option {
	return func(e *Environment) { e.testSpec = spec }
}

func WithTargetColumn(name string) Option {
	return func(e *Environment) { e.caller.targetColumn.set(name) }
}

func WithIDColumn(name string) Option {
	return func(e *Environment) { e.caller.idColumn.set(name) }
}

func WithPredictProba(v bool) Option {
	return func(e *Environment) { e.caller.doPredictProba.set(v) }
}

func WithPredictionFormatter(f PredictionFormatter) Option {
	return func(e *Environment) { e.caller.predictionFormatter.set(f) }
}

func WithMetricsMap(m map[string]string) Option {
	return func(e *Environment) { e.caller.metricsMap.set(m) }
}

func WithMetricsParams(m map[string]any) Option {
	return func(e *Environment) { e.caller.metricsParams.set(m) }
}

func WithCrossValidationType(name string) Option {
	return func(e *Environment) { e.caller.crossValidationType.set(name) }
}

func WithRuns(n int) Option {
	return func(e *Environment) { e.caller.runs.set(n) }
}

func WithGlobalRandomSeed(seed int) Option {
	return func(e *Environment) { e.caller.globalRandomSeed.set(seed) }
}

func WithRandomSeeds(seeds []int) Option {
	return func(e *Environment) { e.caller.randomSeeds.set(seeds) }
}

func WithRandomSeedBounds(low, high int) Option {
	return func(e *Environment) { e.caller.randomSeedBounds.set([2]int{low, high}) }
}

func WithCrossValidationParams(m map[string]any) Option {
	return func(e *Environment) { e.caller.crossValidationParams.set(m) }
}

func WithVerbose(v bool) Option {
	return func(e *Environment) { e.caller.verbose.set(v) }
}

// WithFileBlacklist excludes the named result categories from persistence.
// Passing the single entry BlacklistAll disables persistence entirely.
func WithFileBlacklist(categories ...Category) Option {
	return func(e *Environment) {
		if len(categories) == 1 && string(categories[0]) == BlacklistAll {
			e.caller.blacklist.set(Blacklist{All: true})
			return
		}
		e.caller.blacklist.set(Blacklist{Categories: categories})
	}
}

func WithReportingParams(p ReportingParams) Option {
	return func(e *Environment) { e.caller.reportingParams.set(p) }
}

func WithToCSVParams(m map[string]any) Option {
	return func(e *Environment) { e.caller.toCSVParams.set(m) }
}

func WithFullSavePredicate(p FullSavePredicate) Option {
	return func(e *Environment) { e.caller.doFullSave.set(p) }
}

// WithExperimentCallbacks registers lifecycle extension factories. A single
// factory is simply a one-element registration.
func WithExperimentCallbacks(factories ...CallbackFactory) Option {
	return func(e *Environment) { e.caller.callbacks.set(factories) }
}

// WithReporter replaces the default pre-initialization buffer with a caller
// supplied sink.
func WithReporter(sink reporting.Sink) Option {
	return func(e *Environment) {
		if sink != nil {
			e.reporter = sink
		}
	}
}
