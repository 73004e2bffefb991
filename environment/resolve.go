package environment

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

var errUnknownOption = errors.New("unknown option")

// resolveOptions merges the three precedence tiers — caller options, the
// defaults record, the module default table — into the resolved record.
// Maps are cloned on assignment so the record owns its values outright.
func (e *Environment) resolveOptions() error {
	fileParams, err := e.decodeDefaultsRecord()
	if err != nil {
		return err
	}
	resolved := merge(e.caller, fileParams, moduleDefaults())

	e.RootResultsPath = resolved.rootResultsPath.value
	e.TargetColumn = resolved.targetColumn.value
	e.IDColumn = resolved.idColumn.value
	e.DoPredictProba = resolved.doPredictProba.value
	e.PredictionFormatter = resolved.predictionFormatter.value
	e.MetricsMap = maps.Clone(resolved.metricsMap.value)
	e.MetricsParams = cloneAnyMap(resolved.metricsParams.value)
	e.CrossValidationType = resolved.crossValidationType.value
	e.Runs = resolved.runs.value
	e.GlobalRandomSeed = resolved.globalRandomSeed.value
	e.RandomSeeds = slices.Clone(resolved.randomSeeds.value)
	e.RandomSeedBounds = resolved.randomSeedBounds.value
	e.CrossValidationParams = cloneAnyMap(resolved.crossValidationParams.value)
	e.Verbose = resolved.verbose.value
	e.FileBlacklist = resolved.blacklist.value.clone()
	e.ReportingParams = resolved.reportingParams.value
	e.ToCSVParams = cloneAnyMap(resolved.toCSVParams.value)
	e.DoFullSave = resolved.doFullSave.value
	e.ExperimentCallbacks = slices.Clone(resolved.callbacks.value)
	return nil
}

// decodeDefaultsRecord loads and decodes the defaults record, if one was
// configured. Unknown keys warn and are ignored; a key holding a value of
// the wrong shape for its option is fatal. A missing file is fatal and
// keeps the loader's not-found chain intact.
func (e *Environment) decodeDefaultsRecord() (params, error) {
	var p params
	if !e.defaultsPath.ok {
		return p, nil
	}
	path := e.defaultsPath.value

	raw, err := os.ReadFile(path)
	if err != nil {
		return params{}, fmt.Errorf("defaults record %q: %w", path, err)
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return params{}, fmt.Errorf("defaults record %q: %w", path, err)
	}
	record, ok := doc.(map[string]any)
	if !ok {
		return params{}, fmt.Errorf("%w: defaults record %q must decode to a mapping, received %s", ErrTypeMismatch, path, typeVal(doc))
	}

	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		value := record[key]
		if value == nil {
			continue
		}
		if err := p.setFromRecord(key, value); err != nil {
			if errors.Is(err, errUnknownOption) {
				e.reporter.Warn("ignoring unknown key %q in defaults record %q; valid keys: %s",
					key, path, strings.Join(fileSettableKeys, ", "))
				continue
			}
			return params{}, err
		}
		e.reporter.Debug("defaults record %q supplied %q", path, key)
	}
	return p, nil
}

// setFromRecord dispatches one defaults-record key over the closed option
// set, decoding the value into its field's type.
func (p *params) setFromRecord(key string, value any) error {
	switch key {
	case optRootResultsPath:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		p.rootResultsPath.set(s)
	case optTargetColumn:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		p.targetColumn.set(s)
	case optIDColumn:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		p.idColumn.set(s)
	case optDoPredictProba:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		p.doPredictProba.set(b)
	case optMetricsMap:
		m, err := asMetricsMap(key, value)
		if err != nil {
			return err
		}
		p.metricsMap.set(m)
	case optMetricsParams:
		m, err := asAnyMap(key, value)
		if err != nil {
			return err
		}
		p.metricsParams.set(m)
	case optCrossValidationType:
		s, err := asString(key, value)
		if err != nil {
			return err
		}
		p.crossValidationType.set(s)
	case optRuns:
		n, err := asInt(key, value)
		if err != nil {
			return err
		}
		p.runs.set(n)
	case optGlobalRandomSeed:
		n, err := asInt(key, value)
		if err != nil {
			return err
		}
		p.globalRandomSeed.set(n)
	case optRandomSeeds:
		seeds, err := asIntSlice(key, value)
		if err != nil {
			return err
		}
		p.randomSeeds.set(seeds)
	case optRandomSeedBounds:
		bounds, err := asSeedBounds(key, value)
		if err != nil {
			return err
		}
		p.randomSeedBounds.set(bounds)
	case optCrossValidationParams:
		m, err := asAnyMap(key, value)
		if err != nil {
			return err
		}
		p.crossValidationParams.set(m)
	case optVerbose:
		b, err := asBool(key, value)
		if err != nil {
			return err
		}
		p.verbose.set(b)
	case optFileBlacklist:
		bl, err := asBlacklist(key, value)
		if err != nil {
			return err
		}
		p.blacklist.set(bl)
	case optReportingParams:
		rp, err := asReportingParams(key, value)
		if err != nil {
			return err
		}
		p.reportingParams.set(rp)
	case optToCSVParams:
		m, err := asAnyMap(key, value)
		if err != nil {
			return err
		}
		p.toCSVParams.set(m)
	default:
		return fmt.Errorf("%w: %q", errUnknownOption, key)
	}
	return nil
}

func asString(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeMismatch(key, "a string", v)
	}
	return s, nil
}

func asBool(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, typeMismatch(key, "a boolean", v)
	}
	return b, nil
}

func asInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, typeMismatch(key, "an integer", v)
	}
}

func asIntSlice(key string, v any) ([]int, error) {
	seq, ok := v.([]any)
	if !ok {
		return nil, typeMismatch(key, "a list of integers", v)
	}
	out := make([]int, len(seq))
	for i, item := range seq {
		n, err := asInt(fmt.Sprintf("%s[%d]", key, i), item)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func asSeedBounds(key string, v any) ([2]int, error) {
	seq, err := asIntSlice(key, v)
	if err != nil {
		return [2]int{}, err
	}
	if len(seq) != 2 {
		return [2]int{}, typeMismatch(key, "a two-element [low, high] list", v)
	}
	return [2]int{seq[0], seq[1]}, nil
}

func asAnyMap(key string, v any) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, typeMismatch(key, "a mapping", v)
	}
	return m, nil
}

// asMetricsMap accepts either a mapping of metric id to scorer reference
// (a null or empty reference means the id doubles as the reference) or a
// plain list of metric ids.
func asMetricsMap(key string, v any) (map[string]string, error) {
	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]string, len(value))
		for id, ref := range value {
			switch r := ref.(type) {
			case nil:
				out[id] = id
			case string:
				if r == "" {
					out[id] = id
					continue
				}
				out[id] = r
			default:
				return nil, typeMismatch(fmt.Sprintf("%s[%q]", key, id), "a string scorer reference or null", ref)
			}
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(value))
		for id, ref := range value {
			if ref == "" {
				out[id] = id
				continue
			}
			out[id] = ref
		}
		return out, nil
	case []any:
		out := make(map[string]string, len(value))
		for i, item := range value {
			id, err := asString(fmt.Sprintf("%s[%d]", key, i), item)
			if err != nil {
				return nil, err
			}
			out[id] = id
		}
		return out, nil
	default:
		return nil, typeMismatch(key, "a mapping or a list of metric ids", v)
	}
}

func asBlacklist(key string, v any) (Blacklist, error) {
	switch value := v.(type) {
	case string:
		if value == BlacklistAll {
			return Blacklist{All: true}, nil
		}
		return Blacklist{}, typeMismatch(key, fmt.Sprintf("%q or a list of category names", BlacklistAll), v)
	case []any:
		categories := make([]Category, len(value))
		for i, item := range value {
			s, err := asString(fmt.Sprintf("%s[%d]", key, i), item)
			if err != nil {
				return Blacklist{}, err
			}
			categories[i] = Category(s)
		}
		return Blacklist{Categories: categories}, nil
	default:
		return Blacklist{}, typeMismatch(key, fmt.Sprintf("%q or a list of category names", BlacklistAll), v)
	}
}

func asReportingParams(key string, v any) (ReportingParams, error) {
	m, err := asAnyMap(key, v)
	if err != nil {
		return ReportingParams{}, err
	}
	out := ReportingParams{FloatFormat: "%.5f"}
	if raw, ok := m["heartbeat_path"]; ok && raw != nil {
		s, err := asString(key+".heartbeat_path", raw)
		if err != nil {
			return ReportingParams{}, err
		}
		out.HeartbeatPath = s
	}
	if raw, ok := m["float_format"]; ok && raw != nil {
		s, err := asString(key+".float_format", raw)
		if err != nil {
			return ReportingParams{}, err
		}
		out.FloatFormat = s
	}
	return out, nil
}

func cloneAnyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
