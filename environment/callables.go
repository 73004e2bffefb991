package environment

import (
	"fmt"
	"strconv"

	"github.com/quarrylabs/quarry-go/dataset"
)

// PredictionFormatter is a named callable that shapes raw model output into
// a prediction table. The name participates in the cross-experiment key, so
// two environments using differently named formatters never collide.
type PredictionFormatter struct {
	Name   string
	Format func(raw []float64, source *dataset.Table, targetColumn, idColumn string) (*dataset.Table, error)
}

// FormatPredictions is the default formatter: one row per prediction, with
// the id column copied from the source table when configured.
func FormatPredictions() PredictionFormatter {
	return PredictionFormatter{
		Name: "format_predictions",
		Format: func(raw []float64, source *dataset.Table, targetColumn, idColumn string) (*dataset.Table, error) {
			if source != nil && len(raw) != source.NumRows() {
				return nil, fmt.Errorf("got %d predictions for %d rows", len(raw), source.NumRows())
			}
			columns := []string{targetColumn}
			if idColumn != "" {
				columns = []string{idColumn, targetColumn}
			}
			rows := make([][]string, len(raw))
			for i, v := range raw {
				value := strconv.FormatFloat(v, 'f', -1, 64)
				if idColumn == "" {
					rows[i] = []string{value}
					continue
				}
				id := ""
				if source != nil {
					for j, col := range source.Columns {
						if col == idColumn {
							id = source.Rows[i][j]
							break
						}
					}
				}
				rows[i] = []string{id, value}
			}
			return dataset.New(columns, rows)
		},
	}
}

// FullSavePredicate decides, from an experiment's result description,
// whether the full result set should be persisted.
type FullSavePredicate struct {
	Name   string
	Decide func(description map[string]any) bool
}

// DefaultFullSave always persists.
func DefaultFullSave() FullSavePredicate {
	return FullSavePredicate{
		Name:   "default_do_full_save",
		Decide: func(map[string]any) bool { return true },
	}
}

// SplitFunc derives a holdout set from the training table. It returns the
// possibly modified training table and the new holdout table; both replace
// the prior values.
type SplitFunc func(train *dataset.Table, targetColumn string) (*dataset.Table, *dataset.Table, error)

// Callback receives experiment lifecycle notifications.
type Callback interface {
	HandleEvent(event string, payload map[string]any)
}

// CallbackFactory constructs a fresh Callback for each experiment run.
// Lifecycle extensions are registered as factories, never as live
// instances; implementing this interface is the capability check.
type CallbackFactory interface {
	NewCallback() Callback
}
