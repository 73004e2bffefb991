package environment

import (
	"fmt"
	"strings"

	"github.com/quarrylabs/quarry-go/dataset"
)

// defineHoldoutSet materializes the holdout specification and, for a
// splitting function, also replaces the training table. A materialized
// holdout must carry exactly the training table's column set.
func (e *Environment) defineHoldoutSet() error {
	switch spec := e.holdoutSpec.(type) {
	case nil:
	case SplitFunc:
		if err := e.applySplit(spec); err != nil {
			return err
		}
	case func(*dataset.Table, string) (*dataset.Table, *dataset.Table, error):
		if err := e.applySplit(spec); err != nil {
			return err
		}
	case *dataset.Table:
		e.HoldoutDataset = spec
	case string:
		table, err := dataset.Load(spec)
		if err != nil {
			return err
		}
		e.HoldoutDataset = table
	default:
		return typeMismatch("holdout dataset", "nil, a *dataset.Table, a string path, or a SplitFunc", spec)
	}

	if e.HoldoutDataset != nil && !e.HoldoutDataset.SameColumns(e.TrainDataset) {
		return fmt.Errorf("%w: train and holdout datasets must have the same columns; train has %d columns (%s), holdout has %d columns (%s)",
			ErrSchemaMismatch,
			len(e.TrainDataset.Columns), strings.Join(e.TrainDataset.Columns, ", "),
			len(e.HoldoutDataset.Columns), strings.Join(e.HoldoutDataset.Columns, ", "))
	}
	return nil
}

func (e *Environment) applySplit(split SplitFunc) error {
	train, holdout, err := split(e.TrainDataset, e.TargetColumn)
	if err != nil {
		return fmt.Errorf("holdout split: %w", err)
	}
	e.TrainDataset = train
	e.HoldoutDataset = holdout
	return nil
}
