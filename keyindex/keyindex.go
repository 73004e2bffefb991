// Package keyindex records resolved cross-experiment keys and the
// configuration attributes behind them, so past environments can be found
// by identity instead of by run id.
package keyindex

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry-go/environment"
)

var ErrNotFound = errors.New("key not found")

// Record is one tested cross-experiment key with its attribute lookup
// payload.
type Record struct {
	ID         string
	Key        string
	Attributes map[string]any
	CreatedAt  time.Time
}

func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("record id is required")
	}
	if strings.TrimSpace(r.Key) == "" {
		return errors.New("cross-experiment key is required")
	}
	return nil
}

// Filter narrows List results.
type Filter struct {
	Key   string
	Limit int
}

// Store persists tested keys and answers attribute lookups by key.
type Store interface {
	SaveTested(ctx context.Context, record Record) error
	LookupAttributes(ctx context.Context, key string) (Record, error)
	List(ctx context.Context, filter Filter) ([]Record, error)
}

// FromEnvironment builds the index record for a resolved environment.
func FromEnvironment(env *environment.Environment) Record {
	return Record{
		ID:  uuid.NewString(),
		Key: env.CrossExperimentKey.String(),
		Attributes: map[string]any{
			"target_column":         env.TargetColumn,
			"id_column":             env.IDColumn,
			"do_predict_proba":      env.DoPredictProba,
			"metrics_map":           env.MetricsMap,
			"cross_validation_type": env.CrossValidationType,
			"runs":                  env.Runs,
			"global_random_seed":    env.GlobalRandomSeed,
		},
		CreatedAt: time.Now().UTC(),
	}
}
