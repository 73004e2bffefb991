// Package keymaker computes the cross-experiment key: a deterministic
// fingerprint of the configuration fields that define an experiment
// environment's equivalence class.
package keymaker

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Token is the identity of one environment equivalence class. Two
// projections that are equal by value always produce the same token.
type Token string

func (t Token) String() string {
	return string(t)
}

// CrossExperimentParams is the read-only snapshot of the parameters shared
// by every experiment run under one environment.
type CrossExperimentParams struct {
	CrossValidationType string `json:"cross_validation_type"`
	Runs                int    `json:"runs"`
	GlobalRandomSeed    int    `json:"global_random_seed"`
	RandomSeeds         []int  `json:"random_seeds"`
	RandomSeedBounds    [2]int `json:"random_seed_bounds"`
}

// Projection is the canonicalized subset of a resolved configuration that
// feeds the fingerprint. Callables are represented by their registered
// names, datasets by their content digests (empty string when absent).
// Make serializes the projection immediately; nothing here is retained
// after the token is computed.
type Projection struct {
	MetricsParams         map[string]any        `json:"metrics_params"`
	CrossValidationParams map[string]any        `json:"cross_validation_params"`
	TargetColumn          string                `json:"target_column"`
	IDColumn              string                `json:"id_column"`
	DoPredictProba        bool                  `json:"do_predict_proba"`
	PredictionFormatter   string                `json:"prediction_formatter"`
	TrainDataset          string                `json:"train_dataset"`
	TestDataset           string                `json:"test_dataset"`
	HoldoutDataset        string                `json:"holdout_dataset"`
	CrossExperimentParams CrossExperimentParams `json:"cross_experiment_params"`
	ToCSVParams           map[string]any        `json:"to_csv_params"`
}

// Make computes the token for a projection. Serialization is canonical:
// struct fields keep their declared order and map keys are emitted sorted,
// so insertion order never leaks into the digest.
func Make(projection Projection) (Token, error) {
	raw, err := json.Marshal(projection)
	if err != nil {
		return "", fmt.Errorf("canonicalize projection: %w", err)
	}
	sum := sha256.Sum256(raw)
	return Token(hex.EncodeToString(sum[:])), nil
}
