package keymaker

import "testing"

func sampleProjection() Projection {
	return Projection{
		MetricsParams: map[string]any{
			"metrics_map": map[string]string{"f1": "f1_score", "roc": "roc_auc_score"},
			"average":     "macro",
		},
		CrossValidationParams: map[string]any{"n_splits": 5, "shuffle": true},
		TargetColumn:          "target",
		IDColumn:              "id",
		DoPredictProba:        true,
		PredictionFormatter:   "format_predictions",
		TrainDataset:          "aaa111",
		TestDataset:           "bbb222",
		HoldoutDataset:        "",
		CrossExperimentParams: CrossExperimentParams{
			CrossValidationType: "kfold",
			Runs:                3,
			GlobalRandomSeed:    32,
			RandomSeedBounds:    [2]int{0, 100000},
		},
		ToCSVParams: map[string]any{"sep": ","},
	}
}

func TestMakeDeterministic(t *testing.T) {
	first, err := Make(sampleProjection())
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	second, err := Make(sampleProjection())
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	if first != second {
		t.Fatalf("equal projections produced %s and %s", first, second)
	}
	if len(first.String()) != 64 {
		t.Fatalf("token length=%d, want 64 hex chars", len(first))
	}
}

func TestMakeIgnoresMapInsertionOrder(t *testing.T) {
	left := sampleProjection()
	right := sampleProjection()
	right.MetricsParams = map[string]any{
		"average":     "macro",
		"metrics_map": map[string]string{"roc": "roc_auc_score", "f1": "f1_score"},
	}

	leftTok, err := Make(left)
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	rightTok, err := Make(right)
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	if leftTok != rightTok {
		t.Fatalf("map insertion order changed the token")
	}
}

func TestMakeSensitiveToValues(t *testing.T) {
	base, err := Make(sampleProjection())
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}

	changed := sampleProjection()
	changed.CrossExperimentParams.Runs = 4
	changedTok, err := Make(changed)
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	if base == changedTok {
		t.Fatalf("run count change did not change the token")
	}

	withHoldout := sampleProjection()
	withHoldout.HoldoutDataset = "ccc333"
	holdoutTok, err := Make(withHoldout)
	if err != nil {
		t.Fatalf("Make() err=%v", err)
	}
	if base == holdoutTok {
		t.Fatalf("holdout digest change did not change the token")
	}
}

func TestMakeRejectsUnserializableValues(t *testing.T) {
	bad := sampleProjection()
	bad.MetricsParams["scorer"] = func() {}
	if _, err := Make(bad); err == nil {
		t.Fatalf("expected error for unserializable projection value")
	}
}
