package environment

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEndToEndResolution(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "proj")
	build := func() *Environment {
		sink := &testSink{}
		env, err := New(trainTable(t),
			WithReporter(sink),
			WithRootResultsPath(root),
			WithMetricsMap(map[string]string{"f1": "f1_score"}),
			WithCrossValidationParams(map[string]any{"n_splits": 5}),
			WithRuns(2),
		)
		if err != nil {
			t.Fatalf("New() err=%v", err)
		}
		return env
	}

	first := build()

	want := filepath.Join(root, AssetsDirName)
	if first.RootResultsPath != want {
		t.Fatalf("RootResultsPath=%q, want %q", first.RootResultsPath, want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("assets directory missing: %v", err)
	}
	if first.ResultPaths[CategoryPredictionsHoldout] != "" || first.ResultPaths[CategoryPredictionsTest] != "" {
		t.Fatalf("prediction paths planned without their datasets")
	}
	if len(first.CrossExperimentKey) != 64 {
		t.Fatalf("key=%q, want a 64-char digest", first.CrossExperimentKey)
	}

	second := build()
	if !first.Equal(second) {
		t.Fatalf("byte-identical inputs produced different keys: %s vs %s",
			first.CrossExperimentKey, second.CrossExperimentKey)
	}
}

func TestKeyChangesWithIdentityBearingFields(t *testing.T) {
	base, _ := newEnv(t)

	differentMetrics, _ := newEnv(t, WithMetricsMap(map[string]string{"accuracy": "accuracy_score"}))
	if base.Equal(differentMetrics) {
		t.Fatalf("metrics change did not change the key")
	}

	holdout := holdoutTable(t, []string{"a", "b", "target"})
	withHoldout, _ := newEnv(t, WithHoldout(holdout))
	if base.Equal(withHoldout) {
		t.Fatalf("holdout presence did not change the key")
	}

	differentRuns, _ := newEnv(t, WithRuns(9))
	if base.Equal(differentRuns) {
		t.Fatalf("run count change did not change the key")
	}
}

func TestKeyIgnoresNonIdentityFields(t *testing.T) {
	base, _ := newEnv(t)
	quiet, _ := newEnv(t, WithVerbose(false), WithFileBlacklist(CategoryHeartbeat))
	if !base.Equal(quiet) {
		t.Fatalf("verbosity/blacklist changed the key: %s vs %s",
			base.CrossExperimentKey, quiet.CrossExperimentKey)
	}
}

func TestWorkflowLogsKey(t *testing.T) {
	env, sink := newEnv(t)
	found := false
	for _, line := range sink.logs {
		if strings.Contains(line, env.CrossExperimentKey.String()) {
			found = true
		}
	}
	if !found {
		t.Fatalf("workflow did not log the key: %v", sink.logs)
	}
}

func TestStringIncludesKey(t *testing.T) {
	env, _ := newEnv(t)
	s := env.String()
	if !strings.Contains(s, "cross_experiment_key=") || !strings.Contains(s, env.CrossExperimentKey.String()) {
		t.Fatalf("String()=%q", s)
	}
}

func TestActivateIsLastWriterWins(t *testing.T) {
	t.Cleanup(Deactivate)

	first, _ := newEnv(t)
	second, _ := newEnv(t, WithRuns(5))

	Activate(first)
	if Active() != first {
		t.Fatalf("Active() did not return the registered environment")
	}
	Activate(second)
	if Active() != second {
		t.Fatalf("second Activate did not replace the first")
	}
	Deactivate()
	if Active() != nil {
		t.Fatalf("Deactivate left an active environment")
	}
}

func TestInitializeReportingFlushesBufferToHeartbeat(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	env, err := New(trainTable(t),
		WithMetricsMap(map[string]string{"f1": "f1_score"}),
		WithRootResultsPath(root),
		WithFileBlacklist(CategoryDescription), // buffered protected-category warning
	)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	handler, err := env.InitializeReporting(discardLogger())
	if err != nil {
		t.Fatalf("InitializeReporting() err=%v", err)
	}
	if err := handler.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}

	heartbeat := filepath.Join(env.RootResultsPath, "Heartbeat.log")
	raw, err := os.ReadFile(heartbeat)
	if err != nil {
		t.Fatalf("heartbeat not written: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "severely impairs") {
		t.Fatalf("buffered warning was not replayed: %s", content)
	}
	if !strings.Contains(content, env.CrossExperimentKey.String()) {
		t.Fatalf("key log line was not replayed: %s", content)
	}
}

func TestInitializeReportingWithBufferedReporting(t *testing.T) {
	// Resolution with the default buffer must never crash, even though no
	// handler exists yet.
	env, err := New(trainTable(t),
		WithMetricsMap(map[string]string{"f1": "f1_score"}),
	)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	handler, err := env.InitializeReporting(discardLogger())
	if err != nil {
		t.Fatalf("InitializeReporting() err=%v", err)
	}
	defer handler.Close()
}
