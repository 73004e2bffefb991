package environment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quarrylabs/quarry-go/dataset"
)

type testSink struct {
	logs   []string
	debugs []string
	warns  []string
}

func (s *testSink) Log(format string, args ...any) {
	s.logs = append(s.logs, fmt.Sprintf(format, args...))
}

func (s *testSink) Debug(format string, args ...any) {
	s.debugs = append(s.debugs, fmt.Sprintf(format, args...))
}

func (s *testSink) Warn(format string, args ...any) {
	s.warns = append(s.warns, fmt.Sprintf(format, args...))
}

func (s *testSink) warned(substr string) bool {
	for _, w := range s.warns {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func trainTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.New(
		[]string{"a", "b", "target"},
		[][]string{{"1", "2", "0"}, {"3", "4", "1"}},
	)
	if err != nil {
		t.Fatalf("build train table: %v", err)
	}
	return table
}

func writeDefaults(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write defaults record: %v", err)
	}
	return path
}

// newEnv resolves an environment over the standard train table with a
// minimal valid metrics map, plus any extra options.
func newEnv(t *testing.T, opts ...Option) (*Environment, *testSink) {
	t.Helper()
	sink := &testSink{}
	all := append([]Option{
		WithMetricsMap(map[string]string{"f1": "f1_score"}),
		WithReporter(sink),
	}, opts...)
	env, err := New(trainTable(t), all...)
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return env, sink
}
