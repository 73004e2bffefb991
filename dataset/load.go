package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
)

// Load reads a CSV file into a Table. The first record is the header. A path
// that does not resolve to a readable file fails with the underlying
// not-found error; malformed content fails with a parse error.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse dataset %q: no header row", path)
	}

	table, err := New(records[0], records[1:])
	if err != nil {
		return nil, fmt.Errorf("parse dataset %q: %w", path, err)
	}
	return table, nil
}
