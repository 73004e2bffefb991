package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Table is an in-memory tabular dataset: an ordered header row plus string
// cells. It is the unit of exchange between the environment core and the
// loaders, splitters, and formatters that feed it.
type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.New("table requires at least one column")
	}
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if strings.TrimSpace(col) == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, ok := seen[col]; ok {
			return nil, fmt.Errorf("duplicate column name %q", col)
		}
		seen[col] = struct{}{}
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(columns))
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}

func (t *Table) NumRows() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// SameColumns reports whether both tables carry exactly the same column set,
// ignoring order.
func (t *Table) SameColumns(other *Table) bool {
	if t == nil || other == nil {
		return t == other
	}
	if len(t.Columns) != len(other.Columns) {
		return false
	}
	names := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		names[col] = struct{}{}
	}
	for _, col := range other.Columns {
		if _, ok := names[col]; !ok {
			return false
		}
	}
	return true
}

// ContentSHA256 returns a stable hex digest of the table's full content.
// Equal column order and cell values always hash to the same digest.
func (t *Table) ContentSHA256() string {
	if t == nil {
		return ""
	}
	raw, err := json.Marshal(struct {
		Columns []string   `json:"columns"`
		Rows    [][]string `json:"rows"`
	}{Columns: t.Columns, Rows: t.Rows})
	if err != nil {
		// Columns and Rows are plain strings; Marshal cannot fail on them.
		panic(err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
