package keyindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileStore keeps the index under the planned tested-keys and
// key-attribute-lookup result paths: one JSON document per key in the
// lookup directory, plus an append-only log of tested keys.
type FileStore struct {
	testedDir string
	lookupDir string
}

func NewFileStore(testedDir, lookupDir string) (*FileStore, error) {
	if testedDir == "" || lookupDir == "" {
		return nil, errors.New("tested-keys and key-attribute-lookup paths are required")
	}
	if err := os.MkdirAll(testedDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tested-keys dir: %w", err)
	}
	if err := os.MkdirAll(lookupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create key-attribute-lookup dir: %w", err)
	}
	return &FileStore{testedDir: testedDir, lookupDir: lookupDir}, nil
}

func (s *FileStore) SaveTested(ctx context.Context, record Record) error {
	if s == nil {
		return errors.New("file store not initialized")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(s.lookupPath(record.Key), payload, 0o644); err != nil {
		return fmt.Errorf("write attribute lookup: %w", err)
	}

	log, err := os.OpenFile(filepath.Join(s.testedDir, "TestedKeys.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open tested-keys log: %w", err)
	}
	defer log.Close()
	line := fmt.Sprintf("%s %s %s\n", record.CreatedAt.UTC().Format(time.RFC3339), record.ID, record.Key)
	if _, err := log.WriteString(line); err != nil {
		return fmt.Errorf("append tested key: %w", err)
	}
	return nil
}

func (s *FileStore) LookupAttributes(ctx context.Context, key string) (Record, error) {
	if s == nil {
		return Record{}, errors.New("file store not initialized")
	}
	if strings.TrimSpace(key) == "" {
		return Record{}, errors.New("cross-experiment key is required")
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	raw, err := os.ReadFile(s.lookupPath(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Record{}, fmt.Errorf("read attribute lookup: %w", err)
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return Record{}, fmt.Errorf("decode attribute lookup: %w", err)
	}
	return record, nil
}

func (s *FileStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	if s == nil {
		return nil, errors.New("file store not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.lookupDir)
	if err != nil {
		return nil, fmt.Errorf("read lookup dir: %w", err)
	}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".json")
		if filter.Key != "" && key != filter.Key {
			continue
		}
		record, err := s.LookupAttributes(ctx, key)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (s *FileStore) lookupPath(key string) string {
	return filepath.Join(s.lookupDir, key+".json")
}
