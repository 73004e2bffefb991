// Package postgres backs the key index with a relational store, for setups
// where many machines share one experiment history.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quarrylabs/quarry-go/keyindex"
)

// DB is the subset of *sql.DB the store needs.
type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

func (s *Store) SaveTested(ctx context.Context, record keyindex.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("key index store not initialized")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	attributesJSON, err := encodeAttributes(record.Attributes)
	if err != nil {
		return fmt.Errorf("encode attributes: %w", err)
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO tested_keys (
			record_id,
			cross_experiment_key,
			attributes,
			created_at
		) VALUES ($1,$2,$3,$4)`,
		strings.TrimSpace(record.ID),
		strings.TrimSpace(record.Key),
		attributesJSON,
		createdAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert tested key: %w", err)
	}
	return nil
}

func (s *Store) LookupAttributes(ctx context.Context, key string) (keyindex.Record, error) {
	if s == nil || s.db == nil {
		return keyindex.Record{}, fmt.Errorf("key index store not initialized")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return keyindex.Record{}, fmt.Errorf("cross-experiment key is required")
	}
	var (
		record         keyindex.Record
		attributesJSON []byte
	)
	row := s.db.QueryRowContext(
		ctx,
		`SELECT record_id, cross_experiment_key, attributes, created_at
		 FROM tested_keys
		 WHERE cross_experiment_key = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		key,
	)
	if err := row.Scan(&record.ID, &record.Key, &attributesJSON, &record.CreatedAt); err != nil {
		return keyindex.Record{}, handleNotFound(err, key)
	}
	attributes, err := decodeAttributes(attributesJSON)
	if err != nil {
		return keyindex.Record{}, fmt.Errorf("decode attributes: %w", err)
	}
	record.Attributes = attributes
	return record, nil
}

func (s *Store) List(ctx context.Context, filter keyindex.Filter) ([]keyindex.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("key index store not initialized")
	}
	query, args := buildListQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tested keys: %w", err)
	}
	defer rows.Close()

	var records []keyindex.Record
	for rows.Next() {
		var (
			record         keyindex.Record
			attributesJSON []byte
		)
		if err := rows.Scan(&record.ID, &record.Key, &attributesJSON, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tested key: %w", err)
		}
		attributes, err := decodeAttributes(attributesJSON)
		if err != nil {
			return nil, fmt.Errorf("decode attributes: %w", err)
		}
		record.Attributes = attributes
		records = append(records, record)
	}
	return records, rows.Err()
}

func buildListQuery(filter keyindex.Filter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT record_id, cross_experiment_key, attributes, created_at FROM tested_keys`)
	args := make([]any, 0, 2)
	if strings.TrimSpace(filter.Key) != "" {
		args = append(args, strings.TrimSpace(filter.Key))
		fmt.Fprintf(&sb, " WHERE cross_experiment_key = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args
}

func encodeAttributes(attributes map[string]any) ([]byte, error) {
	if attributes == nil {
		attributes = map[string]any{}
	}
	return json.Marshal(attributes)
}

func decodeAttributes(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func handleNotFound(err error, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", keyindex.ErrNotFound, key)
	}
	return err
}
