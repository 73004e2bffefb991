package keyindex

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	dir := t.TempDir()
	store, err := NewFileStore(filepath.Join(dir, "TestedKeys"), filepath.Join(dir, "KeyAttributeLookup"))
	if err != nil {
		t.Fatalf("NewFileStore() err=%v", err)
	}
	return store
}

func sampleRecord(key string) Record {
	return Record{
		ID:  uuid.NewString(),
		Key: key,
		Attributes: map[string]any{
			"target_column": "target",
			"runs":          2,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	record := sampleRecord("abc123")
	if err := store.SaveTested(ctx, record); err != nil {
		t.Fatalf("SaveTested() err=%v", err)
	}

	got, err := store.LookupAttributes(ctx, "abc123")
	if err != nil {
		t.Fatalf("LookupAttributes() err=%v", err)
	}
	if got.ID != record.ID || got.Key != record.Key {
		t.Fatalf("lookup returned %+v, want %+v", got, record)
	}
	if got.Attributes["target_column"] != "target" {
		t.Fatalf("attributes lost in round trip: %v", got.Attributes)
	}
}

func TestFileStoreAppendsTestedKeysLog(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	if err := store.SaveTested(ctx, sampleRecord("key-one")); err != nil {
		t.Fatalf("SaveTested() err=%v", err)
	}
	if err := store.SaveTested(ctx, sampleRecord("key-two")); err != nil {
		t.Fatalf("SaveTested() err=%v", err)
	}

	raw, err := os.ReadFile(filepath.Join(store.testedDir, "TestedKeys.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "key-one") || !strings.Contains(content, "key-two") {
		t.Fatalf("log missing keys: %s", content)
	}
}

func TestFileStoreLookupMissingKey(t *testing.T) {
	store := newTestFileStore(t)
	_, err := store.LookupAttributes(context.Background(), "never-tested")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreSaveRejectsInvalidRecord(t *testing.T) {
	store := newTestFileStore(t)
	if err := store.SaveTested(context.Background(), Record{ID: "x"}); err == nil {
		t.Fatalf("expected error for record without a key")
	}
}

func TestFileStoreList(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	for _, key := range []string{"k1", "k2", "k3"} {
		if err := store.SaveTested(ctx, sampleRecord(key)); err != nil {
			t.Fatalf("SaveTested(%s) err=%v", key, err)
		}
	}

	all, err := store.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() err=%v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List()=%d records, want 3", len(all))
	}

	one, err := store.List(ctx, Filter{Key: "k2"})
	if err != nil {
		t.Fatalf("List(k2) err=%v", err)
	}
	if len(one) != 1 || one[0].Key != "k2" {
		t.Fatalf("List(k2)=%v", one)
	}

	limited, err := store.List(ctx, Filter{Limit: 2})
	if err != nil {
		t.Fatalf("List(limit) err=%v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("List(limit)=%d records, want 2", len(limited))
	}
}
