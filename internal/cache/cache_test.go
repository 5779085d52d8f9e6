package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestComputeHash(t *testing.T) {
	hash1, err := ComputeHash(strings.NewReader("Hello, World!"))
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	hash2, err := ComputeHash(strings.NewReader("Different content"))
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}
	hash3, err := ComputeHash(strings.NewReader("Hello, World!"))
	if err != nil {
		t.Fatalf("ComputeHash failed: %v", err)
	}

	// Same content = same hash
	if hash1 != hash3 {
		t.Errorf("Same content should produce same hash: %s != %s", hash1, hash3)
	}

	// Different content = different hash
	if hash1 == hash2 {
		t.Errorf("Different content should produce different hash")
	}

	if len(hash1) != 32 {
		t.Errorf("Hash should be 32 chars, got %d", len(hash1))
	}
}

func TestStore(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	key := "https://example.com/dictionaries/en_US.dic"

	if _, ok := store.Get(key); ok {
		t.Errorf("Expected miss for unknown key")
	}

	if err := store.Put(key, []byte("2\nhello\nworld\n")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	data, ok := store.Get(key)
	if !ok {
		t.Fatalf("Expected hit after Put")
	}
	if string(data) != "2\nhello\nworld\n" {
		t.Errorf("Get = %q", data)
	}

	entry, ok := store.Lookup(key)
	if !ok || entry.Size != int64(len(data)) {
		t.Errorf("Lookup = %+v, %v", entry, ok)
	}
	if want, _ := ComputeHash(strings.NewReader("2\nhello\nworld\n")); entry.Digest != want {
		t.Errorf("entry digest = %q, want %q", entry.Digest, want)
	}

	if err := store.Clear(key); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, ok := store.Get(key); ok {
		t.Errorf("Expected miss after Clear")
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	key := "https://example.com/en_US.aff"

	store1, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if err := store1.Put(key, []byte("TRY abc\n")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Create new store instance - should load persisted index
	store2, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	data, ok := store2.Get(key)
	if !ok || string(data) != "TRY abc\n" {
		t.Errorf("Expected persisted blob, got %q (hit=%v)", data, ok)
	}
}

func TestStoreCorruptBlob(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	key := "https://example.com/en_US.dic"
	if err := store.Put(key, []byte("1\nhello\n")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, _ := store.Lookup(key)
	if err := os.WriteFile(filepath.Join(dir, entry.File), []byte("tampered"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, ok := store.Get(key); ok {
		t.Errorf("Expected miss for blob with mismatched digest")
	}
}

func TestDefaultDir(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", tmpDir)

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if want := filepath.Join(tmpDir, "scrawl"); store.Dir() != want {
		t.Errorf("Dir() = %q, want %q", store.Dir(), want)
	}
}
