// Package cache keeps local copies of remote source files (dictionary
// resources fetched over HTTP) so a later session can start offline.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	indexFileName = "index.json"
	blobSuffix    = ".blob"
)

// Entry describes one cached source.
type Entry struct {
	File     string    `json:"file"`
	Size     int64     `json:"size"`
	Digest   string    `json:"digest"`
	StoredAt time.Time `json:"stored_at"`
}

// Store is a JSON-indexed blob store keyed by source URL.
type Store struct {
	dir  string
	data map[string]Entry
	mu   sync.RWMutex
}

// NewStore creates or loads a store in dir. An empty dir means
// XDG_CACHE_HOME/scrawl.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = getCacheDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	store := &Store{
		dir:  dir,
		data: make(map[string]Entry),
	}
	if err := store.load(); err != nil {
		// Non-fatal - start with an empty index
		store.data = make(map[string]Entry)
	}
	return store, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// getCacheDir returns XDG_CACHE_HOME/scrawl or ~/.cache/scrawl
func getCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "scrawl")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cache", "scrawl")
}

// ComputeHash returns the content digest used to name and verify blobs.
func ComputeHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16]), nil // First 16 bytes = 32 hex chars
}

func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached bytes for key. A blob whose digest no longer
// matches the index is reported as a miss.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(filepath.Join(s.dir, entry.File))
	if err != nil {
		return nil, false
	}
	if digest, err := ComputeHash(bytes.NewReader(data)); err != nil || digest != entry.Digest {
		return nil, false
	}
	return data, true
}

// Put stores data under key, replacing any previous blob.
func (s *Store) Put(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	digest, err := ComputeHash(bytes.NewReader(data))
	if err != nil {
		return err
	}
	name := keyHash(key) + blobSuffix
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return err
	}
	s.data[key] = Entry{
		File:     name,
		Size:     int64(len(data)),
		Digest:   digest,
		StoredAt: time.Now().UTC(),
	}
	return s.save()
}

// Clear removes the blob and index entry for key.
func (s *Store) Clear(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.data[key]; ok {
		_ = os.Remove(filepath.Join(s.dir, entry.File))
	}
	delete(s.data, key)
	return s.save()
}

// Lookup returns the index entry for key.
func (s *Store) Lookup(key string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.data[key]
	return entry, ok
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, indexFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.data)
}

func (s *Store) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, indexFileName), data, 0644)
}
