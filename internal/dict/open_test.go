package dict

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metcalfc/scrawl/internal/cache"
)

func TestOpenLocal(t *testing.T) {
	d, err := Open(context.Background(),
		filepath.Join("testdata", "en_US.aff"),
		filepath.Join("testdata", "en_US.dic"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !d.Check("world") {
		t.Error("Check(world) = false")
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(context.Background(), "nope.aff", "nope.dic")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open missing files: err = %v, want ErrUnavailable", err)
	}

	_, err = Open(context.Background(), "", "")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Open with no locations: err = %v, want ErrUnavailable", err)
	}
}

func newDictionaryServer(t *testing.T) (*httptest.Server, *atomic.Bool) {
	t.Helper()
	aff, err := os.ReadFile(filepath.Join("testdata", "en_US.aff"))
	if err != nil {
		t.Fatal(err)
	}
	dic, err := os.ReadFile(filepath.Join("testdata", "en_US.dic"))
	if err != nil {
		t.Fatal(err)
	}

	down := &atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/dictionaries/en_US.aff":
			w.Write(aff)
		case "/dictionaries/en_US.dic":
			w.Write(dic)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, down
}

func TestOpenRemoteWithCache(t *testing.T) {
	srv, down := newDictionaryServer(t)
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	affURL := srv.URL + "/dictionaries/en_US.aff"
	dicURL := srv.URL + "/dictionaries/en_US.dic"
	opts := []Option{WithCache(store), WithRetry(2, time.Millisecond), WithHTTPClient(srv.Client())}

	d, err := Open(context.Background(), affURL, dicURL, opts...)
	if err != nil {
		t.Fatalf("Open remote: %v", err)
	}
	if !d.Check("hello") {
		t.Error("Check(hello) = false")
	}
	if _, ok := store.Get(dicURL); !ok {
		t.Error("word list was not cached")
	}

	// The server going away falls back to the cached copies.
	down.Store(true)
	d, err = Open(context.Background(), affURL, dicURL, opts...)
	if err != nil {
		t.Fatalf("Open with server down: %v", err)
	}
	if !d.Check("hello") {
		t.Error("cached dictionary does not check hello")
	}
}

func TestOpenRemoteNotFound(t *testing.T) {
	srv, _ := newDictionaryServer(t)
	_, err := Open(context.Background(),
		srv.URL+"/missing.aff", srv.URL+"/missing.dic",
		WithRetry(3, time.Millisecond), WithHTTPClient(srv.Client()))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
