package cache

import (
	"encoding/gob"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type cachedPage struct {
	Repos   []string
	HasNext bool
}

func init() {
	gob.Register(cachedPage{})
}

func TestGetSet(t *testing.T) {
	c := New()
	c.Set("search:q:1", cachedPage{Repos: []string{"alice/x"}})

	val, found := c.Get("search:q:1")
	if !found {
		t.Fatal("expected key to be found")
	}
	if got := val.(cachedPage).Repos[0]; got != "alice/x" {
		t.Errorf("got %v, want alice/x", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGet_Missing(t *testing.T) {
	c := New()
	if _, found := c.Get("missing"); found {
		t.Error("expected missing key to not be found")
	}
}

func TestExpiry(t *testing.T) {
	c := NewWithTTL(20 * time.Millisecond)
	c.Set("key", 1)
	time.Sleep(40 * time.Millisecond)
	if _, found := c.Get("key"); found {
		t.Error("expected key to expire")
	}
}

func TestFlush(t *testing.T) {
	c := New()
	c.Set("key", "value")
	c.Flush()

	if _, found := c.Get("key"); found {
		t.Error("expected key to be gone after Flush")
	}
}

func TestSaveAndLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.gob")

	c := New()
	c.Set("search:setup title extension:Rmd:1", cachedPage{Repos: []string{"alice/x", "bob/z"}, HasNext: true})

	if err := c.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	loaded, err := LoadFromFile(path, time.Hour)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	val, found := loaded.Get("search:setup title extension:Rmd:1")
	if !found {
		t.Fatal("expected key after load")
	}
	page := val.(cachedPage)
	if len(page.Repos) != 2 || !page.HasNext {
		t.Errorf("got %+v", page)
	}
}

func TestLoadFromFile_NonexistentFile(t *testing.T) {
	c, err := LoadFromFile("/nonexistent/path/cache.gob", 0)
	if err != nil {
		t.Fatalf("expected no error for nonexistent file, got %v", err)
	}
	if c == nil {
		t.Fatal("expected fresh cache, got nil")
	}
}

func TestLoadFromFile_CorruptData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gob")
	if err := os.WriteFile(path, []byte("not valid gob data"), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFromFile(path, 0)
	if err == nil {
		t.Error("expected decode error to be reported")
	}
	if c == nil {
		t.Fatal("expected fresh cache, got nil")
	}
	if c.Len() != 0 {
		t.Error("expected empty cache from corrupt file")
	}
}
