package backend

import (
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.SetString("playState", "playlistID", "44"); err != nil {
		t.Fatalf("SetString: %v", err)
	}
	if err := s.SetInt("playState", "comingUpIndex", 3); err != nil {
		t.Fatalf("SetInt: %v", err)
	}

	// a second store over the same file sees the persisted values
	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if v, ok := s2.GetString("playState", "playlistID"); !ok || v != "44" {
		t.Errorf("GetString = %q, %v", v, ok)
	}
	if v, ok := s2.GetInt("playState", "comingUpIndex"); !ok || v != 3 {
		t.Errorf("GetInt = %d, %v", v, ok)
	}

	if err := s2.Delete("playState", "playlistID"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	s3, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen after delete: %v", err)
	}
	if _, ok := s3.GetString("playState", "playlistID"); ok {
		t.Error("deleted key still present after reload")
	}
}

func TestStoreMissingKeys(t *testing.T) {
	stores := map[string]Store{
		"memory": NewMemoryStore(),
	}
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	stores["file"] = fs

	for name, s := range stores {
		if _, ok := s.GetString("nope", "nothing"); ok {
			t.Errorf("%s: missing string key reported present", name)
		}
		if _, ok := s.GetInt("nope", "nothing"); ok {
			t.Errorf("%s: missing int key reported present", name)
		}
		if err := s.Delete("nope", "nothing"); err != nil {
			t.Errorf("%s: deleting a missing key errored: %v", name, err)
		}
		// non-numeric value is not an int
		s.SetString("g", "k", "banana")
		if _, ok := s.GetInt("g", "k"); ok {
			t.Errorf("%s: non-numeric value decoded as int", name)
		}
	}
}
