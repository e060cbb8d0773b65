package pstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
)

func testOptions(dir string) Options {
	cfg := maplet.DefaultConfig()
	cfg.Capacity = 256
	cfg.HasherSeed = 90125

	return Options{
		Dir:          dir,
		SyncInterval: 10 * time.Millisecond,
		Engine:       cfg,
	}
}

func TestPersistAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPersistentStore(testOptions(dir))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := s.Insert(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Delete("key-0", []byte("value-0")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// reopen and verify the log replayed
	s2, err := NewPersistentStore(testOptions(dir))
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	if ok, _ := s2.Contains("key-0"); ok {
		t.Error("deleted key survived reopen")
	}
	for i := 1; i < 50; i++ {
		v, ok, err := s2.Query(fmt.Sprintf("key-%d", i))
		if err != nil || !ok {
			t.Fatalf("Query(key-%d) after reopen = (%q, %t, %v)", i, v, ok, err)
		}
		if string(v) != fmt.Sprintf("value-%d", i) {
			t.Errorf("value mismatch for key-%d: %q", i, v)
		}
	}
}

func TestCompaction(t *testing.T) {
	dir := t.TempDir()

	s, err := NewPersistentStore(testOptions(dir))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 30; i++ {
		if err := s.Insert(fmt.Sprintf("key-%d", i), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}

	ps := s.(*persistentStore)
	if err := ps.Compact(); err != nil {
		t.Fatalf("Compact failed: %v", err)
	}

	// writes after compaction land in the fresh log
	for i := 30; i < 40; i++ {
		if err := s.Insert(fmt.Sprintf("key-%d", i), []byte("v")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewPersistentStore(testOptions(dir))
	if err != nil {
		t.Fatalf("failed to reopen after compaction: %v", err)
	}
	defer s2.Close()

	for i := 0; i < 40; i++ {
		if ok, _ := s2.Contains(fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("key-%d lost across compaction and reopen", i)
		}
	}

	info, _ := s2.GetInfo()
	if info.Impl != store.ImplPersistent {
		t.Errorf("Impl = %q", info.Impl)
	}
}

func TestFreshDirectory(t *testing.T) {
	s, err := NewPersistentStore(testOptions(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if ok, _ := s.Contains("anything"); ok {
		t.Error("fresh store must be empty")
	}
	if s.SupportsFeature(store.FeatureInsertE) {
		t.Error("pstore must not advertise InsertE")
	}
}

func TestMissingDir(t *testing.T) {
	if _, err := NewPersistentStore(Options{}); err == nil {
		t.Fatal("expected an error for a missing data directory")
	}
}
