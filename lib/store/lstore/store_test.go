package lstore

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
)

func testConfig() *maplet.Config {
	cfg := maplet.DefaultConfig()
	cfg.Capacity = 256
	cfg.HasherSeed = 4242
	return cfg
}

func newTestStore(t *testing.T) store.IStore {
	t.Helper()
	s, err := NewLocalStore(DefaultEngineFactory(testConfig()))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestInsertQuery(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Insert("greeting", []byte("hello")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	v, ok, err := s.Query("greeting")
	if err != nil || !ok {
		t.Fatalf("Query = (%v, %t, %v)", v, ok, err)
	}
	if string(v) != "hello" {
		t.Errorf("Query returned %q", v)
	}

	// last write wins on the same key
	if err := s.Insert("greeting", []byte("servus")); err != nil {
		t.Fatalf("second Insert failed: %v", err)
	}
	v, _, _ = s.Query("greeting")
	if string(v) != "servus" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}

func TestQueryReturnsCopy(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	original := []byte("immutable")
	if err := s.Insert("k", original); err != nil {
		t.Fatal(err)
	}

	// mutate both the caller's slice and the returned slice
	original[0] = 'X'
	v1, _, _ := s.Query("k")
	v1[0] = 'Y'

	v2, _, _ := s.Query("k")
	if string(v2) != "immutable" {
		t.Errorf("stored value was corrupted: %q", v2)
	}
}

func TestContainsDelete(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Insert("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	if ok, _ := s.Contains("k"); !ok {
		t.Error("inserted key not contained")
	}

	deleted, err := s.Delete("k", []byte("v"))
	if err != nil || !deleted {
		t.Fatalf("Delete = (%t, %v)", deleted, err)
	}
	if ok, _ := s.Contains("k"); ok {
		t.Error("deleted key still contained")
	}
}

func TestInsertEUnsupported(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	err := s.InsertE("k", []byte("v"), 10)
	if err == nil {
		t.Fatal("expected InsertE to be unsupported")
	}
	if s.SupportsFeature(store.FeatureInsertE) {
		t.Error("SupportsFeature must not advertise InsertE")
	}
	if !s.SupportsFeature(store.FeatureInsert | store.FeatureQuery | store.FeatureDelete) {
		t.Error("core features must be advertised")
	}
}

func TestSaveLoad(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	for i := 0; i < 50; i++ {
		if err := s.Insert(fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf("value-%d", i))); err != nil {
			t.Fatal(err)
		}
	}

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := newTestStore(t)
	defer restored.Close()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i := 0; i < 50; i++ {
		v, ok, err := restored.Query(fmt.Sprintf("key-%d", i))
		if err != nil || !ok {
			t.Fatalf("restored Query(key-%d) = (%q, %t, %v)", i, v, ok, err)
		}
		if string(v) != fmt.Sprintf("value-%d", i) {
			t.Errorf("restored value mismatch for key-%d: %q", i, v)
		}
	}
}

func TestGetInfo(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	for i := 0; i < 20; i++ {
		if err := s.Insert(fmt.Sprintf("key-%d", i), make([]byte, 100)); err != nil {
			t.Fatal(err)
		}
	}

	info, err := s.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	if info.Impl != store.ImplLocal {
		t.Errorf("Impl = %q", info.Impl)
	}
	if info.Engine.Len != 20 {
		t.Errorf("engine len = %d", info.Engine.Len)
	}
	if info.ValueSizeAverage == 0 {
		t.Error("value size statistics not tracked")
	}
}
