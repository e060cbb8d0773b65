package tstore

import (
	"testing"
	"time"

	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/store/lstore"
)

func newTestStore(t *testing.T) store.IStore {
	t.Helper()

	cfg := maplet.DefaultConfig()
	cfg.Capacity = 256
	cfg.HasherSeed = 777

	inner, err := lstore.NewLocalStore(lstore.DefaultEngineFactory(cfg))
	if err != nil {
		t.Fatalf("failed to create inner store: %v", err)
	}
	return NewTTLStore(inner, &Options{GCInterval: 10 * time.Millisecond})
}

// waitFor polls a condition until it holds or the deadline passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestPassthrough(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.Insert("k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := s.Query("k"); !ok || string(v) != "v" {
		t.Errorf("Query = (%q, %t)", v, ok)
	}
	if ok, _ := s.Contains("k"); !ok {
		t.Error("Contains = false")
	}
}

func TestExpiry(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	// one second is the smallest TTL the interface offers
	if err := s.InsertE("ephemeral", []byte("v"), 1); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Contains("ephemeral"); !ok {
		t.Fatal("entry must exist before expiry")
	}

	expired := waitFor(t, 3*time.Second, func() bool {
		ok, _ := s.Contains("ephemeral")
		return !ok
	})
	if !expired {
		t.Error("entry did not expire")
	}
}

func TestExpiryUpdated(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.InsertE("k", []byte("v1"), 1); err != nil {
		t.Fatal(err)
	}
	// re-inserting without expiry cancels the schedule
	if err := s.InsertE("k", []byte("v2"), 0); err != nil {
		t.Fatal(err)
	}

	time.Sleep(1500 * time.Millisecond)
	if ok, _ := s.Contains("k"); !ok {
		t.Error("entry expired although its schedule was cancelled")
	}
}

func TestEarlyDeleteCancelsExpiry(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if err := s.InsertE("k", []byte("v"), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Delete("k", []byte("v")); err != nil {
		t.Fatal(err)
	}

	info, err := s.GetInfo()
	if err != nil {
		t.Fatal(err)
	}
	meta := info.Metadata.(*struct {
		ScheduledExpiries int   `json:"scheduled_expiries"`
		GCIntervalMillis  int64 `json:"gc_interval_millis"`
	})
	if meta.ScheduledExpiries != 0 {
		t.Errorf("expiry schedule not cancelled: %d pending", meta.ScheduledExpiries)
	}
}

func TestFeatures(t *testing.T) {
	s := newTestStore(t)
	defer s.Close()

	if !s.SupportsFeature(store.FeatureInsertE) {
		t.Error("TTL store must advertise InsertE")
	}
	if !s.SupportsFeature(store.FeatureInsert | store.FeatureInsertE | store.FeatureQuery) {
		t.Error("combined feature check failed")
	}

	info, _ := s.GetInfo()
	if info.Impl != store.ImplTTL {
		t.Errorf("Impl = %q", info.Impl)
	}
}
