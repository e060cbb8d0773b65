package server

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/mappy/lib/maplet"
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/lib/store/lstore"
	"github.com/ValentinKolb/mappy/rpc/common"
)

func newTestStore(t *testing.T) store.IStore {
	t.Helper()

	cfg := maplet.DefaultConfig()
	cfg.Capacity = 256
	cfg.HasherSeed = 31337

	s, err := lstore.NewLocalStore(lstore.DefaultEngineFactory(cfg))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

func TestStoreAdapter(t *testing.T) {
	adapter := NewStoreServerAdapter()
	s := newTestStore(t)
	defer s.Close()

	// Insert
	resp := adapter.Handle(common.NewInsertRequest("k", []byte("v")), s)
	if resp.MsgType != common.MsgTKVInsert || resp.Err != "" {
		t.Fatalf("insert response = %+v", resp)
	}

	// Query
	resp = adapter.Handle(common.NewQueryRequest("k"), s)
	if !resp.Ok || string(resp.Value) != "v" {
		t.Fatalf("query response = %+v", resp)
	}

	// Contains
	resp = adapter.Handle(common.NewContainsRequest("k"), s)
	if !resp.Ok {
		t.Fatalf("contains response = %+v", resp)
	}

	// Stats carries the store info as JSON meta
	resp = adapter.Handle(common.NewStatsRequest(), s)
	if resp.Err != "" {
		t.Fatalf("stats response = %+v", resp)
	}
	var info store.StoreInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		t.Fatalf("stats meta not parseable: %v", err)
	}
	if info.Engine.Len != 1 {
		t.Errorf("stats report %d entries", info.Engine.Len)
	}

	// Delete
	resp = adapter.Handle(common.NewDeleteRequest("k", []byte("v")), s)
	if !resp.Ok {
		t.Fatalf("delete response = %+v", resp)
	}

	// Unsupported type
	resp = adapter.Handle(&common.Message{MsgType: common.MsgTCustom}, s)
	if resp.MsgType != common.MsgTError {
		t.Fatalf("custom message should be rejected, got %+v", resp)
	}

	// Nil store
	resp = adapter.Handle(common.NewQueryRequest("k"), nil)
	if resp.MsgType != common.MsgTError {
		t.Fatalf("nil store should error, got %+v", resp)
	}
}

// InsertE against a plain memory store must surface the unsupported error
func TestStoreAdapterInsertEUnsupported(t *testing.T) {
	adapter := NewStoreServerAdapter()
	s := newTestStore(t)
	defer s.Close()

	resp := adapter.Handle(common.NewInsertERequest("k", []byte("v"), 10), s)
	if resp.Err == "" {
		t.Fatal("expected an error for InsertE on a memory store")
	}
}
