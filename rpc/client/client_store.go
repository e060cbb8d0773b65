package client

import (
	"encoding/json"
	"io"

	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/rpc/common"
	"github.com/ValentinKolb/mappy/rpc/serializer"
	"github.com/ValentinKolb/mappy/rpc/transport"
)

// NewRPCStore creates a new RPC-backed store.
// The function takes a shard ID, a config, a transport and a serializer as
// parameters. It returns a store.IStore and an error.
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Insert(key string, value []byte) (err error) {
	req := common.NewInsertRequest(key, value)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) InsertE(key string, value []byte, expireIn uint64) (err error) {
	req := common.NewInsertERequest(key, value, expireIn)
	_, err = invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	return err
}

func (i *rpcStore) Query(key string) (value []byte, loaded bool, err error) {
	req := common.NewQueryRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

func (i *rpcStore) Contains(key string) (loaded bool, err error) {
	req := common.NewContainsRequest(key)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) Delete(key string, value []byte) (deleted bool, err error) {
	req := common.NewDeleteRequest(key, value)
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) GetInfo() (info store.StoreInfo, err error) {
	req := common.NewStatsRequest()
	resp, err := invokeRPCRequest(i.shardId, req, i.transport, i.serializer)
	if err != nil {
		return store.StoreInfo{}, err
	}

	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return store.StoreInfo{}, err
	}
	info.Impl = store.ImplRPC
	return info, nil
}

// Save is not implemented for the RPC client; persistence runs server-side
func (i *rpcStore) Save(w io.Writer) error {
	return store.NewError(store.RetCUnsupportedOperation, "Save is not supported by the rpc client")
}

// Load is not implemented for the RPC client; persistence runs server-side
func (i *rpcStore) Load(r io.Reader) error {
	return store.NewError(store.RetCUnsupportedOperation, "Load is not supported by the rpc client")
}

func (i *rpcStore) SupportsFeature(feature store.Feature) bool {
	supported := store.FeatureInsert |
		store.FeatureInsertE |
		store.FeatureQuery |
		store.FeatureContains |
		store.FeatureDelete |
		store.FeatureStats
	return supported&feature == feature
}

// Close shuts down the transport
func (i *rpcStore) Close() error {
	return i.transport.Close()
}
