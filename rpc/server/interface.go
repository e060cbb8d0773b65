package server

import (
	"github.com/ValentinKolb/mappy/lib/store"
	"github.com/ValentinKolb/mappy/rpc/common"
)

// IRPCServerAdapter translates wire messages into store operations.
// Adapters are stateless; one instance serves all requests of a shard.
type IRPCServerAdapter interface {
	// Handle processes a request message against the shard's store and
	// returns the response message
	Handle(req *common.Message, store store.IStore) (resp *common.Message)
}
