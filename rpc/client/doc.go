// Package client implements the RPC client side of the mappy system: a
// store.IStore backed by a remote shard, reachable over any transport and
// serializer combination. Applications use the returned store exactly like
// a local one; Save/Load stay server-side.
package client
