// Package server implements the RPC server for the mappy system. It
// provides the adapter translating wire messages into store operations,
// along with the core server implementation that manages shards and
// request routing.
//
// The package focuses on:
//   - Server-side RPC request handling for maplet store operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Flexible shard configuration: memory, persistent, with or without a
//     TTL decorator - each shard an independent engine
//   - Per-shard, per-operation request metrics
//
// Key Components:
//
//   - rpcServer: Core server managing the shard map and wiring the
//     registered transport to the serializer and adapters.
//
//   - IRPCServerAdapter / storeServerAdapterImpl: Request dispatch from
//     Message values onto the store.IStore interface.
package server
