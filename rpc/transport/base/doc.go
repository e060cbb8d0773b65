// Package base provides the shared implementation for the stream-oriented
// transports (tcp, unix). It contains the frame codec (shard id, request
// id, length-prefixed payload), a server loop with a per-connection worker
// semaphore and pooled read buffers, and a client with multiple
// round-robin connections, per-request response routing and retry with
// jittered exponential backoff.
//
// Concrete transports inject the connection establishment through the
// IServerConnector and IClientConnector interfaces.
package base
