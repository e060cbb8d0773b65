// Package http provides the HTTP implementation of the RPC transport.
// Requests are POSTed to /{shardId} with the serialized message as body;
// the server additionally exposes Prometheus metrics under GET /metrics.
package http
