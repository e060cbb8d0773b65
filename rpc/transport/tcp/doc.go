// Package tcp provides the TCP implementation of the RPC transport, built
// on the shared frame protocol in the base package. The client side
// supports Nagle, buffer sizing, keep-alive and linger tuning through the
// client configuration.
package tcp
