// Package unix provides the Unix domain socket implementation of the RPC
// transport, built on the shared frame protocol in the base package. It is
// the lowest-latency option for clients on the same host.
package unix
