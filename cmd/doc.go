// Package cmd implements the mappy command line interface: the serve
// command starting an RPC server with one or more maplet shards, the kv
// client commands, and a perf subcommand for benchmarking a running
// server. Configuration flows through cobra flags, MAPPY_* environment
// variables and .env files.
package cmd
