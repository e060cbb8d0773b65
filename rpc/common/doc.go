// Package common provides core data structures and utilities shared across
// the mappy RPC system. It defines fundamental types, configuration
// structures, and protocol elements used by other packages.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Custom logging implementation behind the shared logger registry
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication between
//     components, with a flexible structure that adapts to different
//     operation types. Includes factory methods for creating the various
//     request and response messages.
//
//   - MessageType: Enumeration defining all supported operation types,
//     categorized into maplet store operations and control messages.
//
//   - ServerConfig: Configuration for server processes, including shard
//     layout, engine parameters, persistence settings and network
//     configuration.
//
//   - ClientConfig: Configuration for client components, controlling
//     connection parameters, timeouts, and retry behavior.
//
//   - Logger: Custom logging implementation registered with the shared
//     logger registry, providing consistent formatting across the
//     application.
package common
