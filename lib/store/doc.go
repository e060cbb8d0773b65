// Package store defines the generic interface for byte-valued approximate
// key-value stores built on the maplet engine, together with the feature
// flags implementations advertise and the error type all of them share.
//
// Implementations live in sub-packages: lstore (in-memory engine), tstore
// (TTL decorator) and pstore (append-only-log persistence).
package store
