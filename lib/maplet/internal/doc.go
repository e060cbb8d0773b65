// Package internal implements the quotient filter backing the maplet
// engine: a packed slot array holding r-bit remainders plus three metadata
// bits per slot (occupied, run-end, shifted), and the run/cluster
// algorithms for insert, lookup, delete and iteration.
//
// The filter works purely on fingerprints. Values live outside the package
// and follow slot movements through the ValueStore interface, so the
// engine can keep filter slots and value slots aligned under one lock.
package internal
