package maplet

import (
	"github.com/ValentinKolb/mappy/lib/util"
)

// --------------------------------------------------------------------------
// Statistics
// --------------------------------------------------------------------------

// Stats is a point-in-time snapshot of engine statistics, taken under the
// read locks.
type Stats struct {
	// Capacity is the current slot-array size.
	Capacity uint64 `json:"capacity"`
	// PopulatedSlots counts slots holding an element.
	PopulatedSlots uint64 `json:"populated_slots"`
	// Len is the number of distinct live fingerprints.
	Len uint64 `json:"len"`
	// LoadFactor is PopulatedSlots / Capacity.
	LoadFactor float64 `json:"load_factor"`
	// QuotientBits and RemainderBits are the current fingerprint split.
	QuotientBits  uint `json:"quotient_bits"`
	RemainderBits uint `json:"remainder_bits"`
	// ConfiguredErrorRate is the ε the engine was built with.
	ConfiguredErrorRate float64 `json:"configured_error_rate"`
	// EffectiveErrorRate is 1/2^RemainderBits under the current split;
	// it degrades as resizes move bits from the remainder to the quotient.
	EffectiveErrorRate float64 `json:"effective_error_rate"`
	// Inserts counts insert operations over the engine's lifetime.
	Inserts uint64 `json:"inserts"`
	// Collisions counts inserts that landed on an already-populated slot
	// with an equal fingerprint (duplicate key or true collision).
	Collisions uint64 `json:"collisions"`
	// CollisionRate is Collisions / Inserts.
	CollisionRate float64 `json:"collision_rate"`
	// MemoryBytes approximates the footprint of filter plus value table.
	MemoryBytes int `json:"memory_bytes"`
	// ClusterDistribution describes the filter's cluster lengths; short,
	// uniform clusters mean probe paths stay cheap.
	ClusterDistribution util.DistributionStats `json:"cluster_distribution"`
}
