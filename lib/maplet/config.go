package maplet

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/ValentinKolb/mappy/lib/maplet/internal"
	"github.com/ValentinKolb/mappy/lib/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DefaultMaxLoadFactor is the load bound at which an auto-resizing
	// engine doubles its capacity.
	DefaultMaxLoadFactor = 0.85
	// DefaultFalsePositiveRate is the nominal one-sided error rate.
	DefaultFalsePositiveRate = 0.01
	// DefaultCapacity is the initial slot count if none is configured.
	DefaultCapacity = 1024
)

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// Config configures a maplet engine during initialization. The zero value
// is not usable; start from DefaultConfig.
type Config struct {
	// Capacity is the initial slot-array size, rounded up to the next
	// power of two.
	Capacity uint64
	// FalsePositiveRate is the target one-sided error rate ε; it
	// determines the remainder bit-width (⌈log₂(1/ε)⌉, clamped).
	FalsePositiveRate float64
	// MaxLoadFactor is the populated-slots/capacity bound that triggers a
	// resize (or a CapacityExceeded error with AutoResize disabled).
	MaxLoadFactor float64
	// AutoResize enables doubling the capacity when the load bound is hit.
	AutoResize bool
	// EnableDeletion maintains the multiset counter needed for safe
	// deletes; disabling it saves the counter's memory.
	EnableDeletion bool
	// EnableMerging combines values on duplicate-slot inserts via the
	// merge operator; if false such inserts fail with AlreadyPresent.
	EnableMerging bool
	// EmitRecords turns on the mutation record stream consumed by
	// persistence collaborators (see Records).
	EmitRecords bool
	// HasherFamily selects the fingerprint hash family.
	HasherFamily HasherFamily
	// HasherSeed seeds the chosen family. Replay and snapshot restore
	// require the original seed.
	HasherSeed uint64
}

// DefaultConfig returns the default engine configuration with a fresh
// random hasher seed.
func DefaultConfig() *Config {
	return &Config{
		Capacity:          DefaultCapacity,
		FalsePositiveRate: DefaultFalsePositiveRate,
		MaxLoadFactor:     DefaultMaxLoadFactor,
		AutoResize:        true,
		EnableDeletion:    true,
		EnableMerging:     true,
		HasherFamily:      HasherXXHash,
		HasherSeed:        util.GenerateSeed(),
	}
}

// validate checks the configuration and derives the quotient/remainder
// widths. All violations are configuration errors raised at construction.
func (c *Config) validate() (qbits, rbits uint, err error) {
	if c.Capacity == 0 {
		return 0, 0, NewError(RetCInvalidConfig, "capacity must be positive")
	}
	if math.IsNaN(c.FalsePositiveRate) || c.FalsePositiveRate <= 0 || c.FalsePositiveRate >= 1 {
		return 0, 0, NewError(RetCInvalidConfig,
			fmt.Sprintf("false positive rate must be in (0, 1), got %v", c.FalsePositiveRate))
	}
	if math.IsNaN(c.MaxLoadFactor) || c.MaxLoadFactor <= 0 || c.MaxLoadFactor > 1 {
		return 0, 0, NewError(RetCInvalidConfig,
			fmt.Sprintf("max load factor must be in (0, 1], got %v", c.MaxLoadFactor))
	}

	qbits = quotientBitsFor(c.Capacity)
	if qbits > internal.MaxQuotientBits {
		return 0, 0, NewError(RetCInvalidConfig,
			fmt.Sprintf("capacity %d exceeds the supported maximum", c.Capacity))
	}

	// r = ⌈log₂(1/ε)⌉, clamped to the representable range
	rbits = uint(math.Ceil(math.Log2(1 / c.FalsePositiveRate)))
	if rbits < internal.MinRemainderBits {
		rbits = internal.MinRemainderBits
	}
	if rbits > internal.MaxRemainderBits {
		rbits = internal.MaxRemainderBits
	}

	return qbits, rbits, nil
}

// quotientBitsFor returns ⌈log₂ capacity⌉
func quotientBitsFor(capacity uint64) uint {
	if capacity <= 1 {
		return 0
	}
	return uint(bits.Len64(capacity - 1))
}
