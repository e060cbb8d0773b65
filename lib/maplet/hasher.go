package maplet

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/mappy/lib/util"
	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Hasher Families
// --------------------------------------------------------------------------

// HasherFamily selects the fingerprint hash function. The family is fixed
// for the lifetime of an engine; resize keeps it.
type HasherFamily string

const (
	// HasherXXHash is the fast general-purpose default (xxHash64).
	HasherXXHash HasherFamily = "xxhash"
	// HasherFNV is a simple non-cryptographic family (FNV-1a).
	HasherFNV HasherFamily = "fnv"
	// HasherSHA256 is a deterministic cryptographic-style family
	// (SHA-256 over seed‖key, truncated). Slower; useful when adversarial
	// key sets must not be able to engineer collisions.
	HasherSHA256 HasherFamily = "sha256"
)

// Hasher derives a 64-bit fingerprint from a key. Implementations must be
// deterministic for a fixed seed and approximately uniform over the output
// range, otherwise the ε guarantee does not hold. The engine truncates the
// result to its fingerprint width.
type Hasher interface {
	// Fingerprint hashes a key to 64 bits.
	Fingerprint(key string) uint64
	// Family returns the hasher family identifier.
	Family() HasherFamily
	// Seed returns the seed the hasher was created with.
	Seed() uint64
}

// NewHasher creates a hasher of the given family.
func NewHasher(family HasherFamily, seed uint64) (Hasher, error) {
	switch family {
	case HasherXXHash, "":
		return &xxHasher{seed: seed}, nil
	case HasherFNV:
		return &fnvHasher{seed: seed}, nil
	case HasherSHA256:
		return &shaHasher{seed: seed}, nil
	default:
		return nil, NewError(RetCInvalidConfig, fmt.Sprintf("unknown hasher family %q", family))
	}
}

// --------------------------------------------------------------------------
// Implementations
// --------------------------------------------------------------------------

type xxHasher struct{ seed uint64 }

func (h *xxHasher) Fingerprint(key string) uint64 {
	// xxHash64 followed by a seed-dependent finalizer; the multiply-xor
	// steps keep the high bits (used as the quotient) well mixed
	v := xxhash.Sum64String(key) ^ h.seed
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return v
}

func (h *xxHasher) Family() HasherFamily { return HasherXXHash }
func (h *xxHasher) Seed() uint64         { return h.seed }

type fnvHasher struct{ seed uint64 }

func (h *fnvHasher) Fingerprint(key string) uint64 {
	// seeded FNV-1a followed by the same finalizer as the xxhash family;
	// plain FNV-1a spreads the high bits (used as the quotient) unevenly
	// over similar keys
	v := util.HashString(key, h.seed)
	v ^= v >> 33
	v *= 0xff51afd7ed558ccd
	v ^= v >> 33
	return v
}

func (h *fnvHasher) Family() HasherFamily { return HasherFNV }
func (h *fnvHasher) Seed() uint64         { return h.seed }

type shaHasher struct{ seed uint64 }

func (h *shaHasher) Fingerprint(key string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], h.seed)
	d := sha256.New()
	d.Write(buf[:])
	d.Write([]byte(key))
	var sum [sha256.Size]byte
	d.Sum(sum[:0])
	return binary.LittleEndian.Uint64(sum[:8])
}

func (h *shaHasher) Family() HasherFamily { return HasherSHA256 }
func (h *shaHasher) Seed() uint64         { return h.seed }
