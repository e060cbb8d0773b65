package maplet

import (
	"strconv"
	"testing"
)

func TestHasherDeterminism(t *testing.T) {
	for _, family := range []HasherFamily{HasherXXHash, HasherFNV, HasherSHA256} {
		h1, err := NewHasher(family, 42)
		if err != nil {
			t.Fatalf("%s: %v", family, err)
		}
		h2, _ := NewHasher(family, 42)

		for _, key := range []string{"", "a", "hello world", "ümlaut-π", "a slightly longer key with spaces"} {
			if h1.Fingerprint(key) != h2.Fingerprint(key) {
				t.Errorf("%s: fingerprints differ for fixed seed on %q", family, key)
			}
		}

		// a different seed must change the fingerprint of most keys
		h3, _ := NewHasher(family, 43)
		same := 0
		for i := 0; i < 100; i++ {
			key := string(rune('a'+i%26)) + "key"
			if h1.Fingerprint(key) == h3.Fingerprint(key) {
				same++
			}
		}
		if same > 2 {
			t.Errorf("%s: %d/100 fingerprints unchanged across seeds", family, same)
		}
	}
}

func TestHasherDistribution(t *testing.T) {
	// coarse uniformity check: bucket the top bits of many fingerprints
	// and require no bucket to be wildly over-populated
	for _, family := range []HasherFamily{HasherXXHash, HasherFNV, HasherSHA256} {
		h, err := NewHasher(family, 7)
		if err != nil {
			t.Fatalf("%s: %v", family, err)
		}

		const buckets = 64
		const samples = 64 * 1024
		counts := make([]int, buckets)
		for i := 0; i < samples; i++ {
			f := h.Fingerprint("distribution-key-" + strconv.Itoa(i))
			counts[f>>(64-6)]++
		}

		expected := samples / buckets
		for b, c := range counts {
			if c > expected*2 || c < expected/2 {
				t.Errorf("%s: bucket %d holds %d of %d samples (expected ~%d)", family, b, c, samples, expected)
			}
		}
	}
}

func TestHasherUnknownFamily(t *testing.T) {
	if _, err := NewHasher("fancy", 1); CodeOf(err) != RetCInvalidConfig {
		t.Errorf("unknown family = %v, expected InvalidConfig", err)
	}
}