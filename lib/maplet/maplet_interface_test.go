package maplet_test

import (
	"testing"

	"github.com/ValentinKolb/mappy/lib/maplet"
	maplettesting "github.com/ValentinKolb/mappy/lib/maplet/testing"
)

// the full suite runs once per hasher family with a fixed seed, so the
// probabilistic assertions are deterministic
func Test(t *testing.T) {
	for _, family := range []maplet.HasherFamily{
		maplet.HasherXXHash,
		maplet.HasherFNV,
		maplet.HasherSHA256,
	} {
		maplettesting.RunMapletTests(t, string(family), func() *maplet.Config {
			cfg := maplet.DefaultConfig()
			cfg.HasherFamily = family
			cfg.HasherSeed = 0x6d6170706c6574 // fixed for reproducibility
			return cfg
		})
	}
}

func Benchmark(b *testing.B) {
	maplettesting.RunMapletBenchmarks(b, "Maplet", func() *maplet.Config {
		cfg := maplet.DefaultConfig()
		cfg.HasherSeed = 0x6d6170706c6574
		return cfg
	})
}
