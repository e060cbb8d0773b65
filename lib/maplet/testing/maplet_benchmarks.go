package testing

import (
	"fmt"
	"testing"

	"github.com/zeebo/pcg"
)

// RunMapletBenchmarks runs the engine benchmark suite.
func RunMapletBenchmarks(b *testing.B, name string, factory ConfigFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Insert", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 20
			cfg.AutoResize = false
			cfg.MaxLoadFactor = 1.0
			m := newCounter(b, cfg)
			defer m.Close()
			var rng pcg.T

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = m.Insert(fmt.Sprintf("bench-%d", rng.Uint64()), 1)
			}
		})

		b.Run("Query", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 16
			m := newCounter(b, cfg)
			defer m.Close()
			for i := 0; i < 40000; i++ {
				_ = m.Insert(fmt.Sprintf("bench-%d", i), 1)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Query(fmt.Sprintf("bench-%d", i%40000))
			}
		})

		b.Run("Contains(absent)", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 16
			m := newCounter(b, cfg)
			defer m.Close()
			for i := 0; i < 40000; i++ {
				_ = m.Insert(fmt.Sprintf("bench-%d", i), 1)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				m.Contains(fmt.Sprintf("absent-%d", i))
			}
		})

		b.Run("Delete", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 20
			cfg.AutoResize = false
			cfg.MaxLoadFactor = 1.0
			m := newCounter(b, cfg)
			defer m.Close()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := fmt.Sprintf("bench-%d", i)
				_ = m.Insert(key, 1)
				m.Delete(key, 1)
			}
		})

		b.Run("MixedUsage", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 16
			m := newCounter(b, cfg)
			defer m.Close()
			var rng pcg.T

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				key := fmt.Sprintf("bench-%d", rng.Uint32n(40000))
				switch i % 4 {
				case 0:
					_ = m.Insert(key, 1)
				case 1, 2:
					m.Query(key)
				case 3:
					m.Delete(key, 1)
				}
			}
		})

		b.Run("ConcurrentQuery", func(b *testing.B) {
			cfg := factory()
			cfg.Capacity = 1 << 16
			m := newCounter(b, cfg)
			defer m.Close()
			for i := 0; i < 40000; i++ {
				_ = m.Insert(fmt.Sprintf("bench-%d", i), 1)
			}

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				var rng pcg.T
				for pb.Next() {
					m.Query(fmt.Sprintf("bench-%d", rng.Uint32n(40000)))
				}
			})
		})
	})
}
