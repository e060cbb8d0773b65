package serializer

import (
	"testing"

	"github.com/ValentinKolb/mappy/rpc/common"
)

// benchmark a realistic mid-size message across all serializers
func BenchmarkSerializers(b *testing.B) {
	msg := common.Message{
		MsgType: common.MsgTKVQuery,
		Key:     "benchmark-key-with-realistic-length",
		Value:   make([]byte, 512),
		Ok:      true,
	}

	for name, factory := range testSerializers {
		s := factory()

		b.Run(name+"/Serialize", func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := s.Serialize(msg); err != nil {
					b.Fatal(err)
				}
			}
		})

		data, err := s.Serialize(msg)
		if err != nil {
			b.Fatal(err)
		}

		b.Run(name+"/Deserialize", func(b *testing.B) {
			b.ReportAllocs()
			var out common.Message
			for i := 0; i < b.N; i++ {
				if err := s.Deserialize(data, &out); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
