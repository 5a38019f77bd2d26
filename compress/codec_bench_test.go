package compress

import (
	"fmt"
	"testing"
)

func BenchmarkCodec_Compress(b *testing.B) {
	benchSizes := []int{1024, 4096, 16384, 65536}

	for _, v := range Versions() {
		codec, err := GetCompressor(v)
		if err != nil {
			b.Fatal(err)
		}

		for _, size := range benchSizes {
			data := generateTestData(size, "repetitive")

			b.Run(fmt.Sprintf("%s/%dKB", v, size/1024), func(b *testing.B) {
				b.SetBytes(int64(size))
				b.ReportAllocs()
				b.ResetTimer()

				for b.Loop() {
					if _, err := codec.Compress(data); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}

func BenchmarkCodec_Decompress(b *testing.B) {
	const size = 16384

	for _, v := range Versions() {
		codec, err := GetCompressor(v)
		if err != nil {
			b.Fatal(err)
		}
		compressed, err := codec.Compress(generateTestData(size, "repetitive"))
		if err != nil {
			b.Fatal(err)
		}

		b.Run(v.String(), func(b *testing.B) {
			b.SetBytes(size)
			b.ReportAllocs()
			b.ResetTimer()

			for b.Loop() {
				if _, err := codec.Decompress(compressed); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
