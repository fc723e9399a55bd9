package sdk

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func benchBuffer() *AdBuffer {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewAdBuffer(time.Now, logger)
}

func BenchmarkAdBuffer_AddGet(b *testing.B) {
	buf := benchBuffer()
	expires := time.Now().Add(time.Hour)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Add(&Creative{
			Orientation: OrientationPortrait,
			AdType:      AdTypeInterstitial,
			URL:         fmt.Sprintf("https://cdn.test/%d", i),
			ExpiresAt:   expires,
		})
		buf.Get(OrientationPortrait, AdTypeInterstitial)
	}
}

func BenchmarkAdBuffer_CountParallel(b *testing.B) {
	buf := benchBuffer()
	expires := time.Now().Add(time.Hour)
	for i := 0; i < 100; i++ {
		buf.Add(&Creative{Orientation: OrientationPortrait, AdType: AdTypeBanner, URL: fmt.Sprintf("https://cdn.test/%d", i), ExpiresAt: expires})
	}

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			buf.Count(OrientationPortrait, AdTypeBanner)
		}
	})
}
