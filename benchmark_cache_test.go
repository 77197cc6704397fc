package quotegate_test

import (
	"strconv"
	"sync"
	"testing"

	"github.com/mailgun/holster/v4/clock"
	"github.com/marketlens/quotegate"
)

func BenchmarkCache(b *testing.B) {
	testCases := []struct {
		Name         string
		NewTestCache func() quotegate.Cache[int]
	}{
		{
			Name: "TTLCache",
			NewTestCache: func() quotegate.Cache[int] {
				return quotegate.NewTTLCache[int](0)
			},
		},
		{
			Name: "ShardedCache",
			NewTestCache: func() quotegate.Cache[int] {
				return quotegate.NewShardedCache[int](0, 0)
			},
		},
	}

	for _, testCase := range testCases {
		b.Run(testCase.Name, func(b *testing.B) {
			b.Run("Sequential reads", func(b *testing.B) {
				cache := testCase.NewTestCache()

				for i := 0; i < b.N; i++ {
					cache.Set(strconv.Itoa(i), i, clock.Hour)
				}

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					_, _ = cache.Get(strconv.Itoa(i))
				}
			})

			b.Run("Sequential writes", func(b *testing.B) {
				cache := testCase.NewTestCache()

				b.ReportAllocs()
				b.ResetTimer()

				for i := 0; i < b.N; i++ {
					cache.Set(strconv.Itoa(i), i, clock.Hour)
				}
			})

			b.Run("Concurrent reads", func(b *testing.B) {
				const concurrency = 8
				cache := testCase.NewTestCache()

				for i := 0; i < b.N; i++ {
					cache.Set(strconv.Itoa(i), i, clock.Hour)
				}

				var wg sync.WaitGroup
				b.ReportAllocs()
				b.ResetTimer()

				for thread := 0; thread < concurrency; thread++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for i := 0; i < b.N; i++ {
							_, _ = cache.Get(strconv.Itoa(i))
						}
					}()
				}
				wg.Wait()
			})
		})
	}
}

func BenchmarkRateLimiter(b *testing.B) {
	b.Run("TryAcquire", func(b *testing.B) {
		limiter := quotegate.NewRateLimiter(b.N+1, clock.Hour)

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			limiter.TryAcquire()
		}
	})

	b.Run("CanRequest", func(b *testing.B) {
		limiter := quotegate.NewRateLimiter(100, clock.Second)

		b.ReportAllocs()
		b.ResetTimer()

		for i := 0; i < b.N; i++ {
			limiter.CanRequest()
		}
	})
}
