/*
Copyright 2024 MarketLens Inc

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mailgun/holster/v4/syncutil"
	"github.com/marketlens/quotegate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	log            *logrus.Logger
	endpoint       string
	metricsAddress string
	count          uint64
	concurrency    uint64
	timeout        time.Duration
	cacheTTL       time.Duration
	maxRequests    int
	window         time.Duration
	reqRate        float64
	quiet          bool
)

func main() {
	log = logrus.StandardLogger()
	flag.StringVar(&endpoint, "e", "", "HTTP endpoint to fetch")
	flag.StringVar(&metricsAddress, "metrics-address", "", "Serve prometheus metrics on this address while running")
	flag.Uint64Var(&count, "count", 1000, "Total fetches to perform (default 1000)")
	flag.Uint64Var(&concurrency, "concurrency", 1, "Concurrent threads (default 1)")
	flag.DurationVar(&timeout, "timeout", 100*time.Millisecond, "Request timeout (default 100ms)")
	flag.DurationVar(&cacheTTL, "ttl", 5*time.Minute, "Response cache TTL (default 5m)")
	flag.IntVar(&maxRequests, "limit", 30, "Max requests per window (default 30)")
	flag.DurationVar(&window, "window", time.Minute, "Sliding window duration (default 60s)")
	flag.Float64Var(&reqRate, "rate", 0, "Fetch generation rate overall, 0 = no pacing")
	flag.BoolVar(&quiet, "q", false, "Quiet logging")
	flag.Parse()

	if quiet {
		log.SetLevel(logrus.ErrorLevel)
	}

	if endpoint == "" {
		log.Fatal("please provide an endpoint via -e")
	}

	// Print startup message.
	cmdLine := strings.Join(os.Args[1:], " ")
	log.Info("Command line: " + cmdLine)

	ctx := context.Background()
	cache := quotegate.NewShardedCache[[]byte](0, 0)
	client := quotegate.NewClient(quotegate.ClientConfig{
		Cache:    cache,
		Limiter:  quotegate.NewRateLimiter(maxRequests, window),
		CacheTTL: cacheTTL,
	})

	if metricsAddress != "" {
		cacheCollector := quotegate.NewCacheCollector()
		cacheCollector.AddCache(cache)

		promRegister := prometheus.NewRegistry()
		promRegister.MustRegister(cacheCollector, quotegate.NewRateLimiterCollector())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.InstrumentMetricHandler(
			promRegister, promhttp.HandlerFor(promRegister, promhttp.HandlerOpts{}),
		))

		go func() {
			log.WithField("address", metricsAddress).Info("Serving metrics")
			if err := http.ListenAndServe(metricsAddress, mux); err != nil {
				log.WithError(err).Error("Error in metrics listener")
			}
		}()
	}

	var limiter *rate.Limiter
	if reqRate > 0 {
		log.WithField("reqRate", reqRate).Info("")
		limiter = rate.NewLimiter(rate.Limit(reqRate), 1)
	}

	var fetched, denied, failed uint64
	fan := syncutil.NewFanOut(int(concurrency))

	for i := uint64(0); i < count; i++ {
		fan.Run(func(obj interface{}) error {
			if limiter != nil {
				_ = limiter.Wait(ctx)
			}

			reqCtx, cancel := context.WithTimeout(ctx, timeout)
			_, err := client.Fetch(reqCtx, endpoint)
			cancel()

			var overLimit *quotegate.OverLimitError
			switch {
			case err == nil:
				atomic.AddUint64(&fetched, 1)
			case errors.As(err, &overLimit):
				atomic.AddUint64(&denied, 1)
				log.WithField("retryAfter", overLimit.RetryAfter).Debug("over the limit")
			default:
				atomic.AddUint64(&failed, 1)
				log.WithError(err).Error("Error in client.Fetch")
			}
			return nil
		}, i)
	}
	fan.Wait()

	log.WithFields(logrus.Fields{
		"fetched": atomic.LoadUint64(&fetched),
		"denied":  atomic.LoadUint64(&denied),
		"failed":  atomic.LoadUint64(&failed),
	}).Info("done")
}
