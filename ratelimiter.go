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

package quotegate

import (
	"sync"
	"time"

	"github.com/mailgun/holster/v4/clock"
	"github.com/mailgun/holster/v4/setter"
	"github.com/prometheus/client_golang/prometheus"
)

// RateLimiter answers whether a new request is currently permitted under a
// sliding window policy of at most `maxRequests` requests per `window`.
// Timestamps of recorded requests are pruned lazily whenever an answer is
// computed; there is no background timer and no queueing of denied
// requests. Callers that want to wait must back off themselves using
// TimeUntilNext().
//
// CanRequest and Record are deliberately separate so admission can be
// inspected without a recording side effect. Concurrent callers should use
// TryAcquire, which performs the check and the record under one lock.
type RateLimiter struct {
	mu          sync.Mutex
	requests    []int64
	maxRequests int
	window      time.Duration
}

var limiterCheckMetric = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "quotegate_limiter_check_count",
	Help: "Admission check counts.  Label \"status\" = granted|denied.",
}, []string{"status"})

// Prometheus metrics collector for RateLimiter admission checks.
type RateLimiterCollector struct{}

var _ prometheus.Collector = &RateLimiterCollector{}

func NewRateLimiterCollector() *RateLimiterCollector {
	return &RateLimiterCollector{}
}

// Describe fetches prometheus metrics to be registered
func (collector *RateLimiterCollector) Describe(ch chan<- *prometheus.Desc) {
	limiterCheckMetric.Describe(ch)
}

// Collect fetches metric counts from the limiter
func (collector *RateLimiterCollector) Collect(ch chan<- prometheus.Metric) {
	limiterCheckMetric.Collect(ch)
}

// NewRateLimiter creates a limiter permitting at most `maxRequests` requests
// within any `window` of time. Both are fixed for the life of the limiter;
// zero values fall back to 30 requests per 60 second window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	setter.SetDefault(&maxRequests, 30)
	setter.SetDefault(&window, 60*clock.Second)

	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
	}
}

// CanRequest reports whether a new request is permitted right now. It never
// records anything; calling it repeatedly without Record() does not change
// the answer beyond the passage of time.
func (r *RateLimiter) CanRequest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(MillisecondNow())
	ok := len(r.requests) < r.maxRequests
	if ok {
		limiterCheckMetric.WithLabelValues("granted").Add(1)
	} else {
		limiterCheckMetric.WithLabelValues("denied").Add(1)
	}
	return ok
}

// Record appends the current timestamp to the request log unconditionally.
// It does not enforce capacity; callers are expected to call CanRequest()
// first and only Record() when admission was granted.
func (r *RateLimiter) Record() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requests = append(r.requests, MillisecondNow())
}

// TryAcquire performs the admission check and, when granted, records the
// request under a single lock. Denied requests record nothing.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := MillisecondNow()
	r.prune(now)
	if len(r.requests) >= r.maxRequests {
		limiterCheckMetric.WithLabelValues("denied").Add(1)
		return false
	}

	limiterCheckMetric.WithLabelValues("granted").Add(1)
	r.requests = append(r.requests, now)
	return true
}

// TimeUntilNext returns zero when a new request is currently permitted.
// Otherwise it returns the time remaining until the oldest recorded request
// ages out of the window and frees exactly one slot.
func (r *RateLimiter) TimeUntilNext() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := MillisecondNow()
	r.prune(now)
	if len(r.requests) < r.maxRequests {
		return 0
	}

	oldest := r.requests[0]
	return r.window - time.Duration(now-oldest)*clock.Millisecond
}

// Remaining returns how many more requests may be recorded within the
// current window.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(MillisecondNow())
	return r.maxRequests - len(r.requests)
}

// prune discards every recorded timestamp that has aged out of the sliding
// window. Callers must hold the lock. The log is ordered oldest first, so
// the survivors are a suffix.
func (r *RateLimiter) prune(now int64) {
	cutoff := now - r.window.Milliseconds()

	var idx int
	for ; idx < len(r.requests); idx++ {
		if r.requests[idx] > cutoff {
			break
		}
	}
	if idx != 0 {
		r.requests = append(r.requests[:0], r.requests[idx:]...)
	}
}
