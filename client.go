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
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mailgun/holster/v4/clock"
	"github.com/mailgun/holster/v4/setter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type ClientConfig struct {
	// Cache holds response bodies between fetches. Defaults to an unbounded
	// TTLCache; pass a ShardedCache for heavily concurrent callers.
	Cache Cache[[]byte]

	// Limiter gates outbound requests. Defaults to 30 requests per 60
	// second window.
	Limiter *RateLimiter

	// HTTPClient issues the actual requests. Defaults to a client whose
	// transport is wrapped with otelhttp.
	HTTPClient *http.Client

	// Logger used by the client. Defaults to `logrus.WithField("category", "quotegate")`
	Logger logrus.FieldLogger

	// CacheTTL is applied to every stored response. Defaults to 5 minutes.
	CacheTTL time.Duration

	// UserAgent is sent with every request when set.
	UserAgent string
}

// Client fetches HTTP resources through the cache and the rate limiter.
// A fetch first consults the cache, then asks the limiter for admission,
// and only then touches the network; successful response bodies are stored
// with the configured TTL.
type Client struct {
	conf ClientConfig
	log  logrus.FieldLogger
}

func NewClient(conf ClientConfig) *Client {
	setter.SetDefault(&conf.Cache, Cache[[]byte](NewTTLCache[[]byte](0)))
	setter.SetDefault(&conf.Limiter, NewRateLimiter(0, 0))
	setter.SetDefault(&conf.HTTPClient, &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	})
	setter.SetDefault(&conf.Logger, logrus.WithField("category", "quotegate"))
	setter.SetDefault(&conf.CacheTTL, 5*clock.Minute)

	return &Client{
		conf: conf,
		log:  conf.Logger,
	}
}

// Fetch returns the body of a GET on `url`, serving from the cache when a
// fresh copy exists. A cache hit consumes no limiter capacity. When the
// limiter denies admission no request is issued and Fetch returns
// OverLimitError with the time until a slot frees. Non 2xx responses are
// returned as errors and are not cached.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	if body, ok := c.conf.Cache.Get(url); ok {
		c.log.WithField("key", url).Debug("cache hit")
		return body, nil
	}

	if !c.conf.Limiter.TryAcquire() {
		retryAfter := c.conf.Limiter.TimeUntilNext()
		c.log.WithField("retryAfter", retryAfter).Debug("request denied")
		return nil, &OverLimitError{RetryAfter: retryAfter}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "while creating request")
	}
	if c.conf.UserAgent != "" {
		req.Header.Set("User-Agent", c.conf.UserAgent)
	}

	resp, err := c.conf.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "while fetching '%s'", url)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading response from '%s'", url)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("'%s' returned status '%s'", url, resp.Status)
	}

	c.conf.Cache.Set(url, body, c.conf.CacheTTL)
	return body, nil
}

// Invalidate drops any cached copy of `url` so the next Fetch goes to the
// network.
func (c *Client) Invalidate(url string) {
	c.conf.Cache.Invalidate(url)
}

// Wait blocks until the limiter reports a free slot or the context is
// canceled. The limiter itself never sleeps; the waiting happens here, on
// the caller's side.
func (c *Client) Wait(ctx context.Context) error {
	for {
		wait := c.conf.Limiter.TimeUntilNext()
		if wait == 0 {
			return nil
		}

		select {
		case <-clock.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Key builds a cache key from an endpoint name and its parameters, e.g.
// Key("quote", "AAPL") returns "quote_AAPL". Keys are opaque to the cache;
// callers only need them to be collision free.
func Key(endpoint string, parts ...string) string {
	var b strings.Builder
	b.WriteString(endpoint)
	for _, p := range parts {
		b.WriteByte('_')
		b.WriteString(p)
	}
	return b.String()
}
