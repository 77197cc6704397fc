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

import "time"

// Cache is a store of values keyed by opaque strings, each with its own
// expiry. Callers are responsible for constructing collision free keys; see
// Key() for the conventional form.
type Cache[T any] interface {
	// Set creates or silently overwrites the entry under key. The value
	// expires `ttl` from now.
	Set(key string, value T, ttl time.Duration)
	// Get returns the value stored under key and true if the entry exists
	// and has not expired. An expired entry is removed before Get reports
	// the miss.
	Get(key string) (value T, ok bool)
	// Invalidate removes the entry if present; no-op when absent.
	Invalidate(key string)
	// Clear removes all entries.
	Clear()
	// Size returns the number of resident entries.
	Size() int64
}

type CacheItem[T any] struct {
	Key   string
	Value T

	// Timestamp when the entry was written, in epoch milliseconds.
	StoredAt int64
	// Timestamp when the entry expires, in epoch milliseconds. An expired
	// entry is only removed once a read finds it expired or the caller
	// invalidates it; there is no background sweep.
	ExpireAt int64
}
