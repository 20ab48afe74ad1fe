package rest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	portalpay "github.com/portalpay/portalpay"
)

// replayCache provides idempotency for the pay endpoint by caching executed
// payment responses and tracking in-flight requests. A client retrying after
// a timeout replays the cached response instead of re-running the payment.
type replayCache struct {
	mu       sync.Mutex
	results  map[string]*portalpay.MakePaymentResponse
	expiry   map[string]time.Time
	inFlight map[string]chan struct{}
	ttl      time.Duration
}

func newReplayCache(ttl time.Duration) *replayCache {
	return &replayCache{
		results:  make(map[string]*portalpay.MakePaymentResponse),
		expiry:   make(map[string]time.Time),
		inFlight: make(map[string]chan struct{}),
		ttl:      ttl,
	}
}

// replayKey derives the cache key from the raw request body. Identical
// retries hash to the same key.
func replayKey(body []byte) string {
	hash := sha256.Sum256(body)
	return hex.EncodeToString(hash[:])
}

// replayStatus is the result of checking the cache
type replayStatus int

const (
	// replayNotFound means no cached result and no in-flight request
	replayNotFound replayStatus = iota
	// replayCached means a cached result was found
	replayCached
	// replayInFlight means another request is currently executing this payment
	replayInFlight
)

// checkAndMark atomically checks the cache and marks the key as in-flight if
// this request should proceed.
func (c *replayCache) checkAndMark(key string) (replayStatus, *portalpay.MakePaymentResponse, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if expiry, exists := c.expiry[key]; exists {
		if time.Now().Before(expiry) {
			if result, ok := c.results[key]; ok {
				return replayCached, result, nil
			}
		}
		// Expired - clean it up
		delete(c.results, key)
		delete(c.expiry, key)
	}

	if done, exists := c.inFlight[key]; exists {
		return replayInFlight, nil, done
	}

	done := make(chan struct{})
	c.inFlight[key] = done
	return replayNotFound, nil, done
}

// waitForResult waits for an in-flight request to finish, respecting context
// cancellation. A nil result means the in-flight request failed and the
// caller may retry.
func (c *replayCache) waitForResult(ctx context.Context, key string, done chan struct{}) (*portalpay.MakePaymentResponse, error) {
	select {
	case <-done:
		return c.get(key), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *replayCache) get(key string) *portalpay.MakePaymentResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, exists := c.expiry[key]
	if !exists {
		return nil
	}
	if time.Now().After(expiry) {
		delete(c.results, key)
		delete(c.expiry, key)
		return nil
	}
	return c.results[key]
}

// complete caches the response, clears the in-flight marker and wakes waiters
func (c *replayCache) complete(key string, response *portalpay.MakePaymentResponse, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.results[key] = response
	c.expiry[key] = time.Now().Add(c.ttl)
	delete(c.inFlight, key)
	close(done)

	c.cleanupExpiredLocked()
}

// fail clears the in-flight marker without caching, allowing a retry
func (c *replayCache) fail(key string, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.inFlight, key)
	close(done)
}

// cleanupExpiredLocked removes expired entries. Must be called with lock held.
func (c *replayCache) cleanupExpiredLocked() {
	now := time.Now()
	for key, expiry := range c.expiry {
		if now.After(expiry) {
			delete(c.results, key)
			delete(c.expiry, key)
		}
	}
}
