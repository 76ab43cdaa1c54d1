// Copyright 2025 img-proof Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ssh

import (
	"context"
	"sync"

	"github.com/go-logr/logr"
)

// canaryCommand is a trivial remote command run against every freshly
// established connection to confirm the shell actually responds before the
// client is cached.
const canaryCommand = "ls"

// DialFunc establishes a connection to a host. Production caches use
// Connect; tests substitute their own function.
type DialFunc func(ctx context.Context, log logr.Logger, opts Options) (*Client, error)

// Cache holds at most one live Client per host address so that repeated
// test invocations against the same instance reuse the connection.
//
// A cache is an explicitly constructed, owned object: create one per test
// run and pass it to whoever needs connections. Mutation is guarded by a
// mutex so a cache shared across concurrent runs stays consistent; the
// clients it hands out still run one command at a time each.
type Cache struct {
	mu      sync.Mutex
	clients map[string]*Client
	dial    DialFunc
}

// NewCache returns an empty connection cache dialing through Connect.
func NewCache() *Cache {
	return NewCacheWithDialer(Connect)
}

// NewCacheWithDialer returns an empty connection cache using dial to
// establish connections. Used by tests to substitute the SSH transport.
func NewCacheWithDialer(dial DialFunc) *Cache {
	return &Cache{
		clients: make(map[string]*Client),
		dial:    dial,
	}
}

// Get returns a validated client for the host in opts.
//
// A cached client is returned as-is without a liveness probe; reuse is
// optimistic, and Clear is the remedy once an instance was stopped or
// replaced behind the cache's back.
//
// Otherwise up to opts.Attempts connections are established and validated
// with a canary command. Any failure closes the partial client, doubles
// the per-attempt timeout and tries again. The first client that answers
// the canary is cached and returned; exhaustion fails with the
// *ConnectionError of the last attempt.
func (c *Cache) Get(ctx context.Context, log logr.Logger, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	c.mu.Lock()
	if client, ok := c.clients[opts.Host]; ok {
		c.mu.Unlock()
		return client, nil
	}
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		client, err := c.dial(ctx, log, opts)
		if err == nil {
			_, err = client.Run(ctx, canaryCommand)
			if err == nil {
				c.mu.Lock()
				c.clients[opts.Host] = client
				c.mu.Unlock()
				return client, nil
			}
			client.Close()
		}

		lastErr = err
		log.Info("SSH connection validation failed",
			"host", opts.Host,
			"attempt", attempt,
			"max_attempts", opts.Attempts,
			"next_timeout", opts.Timeout*2,
			"error", err.Error())

		// A longer timeout for the next round; the retry delay inside the
		// dialer stays fixed.
		opts.Timeout *= 2
	}

	if connErr, ok := lastErr.(*ConnectionError); ok {
		return nil, connErr
	}
	return nil, &ConnectionError{Host: opts.Host, Attempts: opts.Attempts, Cause: lastErr}
}

// Clear removes and closes the cached client for host. A host without an
// entry is ignored.
func (c *Cache) Clear(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[host]; ok {
		client.Close()
		delete(c.clients, host)
	}
}

// ClearAll removes and closes every cached client.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for host, client := range c.clients {
		client.Close()
		delete(c.clients, host)
	}
}

// Len returns the number of cached clients.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
