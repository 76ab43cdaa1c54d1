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
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialer counts dial attempts and hands out mock clients.
type fakeDialer struct {
	dials    int
	timeouts []time.Duration
	err      error
	run      RunFunc
}

func (f *fakeDialer) dial(ctx context.Context, log logr.Logger, opts Options) (*Client, error) {
	f.dials++
	f.timeouts = append(f.timeouts, opts.Timeout)
	if f.err != nil {
		return nil, f.err
	}
	run := f.run
	if run == nil {
		run = func(ctx context.Context, command string) ([]byte, []byte, error) {
			return []byte(""), nil, nil
		}
	}
	return NewMockClient(opts.Host, run), nil
}

func TestCacheGet_ReusesCachedClient(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCacheWithDialer(dialer.dial)
	log := logr.Discard()
	opts := Options{Host: "192.0.2.10", User: "ec2-user", PrivateKeyPath: "/nonexistent"}

	first, err := cache.Get(context.Background(), log, opts)
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), log, opts)
	require.NoError(t, err)

	assert.Same(t, first, second, "second call must return the cached client")
	assert.Equal(t, 1, dialer.dials, "no second connection may be established")
}

func TestCacheGet_ClearForcesReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCacheWithDialer(dialer.dial)
	log := logr.Discard()
	opts := Options{Host: "192.0.2.10"}

	_, err := cache.Get(context.Background(), log, opts)
	require.NoError(t, err)

	cache.Clear(opts.Host)
	assert.Equal(t, 0, cache.Len())

	_, err = cache.Get(context.Background(), log, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.dials, "a cleared host dials again")
}

func TestCacheClear_UnknownHostIgnored(t *testing.T) {
	cache := NewCache()
	// Must not panic or create an entry.
	cache.Clear("198.51.100.7")
	assert.Equal(t, 0, cache.Len())
}

func TestCacheGet_RetryExhaustion(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	cache := NewCacheWithDialer(dialer.dial)

	_, err := cache.Get(context.Background(), logr.Discard(), Options{
		Host:     "192.0.2.10",
		Attempts: 3,
	})
	require.Error(t, err)

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "192.0.2.10", connErr.Host)
	assert.Equal(t, 3, connErr.Attempts)
	assert.Equal(t, 3, dialer.dials, "exactly attempts dials, no more, no fewer")
	assert.Equal(t, 0, cache.Len(), "nothing is cached on failure")
}

func TestCacheGet_TimeoutDoublesPerAttempt(t *testing.T) {
	dialer := &fakeDialer{err: errors.New("connection refused")}
	cache := NewCacheWithDialer(dialer.dial)

	_, err := cache.Get(context.Background(), logr.Discard(), Options{
		Host:     "192.0.2.10",
		Attempts: 3,
		Timeout:  10 * time.Second,
	})
	require.Error(t, err)
	assert.Equal(t, []time.Duration{
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
	}, dialer.timeouts)
}

func TestCacheGet_CanaryFailureRetries(t *testing.T) {
	// The connection opens but the shell never answers the canary.
	dialer := &fakeDialer{
		run: func(ctx context.Context, command string) ([]byte, []byte, error) {
			return nil, []byte("shell not ready"), nil
		},
	}
	cache := NewCacheWithDialer(dialer.dial)

	_, err := cache.Get(context.Background(), logr.Discard(), Options{
		Host:     "192.0.2.10",
		Attempts: 2,
	})
	require.Error(t, err)
	assert.Equal(t, 2, dialer.dials)
	assert.Equal(t, 0, cache.Len())
}

func TestCacheGet_CanarySucceedsOnLaterAttempt(t *testing.T) {
	attempts := 0
	dialer := &fakeDialer{}
	dialer.run = func(ctx context.Context, command string) ([]byte, []byte, error) {
		attempts++
		if attempts < 3 {
			return nil, []byte("still booting"), nil
		}
		return []byte(""), nil, nil
	}
	cache := NewCacheWithDialer(dialer.dial)

	client, err := cache.Get(context.Background(), logr.Discard(), Options{
		Host:     "192.0.2.10",
		Attempts: 5,
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, 3, dialer.dials)
	assert.Equal(t, 1, cache.Len())
}

func TestCacheGet_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dialer := &fakeDialer{err: errors.New("connection refused")}
	cache := NewCacheWithDialer(dialer.dial)

	_, err := cache.Get(ctx, logr.Discard(), Options{Host: "192.0.2.10"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, dialer.dials)
}

func TestCacheClearAll(t *testing.T) {
	dialer := &fakeDialer{}
	cache := NewCacheWithDialer(dialer.dial)
	log := logr.Discard()

	for _, host := range []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"} {
		_, err := cache.Get(context.Background(), log, Options{Host: host})
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	cache.ClearAll()
	assert.Equal(t, 0, cache.Len())
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{Host: "192.0.2.1"}.withDefaults()
	assert.Equal(t, 22, opts.Port)
	assert.Equal(t, 5, opts.Attempts)

	opts = Options{Host: "192.0.2.1", Port: 2222, Attempts: 1}.withDefaults()
	assert.Equal(t, 2222, opts.Port)
	assert.Equal(t, 1, opts.Attempts)
}
