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
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
)

const (
	defaultPort     = 22
	defaultAttempts = 5

	// retryDelay is the fixed wait between connection attempts, sized for
	// an instance that is still booting its SSH daemon.
	retryDelay = 10 * time.Second
)

// ConnectionError reports that no SSH connection could be established
// within the allowed number of attempts. All underlying causes (refused,
// unreachable, timeout, authentication) are treated alike; the last one is
// kept for diagnostics.
type ConnectionError struct {
	Host     string
	Attempts int
	Cause    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to establish SSH connection to %s after %d attempts: %v",
		e.Host, e.Attempts, e.Cause)
}

func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// Options describes how to reach and authenticate against a host.
type Options struct {
	// Host is the instance address (IP or hostname).
	Host string

	// User is the remote login name.
	User string

	// Port is the SSH port. Defaults to 22.
	Port int

	// PrivateKeyPath points to an unencrypted private key file.
	PrivateKeyPath string

	// Attempts is the number of connection attempts before giving up.
	// Defaults to 5.
	Attempts int

	// Timeout bounds each individual connection attempt. Zero means no
	// per-attempt timeout.
	Timeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = defaultPort
	}
	if o.Attempts == 0 {
		o.Attempts = defaultAttempts
	}
	return o
}

// loadPrivateKey reads and parses an unencrypted private SSH key.
func loadPrivateKey(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
	}
	return signer, nil
}

// Connect establishes an SSH connection to the host described in opts.
//
// Each failed attempt is logged and followed by a fixed 10 second delay
// before the next one, so an instance that is still booting gets time to
// bring SSH up. After the final attempt the call fails with a
// *ConnectionError naming the host and attempt count. The caller owns the
// returned client and must Close it.
func Connect(ctx context.Context, log logr.Logger, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	// A missing or malformed key file will not improve with retries.
	signer, err := loadPrivateKey(opts.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	cfg := &ssh.ClientConfig{
		User:            opts.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		Timeout:         opts.Timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	return dialWithRetry(ctx, log, opts, func() (*ssh.Client, error) {
		return ssh.Dial("tcp", addr, cfg)
	}, retryDelay)
}

// dialWithRetry runs the attempt loop of Connect: one dial per attempt
// with a fixed delay between attempts and no delay after the last one.
// Exhaustion fails with a *ConnectionError carrying the last cause.
func dialWithRetry(ctx context.Context, log logr.Logger, opts Options,
	dial func() (*ssh.Client, error), delay time.Duration) (*Client, error) {
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		cl, err := dial()
		if err == nil {
			log.Info("SSH connection established", "host", opts.Host, "attempt", attempt)
			return newClient(opts.Host, cl), nil
		}

		lastErr = err
		log.Info("SSH connection attempt failed, retrying",
			"host", opts.Host,
			"attempt", attempt,
			"max_attempts", opts.Attempts,
			"error", err.Error())

		if attempt < opts.Attempts {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, &ConnectionError{Host: opts.Host, Attempts: opts.Attempts, Cause: lastErr}
}
