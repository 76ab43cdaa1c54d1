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

// Package retry provides bounded retry loops with backoff for transient
// failures, such as cloud API calls against an instance that has not
// reached its target state yet.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Config configures retry behavior.
type Config struct {
	// MaxRetries is the maximum number of attempts (default: 10)
	MaxRetries int

	// InitialDelay is the initial delay between retries (default: 5s)
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries (default: 60s)
	MaxDelay time.Duration

	// Multiplier is the backoff multiplier (default: 2.0). A multiplier
	// of 1.0 gives a fixed-interval poll.
	Multiplier float64
}

// DefaultConfig returns sensible defaults for retrying cloud API calls.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   10,
		InitialDelay: 5 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// PollConfig returns a fixed-interval configuration suited to waiting on
// instance state transitions: one probe every 10 seconds.
func PollConfig(maxRetries int) Config {
	return Config{
		MaxRetries:   maxRetries,
		InitialDelay: 10 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   1.0,
	}
}

// WithBackoff executes operation until it succeeds, the configured number
// of attempts is exhausted, or ctx is cancelled. Attempts are logged so a
// long wait is distinguishable from a hang.
func WithBackoff(
	ctx context.Context,
	config Config,
	log logr.Logger,
	operationName string,
	operation func() error,
) error {
	retryDelay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 1 {
				log.Info("operation succeeded after retries",
					"operation", operationName,
					"attempts", attempt)
			}
			return nil
		}

		log.Info("operation failed, will retry",
			"operation", operationName,
			"attempt", attempt,
			"max_retries", config.MaxRetries,
			"next_retry_delay", retryDelay,
			"error", err.Error())

		if attempt == config.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operationName, config.MaxRetries, err)
		}

		select {
		case <-time.After(retryDelay):
			retryDelay = time.Duration(float64(retryDelay) * config.Multiplier)
			if retryDelay > config.MaxDelay {
				retryDelay = config.MaxDelay
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts", operationName, config.MaxRetries)
}
