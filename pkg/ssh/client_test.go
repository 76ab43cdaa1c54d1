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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRun_ReturnsStdout(t *testing.T) {
	client := NewMockClient("192.0.2.1", func(ctx context.Context, command string) ([]byte, []byte, error) {
		return []byte("bin\netc\n"), nil, nil
	})

	out, err := client.Run(context.Background(), "ls /")
	require.NoError(t, err)
	assert.Equal(t, []byte("bin\netc\n"), out)
}

func TestClientRun_StderrFailsCommand(t *testing.T) {
	client := NewMockClient("192.0.2.1", func(ctx context.Context, command string) ([]byte, []byte, error) {
		// Stdout is produced too, but stderr wins and no stdout leaks out.
		return []byte("partial output"), []byte("permission denied"), nil
	})

	out, err := client.Run(context.Background(), "cat /etc/shadow")
	require.Error(t, err)
	assert.Nil(t, out)

	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, []byte("permission denied"), cmdErr.Stderr)
	assert.Equal(t, "cat /etc/shadow", cmdErr.Command)
}

func TestClientRun_TransportErrorIsNotCommandError(t *testing.T) {
	transportErr := errors.New("connection lost")
	client := NewMockClient("192.0.2.1", func(ctx context.Context, command string) ([]byte, []byte, error) {
		return nil, nil, transportErr
	})

	_, err := client.Run(context.Background(), "true")
	require.Error(t, err)

	var cmdErr *CommandError
	assert.False(t, errors.As(err, &cmdErr), "transport failures are not command failures")
	assert.ErrorIs(t, err, transportErr)
}

func TestClientRun_StderrCheckedBeforeExitError(t *testing.T) {
	client := NewMockClient("192.0.2.1", func(ctx context.Context, command string) ([]byte, []byte, error) {
		return nil, []byte("assertion failed"), errors.New("exit status 1")
	})

	_, err := client.Run(context.Background(), "run-check")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, []byte("assertion failed"), cmdErr.Stderr)
}

func TestClientClose_WithoutConnection(t *testing.T) {
	client := NewMockClient("192.0.2.1", nil)
	assert.NoError(t, client.Close())
}
