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

// Package ssh establishes and caches SSH connections to instances under
// test and runs commands over them.
//
// Connections tolerate an instance whose SSH daemon is still coming up:
// Connect retries with a fixed delay, and Cache.Get validates every fresh
// connection with a canary command before handing it out.
package ssh

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// CommandError reports a remote command that wrote to standard error.
// A failing command is a test result, not infrastructure flakiness, so it
// is surfaced immediately and never retried.
type CommandError struct {
	// Command is the remote command that failed.
	Command string

	// Stderr is the complete standard error output of the command.
	Stderr []byte
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %q wrote to stderr: %s", e.Command, bytes.TrimSpace(e.Stderr))
}

// RunFunc executes a command on a remote host and returns its separated
// output streams. It is the transport seam of Client: production clients
// run commands over an SSH session, mock clients substitute their own
// function.
type RunFunc func(ctx context.Context, command string) (stdout, stderr []byte, err error)

// Client wraps a single authenticated SSH connection to one host.
//
// A client owns one transport-layer connection and runs one command at a
// time: sequential Run calls execute in submission order, and concurrent
// calls on the same client are not supported.
type Client struct {
	host string
	cl   *ssh.Client
	run  RunFunc
}

func newClient(host string, cl *ssh.Client) *Client {
	c := &Client{host: host, cl: cl}
	c.run = c.sessionRun
	return c
}

// NewMockClient returns a Client backed by run instead of a live SSH
// connection. Used by tests of components that consume clients.
func NewMockClient(host string, run RunFunc) *Client {
	return &Client{host: host, run: run}
}

// Host returns the address this client is connected to.
func (c *Client) Host() string {
	return c.host
}

// Run executes command on the remote host and returns its standard output.
//
// Standard error is inspected first: any error output fails the call with
// a *CommandError carrying that output, and no stdout is returned. There
// is no per-command timeout; a hung remote command blocks until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context, command string) ([]byte, error) {
	stdout, stderr, err := c.run(ctx, command)
	if len(stderr) > 0 {
		return nil, &CommandError{Command: command, Stderr: stderr}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute %q on %s: %w", command, c.host, err)
	}
	return stdout, nil
}

// sessionRun executes command over a fresh SSH session and collects both
// output streams in full.
func (c *Client) sessionRun(ctx context.Context, command string) (stdout, stderr []byte, err error) {
	session, err := c.cl.NewSession()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open session on %s: %w", c.host, err)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err := <-done:
		return outBuf.Bytes(), errBuf.Bytes(), err
	case <-ctx.Done():
		// Closing the session unblocks the remote command.
		session.Close()
		return nil, nil, ctx.Err()
	}
}

// Close tears down the underlying SSH connection.
func (c *Client) Close() error {
	if c.cl == nil {
		return nil
	}
	return c.cl.Close()
}
