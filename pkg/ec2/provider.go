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

// Package ec2 provides the instance lifecycle operations consumed by the
// test runner, implemented against AWS EC2.
//
// The Provider interface is deliberately narrow: the runner only needs to
// look up, launch, start, stop and terminate single instances and poll
// their state. Provider errors are opaque to callers.
package ec2

import (
	"context"

	"github.com/go-logr/logr"

	"github.com/grisu48/img-proof/internal/retry"
)

// Instance state names as reported by EC2.
const (
	StateRunning    = "running"
	StateStopped    = "stopped"
	StateTerminated = "terminated"
)

// Instance is a provider-neutral view of a compute instance.
type Instance struct {
	// ID is the provider-assigned instance identifier.
	ID string

	// State is the current lifecycle state (pending, running, stopped, ...).
	State string

	// PublicIP is the public address of the instance, empty until one is
	// assigned.
	PublicIP string

	// ImageID is the image the instance was launched from.
	ImageID string

	// Type is the instance size/type name.
	Type string
}

// LaunchSpec describes an instance to launch.
type LaunchSpec struct {
	// ImageID is the image to launch from.
	ImageID string

	// InstanceType is the instance size. Defaults to t2.micro.
	InstanceType string

	// KeyName is the name of the SSH key pair registered with the
	// provider, injected into the instance at boot.
	KeyName string
}

// Provider is the cloud-side collaborator of a test run.
type Provider interface {
	// GetInstance returns the instance with the given ID.
	GetInstance(ctx context.Context, id string) (*Instance, error)

	// GetState returns the current state of the instance.
	GetState(ctx context.Context, id string) (string, error)

	// Launch creates a new instance and returns it. The returned instance
	// may still be in a pending state.
	Launch(ctx context.Context, spec LaunchSpec) (*Instance, error)

	// Start starts a stopped instance.
	Start(ctx context.Context, id string) error

	// Stop stops a running instance.
	Stop(ctx context.Context, id string) error

	// Terminate destroys the instance.
	Terminate(ctx context.Context, id string) error
}

// WaitForState polls the provider every 10 seconds until the instance
// reaches the wanted state, up to maxPolls probes.
func WaitForState(ctx context.Context, log logr.Logger, p Provider, id, state string, maxPolls int) error {
	return retry.WithBackoff(ctx, retry.PollConfig(maxPolls), log, "wait for instance state "+state,
		func() error {
			current, err := p.GetState(ctx, id)
			if err != nil {
				return err
			}
			if current != state {
				return &stateMismatchError{id: id, want: state, got: current}
			}
			return nil
		})
}

type stateMismatchError struct {
	id, want, got string
}

func (e *stateMismatchError) Error() string {
	return "instance " + e.id + " is " + e.got + ", waiting for " + e.want
}
