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

package ec2

import (
	"context"
	"fmt"
	"sync"
)

// MockProvider is a Provider for testing. It keeps instances in memory,
// tracks method calls and returns configurable errors.
type MockProvider struct {
	mu sync.Mutex

	// Instances maps instance ID to its current record.
	Instances map[string]*Instance

	// LaunchState is the state assigned to newly launched instances.
	// Defaults to running.
	LaunchState string

	// nextID numbers generated instance IDs.
	nextID int

	// Call counters.
	GetInstanceCalls int
	LaunchCalls      int
	StartCalls       int
	StopCalls        int
	TerminateCalls   int

	// Errors to inject per operation.
	GetInstanceError error
	LaunchError      error
	StartError       error
	StopError        error
	TerminateError   error
}

// NewMockProvider creates a MockProvider with no instances.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Instances:   make(map[string]*Instance),
		LaunchState: StateRunning,
	}
}

// AddInstance registers an existing instance with the mock.
func (m *MockProvider) AddInstance(instance *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Instances[instance.ID] = instance
}

// GetInstance returns the instance with the given ID.
func (m *MockProvider) GetInstance(ctx context.Context, id string) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetInstanceCalls++
	if m.GetInstanceError != nil {
		return nil, m.GetInstanceError
	}

	instance, ok := m.Instances[id]
	if !ok {
		return nil, fmt.Errorf("instance with ID %s not found", id)
	}
	copy := *instance
	return &copy, nil
}

// GetState returns the current state of the instance.
func (m *MockProvider) GetState(ctx context.Context, id string) (string, error) {
	instance, err := m.GetInstance(ctx, id)
	if err != nil {
		return "", err
	}
	return instance.State, nil
}

// Launch records a new instance in LaunchState with a generated ID and a
// public IP.
func (m *MockProvider) Launch(ctx context.Context, spec LaunchSpec) (*Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LaunchCalls++
	if m.LaunchError != nil {
		return nil, m.LaunchError
	}

	m.nextID++
	instance := &Instance{
		ID:       fmt.Sprintf("i-mock%04d", m.nextID),
		State:    m.LaunchState,
		PublicIP: fmt.Sprintf("203.0.113.%d", m.nextID),
		ImageID:  spec.ImageID,
		Type:     spec.InstanceType,
	}
	m.Instances[instance.ID] = instance

	copy := *instance
	return &copy, nil
}

// Start marks the instance running.
func (m *MockProvider) Start(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StartCalls++
	if m.StartError != nil {
		return m.StartError
	}
	return m.setState(id, StateRunning)
}

// Stop marks the instance stopped.
func (m *MockProvider) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StopCalls++
	if m.StopError != nil {
		return m.StopError
	}
	return m.setState(id, StateStopped)
}

// Terminate marks the instance terminated.
func (m *MockProvider) Terminate(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TerminateCalls++
	if m.TerminateError != nil {
		return m.TerminateError
	}
	return m.setState(id, StateTerminated)
}

// setState requires m.mu to be held.
func (m *MockProvider) setState(id, state string) error {
	instance, ok := m.Instances[id]
	if !ok {
		return fmt.Errorf("instance with ID %s not found", id)
	}
	instance.State = state
	return nil
}
