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

// Package runner orchestrates one test run: it brings an instance up,
// acquires a validated SSH connection, resolves the requested tests and
// executes them in order.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/grisu48/img-proof/pkg/config"
	"github.com/grisu48/img-proof/pkg/ec2"
	"github.com/grisu48/img-proof/pkg/results"
	"github.com/grisu48/img-proof/pkg/ssh"
	"github.com/grisu48/img-proof/pkg/tests"
)

// maxStatePolls bounds how long the runner waits for an instance state
// transition: 30 probes at 10 second intervals.
const maxStatePolls = 30

// Runner drives a single test run against one instance.
//
// Each run owns its own connection cache and catalog; nothing is shared
// between concurrent runs.
type Runner struct {
	Provider ec2.Provider
	Cache    *ssh.Cache
	Config   *config.Config
	Log      logr.Logger
}

// New builds a Runner with a fresh connection cache.
func New(provider ec2.Provider, cfg *config.Config, log logr.Logger) *Runner {
	return &Runner{
		Provider: provider,
		Cache:    ssh.NewCache(),
		Config:   cfg,
		Log:      log,
	}
}

// Run executes the requested test and description names against the
// configured instance and returns the per-test results.
//
// With no names, every discovered test file runs. Failing commands are
// recorded as failed tests and the run continues; infrastructure errors
// (unreachable instance, unreadable test file, broken connection) abort
// the run. Launched instances are terminated afterwards unless the
// cleanup policy says otherwise.
func (r *Runner) Run(ctx context.Context, names []string) (*results.Summary, error) {
	// Resolve the test set before spending money on an instance: catalog
	// and selection errors are structural and retrying or provisioning
	// will not fix them.
	catalog, err := tests.BuildCatalog(r.Config.TestRoots)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = catalog.TestNames()
	}
	selected, err := tests.Select(names, catalog)
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no tests selected")
	}

	instance, launched, err := r.ensureInstance(ctx)
	if err != nil {
		return nil, err
	}
	// instance is reassigned below once the public IP is known; the
	// closure makes teardown see the refreshed value.
	defer func() { r.cleanup(instance, launched) }()

	if instance.State != ec2.StateRunning {
		if err := ec2.WaitForState(ctx, r.Log, r.Provider, instance.ID, ec2.StateRunning, maxStatePolls); err != nil {
			return nil, err
		}
	}

	// The public IP may only be assigned once the instance is running. A
	// failed refresh keeps the old value so teardown still knows the ID.
	refreshed, err := r.Provider.GetInstance(ctx, instance.ID)
	if err != nil {
		return nil, err
	}
	instance = refreshed
	if instance.PublicIP == "" {
		return nil, fmt.Errorf("IP address for instance %s cannot be found", instance.ID)
	}

	client, err := r.Cache.Get(ctx, r.Log, ssh.Options{
		Host:           instance.PublicIP,
		User:           r.Config.SSH.User,
		Port:           r.Config.SSH.Port,
		PrivateKeyPath: r.Config.SSH.PrivateKey,
		Attempts:       r.Config.SSH.Attempts,
		Timeout:        time.Duration(r.Config.SSH.Timeout) * time.Second,
	})
	if err != nil {
		return nil, err
	}

	summary := &results.Summary{
		InstanceID: instance.ID,
		ImageID:    instance.ImageID,
		Started:    time.Now(),
	}

	// Deterministic execution order; one command at a time on the single
	// session.
	ordered := make([]string, 0, len(selected))
	for name := range selected {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	for _, name := range ordered {
		result, err := r.runTest(ctx, client, name, selected[name])
		if err != nil {
			return nil, err
		}
		summary.Add(result)
		r.Log.Info("test finished",
			"test", name,
			"status", result.Status,
			"duration", result.Duration)
	}

	summary.Finished = time.Now()
	return summary, nil
}

// ensureInstance returns the instance under test, launching one from the
// configured image unless an existing instance ID was given. A reused
// instance that was stopped is started again. The second return value
// reports whether this run launched the instance.
func (r *Runner) ensureInstance(ctx context.Context) (*ec2.Instance, bool, error) {
	if id := r.Config.RunningInstanceID; id != "" {
		instance, err := r.Provider.GetInstance(ctx, id)
		if err != nil {
			return nil, false, err
		}
		if instance.State == ec2.StateStopped {
			r.Log.Info("starting stopped instance", "instance", id)
			if err := r.Provider.Start(ctx, id); err != nil {
				return nil, false, err
			}
		}
		return instance, false, nil
	}

	r.Log.Info("launching instance",
		"image", r.Config.ImageID,
		"type", r.Config.InstanceType)
	instance, err := r.Provider.Launch(ctx, ec2.LaunchSpec{
		ImageID:      r.Config.ImageID,
		InstanceType: r.Config.InstanceType,
		KeyName:      r.Config.SSH.KeyName,
	})
	if err != nil {
		return nil, false, err
	}
	r.Log.Info("instance launched", "instance", instance.ID)
	return instance, true, nil
}

// runTest executes one resolved test over the client. A command that
// writes to stderr is a failed test; any other error is an infrastructure
// problem and aborts the run.
func (r *Runner) runTest(ctx context.Context, client *ssh.Client, name, ref string) (results.Result, error) {
	path, subCase, _ := strings.Cut(ref, "::")

	contents, err := os.ReadFile(path)
	if err != nil {
		return results.Result{}, fmt.Errorf("failed to read test file %s: %w", path, err)
	}

	// The test script runs through the remote shell. Sub-cases are passed
	// to the script via the environment.
	command := string(contents)
	if subCase != "" {
		command = fmt.Sprintf("export IMG_PROOF_TEST_CASE=%q\n%s", subCase, command)
	}

	start := time.Now()
	_, err = client.Run(ctx, command)
	result := results.Result{
		Name:     name,
		Path:     ref,
		Duration: time.Since(start),
	}

	if err != nil {
		var cmdErr *ssh.CommandError
		if !errors.As(err, &cmdErr) {
			return results.Result{}, err
		}
		result.Status = results.StatusFailed
		result.Stderr = string(cmdErr.Stderr)
		return result, nil
	}

	result.Status = results.StatusPassed
	return result, nil
}

// cleanup applies the teardown policy after a run. Errors are logged, not
// returned: a failed teardown must not mask test results.
func (r *Runner) cleanup(instance *ec2.Instance, launched bool) {
	if instance == nil {
		return
	}
	if instance.PublicIP != "" {
		r.Cache.Clear(instance.PublicIP)
	}

	if !r.Config.ShouldCleanup(launched) {
		r.Log.Info("leaving instance running", "instance", instance.ID)
		return
	}

	r.Log.Info("terminating instance", "instance", instance.ID)
	if err := r.Provider.Terminate(context.Background(), instance.ID); err != nil {
		r.Log.Error(err, "failed to terminate instance", "instance", instance.ID)
	}
}
