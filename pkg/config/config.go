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

// Package config provides configuration management for img-proof.
//
// A run needs provider credentials, the image or instance to test, SSH
// parameters to reach it, and the directories holding tests. Configuration
// is loaded from a YAML file with environment variable overrides
// (IMG_PROOF_* prefix) through Viper.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// ConfigError reports malformed or missing configuration.
type ConfigError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %v", e.Reason, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s (%s)", e.Reason, e.Path)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Config represents the complete img-proof configuration.
type Config struct {
	// Region is the AWS region to operate in.
	Region string `yaml:"region,omitempty"`

	// AccessKeyID and SecretAccessKey are the static EC2 credentials.
	AccessKeyID     string `yaml:"accessKeyId,omitempty"`
	SecretAccessKey string `yaml:"secretAccessKey,omitempty"`

	// EndpointURL overrides the EC2 API endpoint (LocalStack testing).
	EndpointURL string `yaml:"endpointUrl,omitempty"`

	// ImageID is the image to launch an instance from. Ignored when
	// RunningInstanceID is set.
	ImageID string `yaml:"imageId,omitempty"`

	// InstanceType is the instance size to launch.
	InstanceType string `yaml:"instanceType,omitempty"`

	// RunningInstanceID reuses an existing instance instead of launching
	// a fresh one.
	RunningInstanceID string `yaml:"runningInstanceId,omitempty"`

	// SSH describes how to reach the instance once it is up.
	SSH SSHConfig `yaml:"ssh,omitempty"`

	// TestRoots is the ordered list of directories searched recursively
	// for test files and test descriptions.
	TestRoots []string `yaml:"testRoots,omitempty"`

	// ResultsDir is the directory run results are written into.
	ResultsDir string `yaml:"resultsDir,omitempty"`

	// HistoryLog is an optional file each run summary line is appended to.
	HistoryLog string `yaml:"historyLog,omitempty"`

	// Cleanup controls whether launched instances are terminated after
	// the run. Instances that were already running are never terminated
	// unless Cleanup is set explicitly.
	Cleanup *bool `yaml:"cleanup,omitempty"`

	// LogLevel controls log verbosity: debug, info, warn, error.
	LogLevel string `yaml:"logLevel,omitempty"`
}

// SSHConfig holds the remote shell parameters for one instance.
type SSHConfig struct {
	// KeyName is the provider-side name of the key pair.
	KeyName string `yaml:"keyName,omitempty"`

	// PrivateKey is the path to the matching private key file.
	PrivateKey string `yaml:"privateKey,omitempty"`

	// User is the remote login. Defaults to ec2-user.
	User string `yaml:"user,omitempty"`

	// Port is the SSH port. Defaults to 22.
	Port int `yaml:"port,omitempty"`

	// Attempts bounds connection attempts. Defaults to 5.
	Attempts int `yaml:"attempts,omitempty"`

	// Timeout is the per-attempt connection timeout in seconds.
	Timeout int `yaml:"timeout,omitempty"`
}

// Load loads configuration from a YAML file and validates it.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (IMG_PROOF_* prefix)
//  2. Configuration file values
//  3. Default values
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("region", DefaultRegion)
	v.SetDefault("ssh.user", DefaultSSHUser)
	v.SetDefault("ssh.port", DefaultSSHPort)
	v.SetDefault("ssh.attempts", DefaultConnectAttempts)
	v.SetDefault("ssh.timeout", DefaultConnectTimeout)
	v.SetDefault("testRoots", DefaultTestRoots)
	v.SetDefault("resultsDir", DefaultResultsDir)
	v.SetDefault("logLevel", "info")

	// Viper's automatic mapping does not handle camelCase keys well, so
	// each override is bound by hand.
	v.SetEnvPrefix("IMG_PROOF")
	_ = v.BindEnv("region", "IMG_PROOF_REGION")
	_ = v.BindEnv("accessKeyId", "IMG_PROOF_ACCESS_KEY_ID")
	_ = v.BindEnv("secretAccessKey", "IMG_PROOF_SECRET_ACCESS_KEY")
	_ = v.BindEnv("imageId", "IMG_PROOF_IMAGE_ID")
	_ = v.BindEnv("runningInstanceId", "IMG_PROOF_RUNNING_INSTANCE_ID")
	_ = v.BindEnv("ssh.privateKey", "IMG_PROOF_SSH_PRIVATE_KEY")
	_ = v.BindEnv("ssh.user", "IMG_PROOF_SSH_USER")
	_ = v.BindEnv("resultsDir", "IMG_PROOF_RESULTS_DIR")
	_ = v.BindEnv("logLevel", "IMG_PROOF_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Reason: "failed to read config file", Cause: err}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Path: path, Reason: "failed to parse config file", Cause: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration is complete enough to run.
func (c *Config) Validate() error {
	if c.ImageID == "" && c.RunningInstanceID == "" {
		return fmt.Errorf("either imageId or runningInstanceId must be configured")
	}

	if c.SSH.PrivateKey == "" {
		return fmt.Errorf("SSH private key file is required to connect to the instance")
	}

	if c.ImageID != "" && c.RunningInstanceID == "" && c.SSH.KeyName == "" {
		return fmt.Errorf("ssh key name is required to launch an instance")
	}

	if len(c.TestRoots) == 0 {
		return fmt.Errorf("at least one test root directory must be configured")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}

	if c.SSH.Port < 0 || c.SSH.Port > 65535 {
		return fmt.Errorf("invalid SSH port %d", c.SSH.Port)
	}
	if c.SSH.Attempts < 0 {
		return fmt.Errorf("invalid SSH attempt count %d", c.SSH.Attempts)
	}
	if c.SSH.Timeout < 0 {
		return fmt.Errorf("invalid SSH timeout %d", c.SSH.Timeout)
	}

	return nil
}

// ShouldCleanup reports whether the instance should be torn down after the
// run. Launched instances default to cleanup; reused instances default to
// being left alone. An explicit cleanup setting wins either way.
func (c *Config) ShouldCleanup(launched bool) bool {
	if c.Cleanup != nil {
		return *c.Cleanup
	}
	return launched
}
