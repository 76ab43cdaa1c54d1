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

package config

// Defaults applied when the corresponding setting is absent from the
// configuration file and environment.
const (
	// DefaultRegion is the AWS region used when none is configured.
	DefaultRegion = "us-west-2"

	// DefaultSSHUser is the standard login on EC2 images.
	DefaultSSHUser = "ec2-user"

	// DefaultSSHPort is the standard SSH port.
	DefaultSSHPort = 22

	// DefaultConnectAttempts bounds SSH connection attempts per
	// establishment round.
	DefaultConnectAttempts = 5

	// DefaultConnectTimeout is the per-attempt SSH connection timeout in
	// seconds. The validated acquisition path doubles it on each failed
	// round.
	DefaultConnectTimeout = 10

	// DefaultResultsDir is where run results are written.
	DefaultResultsDir = "results"
)

// DefaultTestRoots is the fallback list of directories searched for test
// files and test descriptions when none are configured.
var DefaultTestRoots = []string{"tests"}
