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

package tests

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// description is the schema of a test description document. Both keys are
// optional and unknown keys are ignored.
type description struct {
	// Tests lists test names to run, in document order. Entries may carry
	// a ::subcase suffix.
	Tests []string `yaml:"tests"`

	// Include lists further description names to expand, in document order.
	Include []string `yaml:"include"`
}

// loadDescription parses a description document from path.
func loadDescription(path string) (*description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test description %s: %w", path, err)
	}

	var d description
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to parse test description %s: %w", path, err)
	}
	return &d, nil
}

// ExpandDescription resolves the named description into a flat, ordered
// list of test identifiers.
//
// Expansion is depth-first in document order: a description contributes its
// own tests first, then each included description in turn. A description
// path is expanded at most once per call, so circular includes terminate
// and a description reachable over several include paths contributes its
// tests only once. An include naming an unknown description fails with a
// *NotFoundError.
//
// The traversal uses an explicit stack rather than recursion, so deep
// include chains do not grow the call stack. Description documents are
// parsed lazily, once per expansion.
func ExpandDescription(name string, descriptions map[string]string) ([]string, error) {
	visited := make(map[string]bool)
	var resolved []string

	stack := []string{name}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		path, ok := descriptions[next]
		if !ok {
			return nil, &NotFoundError{Name: next, Kind: "test description"}
		}
		if visited[path] {
			continue
		}
		visited[path] = true

		d, err := loadDescription(path)
		if err != nil {
			return nil, err
		}

		resolved = append(resolved, d.Tests...)

		// Push includes in reverse so the first include is expanded first.
		for i := len(d.Include) - 1; i >= 0; i-- {
			stack = append(stack, d.Include[i])
		}
	}

	return resolved, nil
}
