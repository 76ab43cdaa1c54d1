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

import "strings"

// Select resolves a set of requested names against the catalog and returns
// a map from requested name to an executable test reference.
//
// A requested name may be a test name (foo), a test name with a sub-case
// suffix (foo::case1), or a description name (bar). Description names are
// expanded into the set of test names they reference and are consumed in
// the process: the output is keyed by test name, never by description
// name. Sub-case suffixes pass through verbatim, appended to the resolved
// path (path::case1) for the test runner to interpret.
//
// A name that resolves to neither a known test nor a known description
// fails with a *NotFoundError. Output order carries no meaning.
func Select(names []string, catalog *Catalog) (map[string]string, error) {
	working := make(map[string]bool)

	for _, name := range names {
		if _, ok := catalog.Descriptions[name]; !ok {
			working[name] = true
			continue
		}

		// Each top-level description expands with its own visited set.
		expanded, err := ExpandDescription(name, catalog.Descriptions)
		if err != nil {
			return nil, err
		}
		for _, test := range expanded {
			working[test] = true
		}
	}

	selected := make(map[string]string, len(working))
	for name := range working {
		testName, subCase, hasSubCase := strings.Cut(name, "::")

		path, ok := catalog.Tests[testName]
		if !ok {
			return nil, &NotFoundError{Name: testName, Kind: "test file"}
		}

		if hasSubCase {
			path = path + "::" + subCase
		}
		selected[name] = path
	}

	return selected, nil
}
