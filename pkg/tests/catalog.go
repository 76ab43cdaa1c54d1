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

// Package tests discovers test files and test descriptions under a set of
// root directories and resolves requested names into concrete test paths.
//
// Two kinds of files are recognized:
//   - test_<name>.sh: an executable test unit
//   - test_<name>.yaml: a description document grouping tests and/or
//     other descriptions
//
// The name of a file is its base name without the extension. Names must be
// unique within each kind, and a description may not share a name with a
// test.
package tests

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

const (
	testPrefix     = "test_"
	testExtension  = ".sh"
	descrExtension = ".yaml"
)

// Catalog maps test and description names to the files defining them.
type Catalog struct {
	// Tests maps test name to test file path.
	Tests map[string]string

	// Descriptions maps description name to description file path.
	Descriptions map[string]string
}

type catalogEntry struct {
	name  string
	path  string
	descr bool
}

// BuildCatalog walks every directory under each root recursively and
// returns the catalog of discovered tests and descriptions.
//
// Collision checks are performed after the walk over entries sorted by
// path, so the result does not depend on filesystem traversal order:
// a duplicate test name, a duplicate description name, or a description
// sharing a name with a test all fail with a *ConflictError naming both
// files involved.
func BuildCatalog(roots []string) (*Catalog, error) {
	var entries []catalogEntry

	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}

			base := d.Name()
			if !strings.HasPrefix(base, testPrefix) {
				return nil
			}

			switch filepath.Ext(base) {
			case testExtension:
				entries = append(entries, catalogEntry{
					name: strings.TrimSuffix(base, testExtension),
					path: path,
				})
			case descrExtension:
				entries = append(entries, catalogEntry{
					name:  strings.TrimSuffix(base, descrExtension),
					path:  path,
					descr: true,
				})
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk test directory %s: %w", root, err)
		}
	}

	// Deterministic check order regardless of how the filesystem yielded
	// the files.
	sort.Slice(entries, func(i, j int) bool { return entries[i].path < entries[j].path })

	catalog := &Catalog{
		Tests:        make(map[string]string),
		Descriptions: make(map[string]string),
	}

	for _, e := range entries {
		if e.descr {
			if existing, ok := catalog.Descriptions[e.name]; ok {
				return nil, &ConflictError{
					Name:     e.name,
					Path:     e.path,
					Existing: existing,
					Kind:     "duplicate test description file name found",
				}
			}
			catalog.Descriptions[e.name] = e.path
			continue
		}

		if existing, ok := catalog.Tests[e.name]; ok {
			return nil, &ConflictError{
				Name:     e.name,
				Path:     e.path,
				Existing: existing,
				Kind:     "duplicate test file name found",
			}
		}
		catalog.Tests[e.name] = e.path
	}

	// Cross-kind collisions, checked both ways since neither map was
	// complete while the other was being filled.
	for name, path := range catalog.Descriptions {
		if existing, ok := catalog.Tests[name]; ok {
			return nil, &ConflictError{
				Name:     name,
				Path:     path,
				Existing: existing,
				Kind:     "test description name matches test file",
			}
		}
	}

	return catalog, nil
}

// Union returns a single name to path map containing both tests and
// descriptions. This is the unfiltered view presented when no explicit
// test names are requested.
func (c *Catalog) Union() map[string]string {
	union := make(map[string]string, len(c.Tests)+len(c.Descriptions))
	for name, path := range c.Tests {
		union[name] = path
	}
	for name, path := range c.Descriptions {
		union[name] = path
	}
	return union
}

// TestNames returns the sorted names of all discovered test files.
func (c *Catalog) TestNames() []string {
	names := make([]string, 0, len(c.Tests))
	for name := range c.Tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
