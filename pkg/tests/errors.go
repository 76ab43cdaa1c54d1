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

import "fmt"

// ConflictError reports a naming collision found while building a catalog.
// Collisions are structural problems in the test suite layout and are never
// retried: the same files will collide on every build.
type ConflictError struct {
	// Name is the colliding test or description name.
	Name string

	// Path and Existing are the two files claiming the name.
	Path     string
	Existing string

	// Kind describes the collision category (duplicate test file,
	// duplicate description, or description colliding with a test).
	Kind string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q: %s, %s", e.Kind, e.Name, e.Path, e.Existing)
}

// NotFoundError reports a requested test or description that is absent from
// the catalog.
type NotFoundError struct {
	// Name is the test or description name that could not be located.
	Name string

	// Kind is "test file" or "test description".
	Kind string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with name %q cannot be found", e.Kind, e.Name)
}
