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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDescriptions stores YAML documents as test_<name>.yaml in a temp
// dir and returns the name→path map the resolver expects.
func writeDescriptions(t *testing.T, docs map[string]string) map[string]string {
	t.Helper()
	files := make(map[string]string, len(docs))
	for name, doc := range docs {
		files["test_"+name+".yaml"] = doc
	}
	dir := writeFiles(t, files)

	descriptions := make(map[string]string, len(docs))
	for name := range docs {
		descriptions["test_"+name] = filepath.Join(dir, "test_"+name+".yaml")
	}
	return descriptions
}

func TestExpandDescription_Flat(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"base": "tests:\n  - test_services\n  - test_dns::external\n",
	})

	resolved, err := ExpandDescription("test_base", descriptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_services", "test_dns::external"}, resolved)
}

func TestExpandDescription_IncludeOrder(t *testing.T) {
	// Own tests come first, then each include depth-first in document
	// order.
	descriptions := writeDescriptions(t, map[string]string{
		"all":     "tests:\n  - test_own\ninclude:\n  - test_first\n  - test_second\n",
		"first":   "tests:\n  - test_f1\ninclude:\n  - test_nested\n",
		"nested":  "tests:\n  - test_n1\n",
		"second":  "tests:\n  - test_s1\n",
	})

	resolved, err := ExpandDescription("test_all", descriptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_own", "test_f1", "test_n1", "test_s1"}, resolved)
}

func TestExpandDescription_CycleTerminates(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"a": "tests:\n  - test_from_a\ninclude:\n  - test_b\n",
		"b": "tests:\n  - test_from_b\ninclude:\n  - test_a\n",
	})

	resolved, err := ExpandDescription("test_a", descriptions)
	require.NoError(t, err)
	// Each description contributes its tests exactly once despite the
	// circular include.
	assert.Equal(t, []string{"test_from_a", "test_from_b"}, resolved)
}

func TestExpandDescription_DiamondDedup(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"a": "include:\n  - test_b\n  - test_c\n",
		"b": "include:\n  - test_d\n",
		"c": "include:\n  - test_d\n",
		"d": "tests:\n  - test_shared\n",
	})

	resolved, err := ExpandDescription("test_a", descriptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_shared"}, resolved,
		"tests reachable over two include paths must appear once")
}

func TestExpandDescription_SelfInclude(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"a": "tests:\n  - test_one\ninclude:\n  - test_a\n",
	})

	resolved, err := ExpandDescription("test_a", descriptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_one"}, resolved)
}

func TestExpandDescription_NotFound(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"a": "include:\n  - test_missing\n",
	})

	tests := []struct {
		name    string
		request string
		missing string
	}{
		{name: "unknown top-level name", request: "test_nope", missing: "test_nope"},
		{name: "unknown include", request: "test_a", missing: "test_missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ExpandDescription(tt.request, descriptions)
			require.Error(t, err)

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, tt.missing, notFound.Name)
		})
	}
}

func TestExpandDescription_UnknownKeysIgnored(t *testing.T) {
	descriptions := writeDescriptions(t, map[string]string{
		"a": "tests:\n  - test_one\nowner: qa-team\nextra:\n  nested: true\n",
	})

	resolved, err := ExpandDescription("test_a", descriptions)
	require.NoError(t, err)
	assert.Equal(t, []string{"test_one"}, resolved)
}
