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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFiles creates the given relative paths under a fresh temp dir and
// returns the dir.
func writeFiles(t *testing.T, paths map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range paths {
		full := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func TestBuildCatalog_Discovery(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"test_services.sh":        "systemctl is-system-running\n",
		"network/test_dns.sh":     "getent hosts example.com\n",
		"test_base.yaml":          "tests:\n  - test_services\n",
		"notes.txt":               "ignored",
		"unprefixed.sh":           "ignored",
		"network/test_extra.conf": "ignored",
	})

	catalog, err := BuildCatalog([]string{dir})
	require.NoError(t, err)

	assert.Len(t, catalog.Tests, 2)
	assert.Equal(t, filepath.Join(dir, "test_services.sh"), catalog.Tests["test_services"])
	assert.Equal(t, filepath.Join(dir, "network", "test_dns.sh"), catalog.Tests["test_dns"])
	assert.Len(t, catalog.Descriptions, 1)
	assert.Equal(t, filepath.Join(dir, "test_base.yaml"), catalog.Descriptions["test_base"])
}

func TestBuildCatalog_MultipleRoots(t *testing.T) {
	dirA := writeFiles(t, map[string]string{"test_a.sh": "true\n"})
	dirB := writeFiles(t, map[string]string{"test_b.sh": "true\n"})

	catalog, err := BuildCatalog([]string{dirA, dirB})
	require.NoError(t, err)
	assert.Equal(t, []string{"test_a", "test_b"}, catalog.TestNames())
}

func TestBuildCatalog_Collisions(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		kind  string
	}{
		{
			name: "duplicate test file in different subdirectories",
			files: map[string]string{
				"one/test_x.sh": "true\n",
				"two/test_x.sh": "true\n",
			},
			kind: "duplicate test file name found",
		},
		{
			name: "duplicate description",
			files: map[string]string{
				"one/test_d.yaml": "tests: []\n",
				"two/test_d.yaml": "tests: []\n",
			},
			kind: "duplicate test description file name found",
		},
		{
			name: "description collides with test",
			files: map[string]string{
				"test_y.sh":        "true\n",
				"deep/test_y.yaml": "tests: []\n",
			},
			kind: "test description name matches test file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)

			_, err := BuildCatalog([]string{dir})
			require.Error(t, err)

			var conflictErr *ConflictError
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, tt.kind, conflictErr.Kind)
			// Both offending files must be named for diagnosis.
			assert.Contains(t, err.Error(), conflictErr.Path)
			assert.Contains(t, err.Error(), conflictErr.Existing)
		})
	}
}

func TestBuildCatalog_MissingRoot(t *testing.T) {
	_, err := BuildCatalog([]string{"/nonexistent/test/root"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to walk test directory")
}

func TestCatalogUnion(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"test_a.sh":   "true\n",
		"test_b.yaml": "tests:\n  - test_a\n",
	})

	catalog, err := BuildCatalog([]string{dir})
	require.NoError(t, err)

	union := catalog.Union()
	assert.Len(t, union, 2)
	assert.Equal(t, catalog.Tests["test_a"], union["test_a"])
	assert.Equal(t, catalog.Descriptions["test_b"], union["test_b"])
}
