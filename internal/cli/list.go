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

package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/grisu48/img-proof/pkg/config"
	"github.com/grisu48/img-proof/pkg/tests"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list [roots...]",
		Short: "List discovered tests and test descriptions",
		Long: `Walk the given test root directories (default: tests) and print
every discovered test file and test description with its path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			roots := args
			if len(roots) == 0 {
				roots = config.DefaultTestRoots
			}

			catalog, err := tests.BuildCatalog(roots)
			if err != nil {
				return err
			}

			fmt.Println("Tests:")
			for _, name := range catalog.TestNames() {
				fmt.Printf("  %s\t%s\n", name, catalog.Tests[name])
			}

			names := make([]string, 0, len(catalog.Descriptions))
			for name := range catalog.Descriptions {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Println("Descriptions:")
			for _, name := range names {
				fmt.Printf("  %s\t%s\n", name, catalog.Descriptions[name])
			}
			return nil
		},
	}
	return cmd
}
