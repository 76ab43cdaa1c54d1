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
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/grisu48/img-proof/pkg/config"
	"github.com/grisu48/img-proof/pkg/ec2"
	"github.com/grisu48/img-proof/pkg/results"
	"github.com/grisu48/img-proof/pkg/runner"
)

func newTestCmd() *cobra.Command {
	var (
		configFile   string
		testNames    []string
		imageID      string
		instanceID   string
		instanceType string
		cleanup      bool
		noCleanup    bool
	)

	cmd := &cobra.Command{
		Use:   "test [names...]",
		Short: "Provision an instance and run tests against it",
		Long: `Provision an instance (or reuse a running one), wait for SSH,
resolve the requested test and description names and run them.
Without names, every discovered test runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			// Command line beats config file.
			if imageID != "" {
				cfg.ImageID = imageID
			}
			if instanceID != "" {
				cfg.RunningInstanceID = instanceID
			}
			if instanceType != "" {
				cfg.InstanceType = instanceType
			}
			if cleanup {
				t := true
				cfg.Cleanup = &t
			}
			if noCleanup {
				f := false
				cfg.Cleanup = &f
			}
			names := append(testNames, args...)

			log, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			provider, err := ec2.NewProvider(cmd.Context(), ec2.ProviderConfig{
				Region:          cfg.Region,
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				EndpointURL:     cfg.EndpointURL,
			})
			if err != nil {
				return err
			}

			// The provisioning and connection wait can take minutes; give
			// interactive users a liveness indicator while logs stay on
			// stderr.
			var spin *spinner.Spinner
			if isatty.IsTerminal(os.Stdout.Fd()) {
				spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				spin.Suffix = " running tests..."
				spin.Start()
			}

			summary, err := runner.New(provider, cfg, log).Run(cmd.Context(), names)
			if spin != nil {
				spin.Stop()
			}
			if err != nil {
				return err
			}

			writer := &results.Writer{Dir: cfg.ResultsDir, HistoryLog: cfg.HistoryLog}
			resultsPath, err := writer.Write(summary)
			if err != nil {
				return err
			}

			printSummary(summary, resultsPath)
			if summary.Failed() > 0 {
				return fmt.Errorf("%d of %d tests failed", summary.Failed(), len(summary.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "img-proof.yaml", "path to the configuration file")
	cmd.Flags().StringSliceVarP(&testNames, "tests", "t", nil, "test or description names to run (repeatable)")
	cmd.Flags().StringVarP(&imageID, "image", "i", "", "image ID to launch an instance from")
	cmd.Flags().StringVar(&instanceID, "instance-id", "", "reuse an existing instance instead of launching one")
	cmd.Flags().StringVar(&instanceType, "instance-type", "", "instance type to launch")
	cmd.Flags().BoolVar(&cleanup, "cleanup", false, "terminate the instance after the run even if it was reused")
	cmd.Flags().BoolVar(&noCleanup, "no-cleanup", false, "keep the instance running after the run")
	cmd.MarkFlagsMutuallyExclusive("cleanup", "no-cleanup")

	return cmd
}

func printSummary(summary *results.Summary, resultsPath string) {
	pass := color.New(color.FgGreen).SprintFunc()
	fail := color.New(color.FgRed).SprintFunc()

	for _, r := range summary.Results {
		status := pass("PASS")
		if r.Status != results.StatusPassed {
			status = fail("FAIL")
		}
		fmt.Printf("%s  %s (%s)\n", status, r.Name, r.Duration.Round(time.Millisecond))
		if r.Stderr != "" {
			fmt.Printf("      %s\n", r.Stderr)
		}
	}
	fmt.Printf("\n%d passed, %d failed on instance %s\n",
		summary.Passed(), summary.Failed(), summary.InstanceID)
	fmt.Printf("results written to %s\n", resultsPath)
}
