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

// Package results records the outcome of a test run: one JSON document per
// run plus an optional one-line-per-run history log.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Status is the outcome of a single test.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Result is the outcome of one executed test.
type Result struct {
	// Name is the requested test name, including any ::subcase suffix.
	Name string `json:"name"`

	// Path is the resolved test reference the runner executed.
	Path string `json:"path"`

	Status   Status        `json:"status"`
	Duration time.Duration `json:"duration"`

	// Stderr holds the error output of a failed test.
	Stderr string `json:"stderr,omitempty"`
}

// Summary is the outcome of a whole run against one instance.
type Summary struct {
	InstanceID string    `json:"instanceId"`
	ImageID    string    `json:"imageId,omitempty"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Results    []Result  `json:"results"`
}

// Add appends a test result.
func (s *Summary) Add(r Result) {
	s.Results = append(s.Results, r)
}

// Passed returns the number of passing tests.
func (s *Summary) Passed() int {
	n := 0
	for _, r := range s.Results {
		if r.Status == StatusPassed {
			n++
		}
	}
	return n
}

// Failed returns the number of failing tests.
func (s *Summary) Failed() int {
	return len(s.Results) - s.Passed()
}

// Writer persists run summaries.
type Writer struct {
	// Dir is the results directory; each run gets its own subdirectory
	// named after the instance and start time.
	Dir string

	// HistoryLog, if set, is a file one summary line per run is appended
	// to.
	HistoryLog string
}

// Write stores the summary as results.json in a fresh per-run directory
// and appends the history line. It returns the path of the written
// results file.
func (w *Writer) Write(s *Summary) (string, error) {
	runDir := filepath.Join(w.Dir,
		fmt.Sprintf("%s-%s", s.InstanceID, s.Started.UTC().Format("20060102T150405")))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory %s: %w", runDir, err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}

	path := filepath.Join(runDir, "results.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results file %s: %w", path, err)
	}

	if w.HistoryLog != "" {
		if err := w.appendHistory(s, path); err != nil {
			return "", err
		}
	}

	return path, nil
}

func (w *Writer) appendHistory(s *Summary, resultsPath string) error {
	f, err := os.OpenFile(w.HistoryLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history log %s: %w", w.HistoryLog, err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s\t%s\t%s\tpassed=%d failed=%d\t%s\n",
		s.Started.UTC().Format(time.RFC3339), s.InstanceID, s.ImageID,
		s.Passed(), s.Failed(), resultsPath)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append to history log %s: %w", w.HistoryLog, err)
	}
	return nil
}
