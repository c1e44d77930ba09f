/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"fmt"
	"time"
)

// StepStatus is the outcome of a single step.
type StepStatus string

const (
	StatusRan       StepStatus = "ran"
	StatusSkipped   StepStatus = "skipped"
	StatusDryRun    StepStatus = "dry-run"
	StatusTolerated StepStatus = "tolerated"
	StatusFailed    StepStatus = "failed"
)

// StepResult records what happened to a step.
type StepResult struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Status      StepStatus    `yaml:"status"`
	Duration    time.Duration `yaml:"duration,omitempty"`
	Error       string        `yaml:"error,omitempty"`
}

// Facts is the state threaded through the steps. A step only reads facts set
// by the steps before it.
type Facts struct {
	RunID   string    `yaml:"run_id"`
	Started time.Time `yaml:"started"`
	DryRun  bool      `yaml:"dry_run,omitempty"`

	// DataDir is the resolved host data directory.
	DataDir string `yaml:"postgres_data_dir"`
	// ContainerCommand is the rendered helper container command prefix.
	ContainerCommand string `yaml:"container_command"`
	// VersionFileExists reports whether the legacy PG_VERSION marker was found.
	VersionFileExists bool `yaml:"pg_version_file_exists"`
	// OldVersion holds the marker's contents, or nil if it was not read.
	OldVersion *string `yaml:"old_pg_version"`
	// UpgradePostgres is set only when OldVersion was read and equals the legacy version.
	UpgradePostgres bool `yaml:"upgrade_postgres"`
	// ComposeStartContainers is supplied by the caller.
	ComposeStartContainers bool `yaml:"compose_start_containers"`

	Steps []StepResult `yaml:"steps"`
}

// Step returns the result recorded for the named step.
func (f *Facts) Step(name string) (StepResult, bool) {
	for _, s := range f.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Ran returns the names of the steps that executed, in order.
func (f *Facts) Ran() []string {
	var names []string
	for _, s := range f.Steps {
		if s.Status == StatusRan {
			names = append(names, s.Name)
		}
	}
	return names
}

func (f *Facts) String() string {
	old := "<skipped>"
	if f.OldVersion != nil {
		old = fmt.Sprintf("%q", *f.OldVersion)
	}
	return fmt.Sprintf("pg_version_file_exists=%v old_pg_version=%s upgrade_postgres=%v "+
		"compose_start_containers=%v", f.VersionFileExists, old, f.UpgradePostgres,
		f.ComposeStartContainers)
}

// StepError records the step being performed and the error it failed with.
type StepError struct {
	Step        string
	Description string
	Err         error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Description, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Cause lets errors.Cause from github.com/pkg/errors see through StepError.
func (e *StepError) Cause() error {
	return e.Err
}
