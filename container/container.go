/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package container runs short lived containers against a bind mounted host
// directory and collects their output.
package container

import (
	"context"
	"fmt"
	"strings"
)

// Mount binds a host path into a container.
type Mount struct {
	Source string
	Target string
}

func (m Mount) String() string {
	return m.Source + ":" + m.Target
}

// Spec describes a single container run. The container is removed once it exits.
type Spec struct {
	Image string
	// Cmd overrides the image's default command when non-empty.
	Cmd    []string
	Env    []string
	Mounts []Mount
	Labels map[string]string
}

// Result holds what a finished container wrote and how it exited.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Output returns stdout with surrounding whitespace removed.
func (r *Result) Output() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Stdout))
}

// Runtime runs a container to completion. Implementations must return an
// *ExitError when the container exits with a non-zero status, along with the
// Result collected so far.
type Runtime interface {
	Run(ctx context.Context, spec Spec) (*Result, error)
	Close() error
}

// ExitError is returned when a container exits with a non-zero status.
type ExitError struct {
	Image  string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("container from image %s exited with status %d", e.Image, e.Code)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func checkExit(spec Spec, res *Result) error {
	if res.ExitCode == 0 {
		return nil
	}
	return &ExitError{Image: spec.Image, Code: res.ExitCode, Stderr: string(res.Stderr)}
}
