/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package container

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

const DefaultBinary = "docker"

// CLIRuntime runs containers by invoking the docker (or a compatible, e.g. podman)
// command line client.
type CLIRuntime struct {
	Binary string
}

func (r CLIRuntime) binary() string {
	if r.Binary == "" {
		return DefaultBinary
	}
	return r.Binary
}

// args returns the arguments passed to the binary to run spec.
func (r CLIRuntime) args(spec Spec) []string {
	args := []string{"run", "--rm"}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m.String())
	}
	for _, e := range spec.Env {
		args = append(args, "-e", e)
	}
	keys := make([]string, 0, len(spec.Labels))
	for k := range spec.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "--label", k+"="+spec.Labels[k])
	}
	args = append(args, spec.Image)
	return append(args, spec.Cmd...)
}

// Run executes `docker run --rm ...` and blocks until the container exits.
func (r CLIRuntime) Run(ctx context.Context, spec Spec) (*Result, error) {
	args := r.args(spec)
	cmd := exec.CommandContext(ctx, r.binary(), args...) //nolint:gosec
	cmd.Env = os.Environ()
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	glog.V(2).Infof("Running: %s", shellquote.Join(append([]string{r.binary()}, args...)...))
	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			return res, checkExit(spec, res)
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, errors.Wrapf(err, "while running %q", strings.Join(cmd.Args, " "))
	}
	return res, nil
}

// Close is a no-op; the CLI keeps no connection open.
func (r CLIRuntime) Close() error {
	return nil
}
