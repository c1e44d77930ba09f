/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package container

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestCLIRuntimeArgs(t *testing.T) {
	spec := Spec{
		Image:  "tianon/postgres-upgrade:10-to-12",
		Cmd:    []string{"--username=awx"},
		Env:    []string{"PGUSER=awx", "POSTGRES_INITDB_ARGS=-U awx"},
		Mounts: []Mount{{Source: "/opt/pg", Target: "/var/lib/postgresql"}},
		Labels: map[string]string{"b": "2", "a": "1"},
	}
	require.Equal(t, []string{
		"run", "--rm",
		"-v", "/opt/pg:/var/lib/postgresql",
		"-e", "PGUSER=awx",
		"-e", "POSTGRES_INITDB_ARGS=-U awx",
		"--label", "a=1",
		"--label", "b=2",
		"tianon/postgres-upgrade:10-to-12",
		"--username=awx",
	}, CLIRuntime{}.args(spec))
}

// fakeBinary writes a shell script standing in for the docker CLI.
func fakeBinary(t *testing.T, script string) string {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "docker")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestCLIRuntimeRun(t *testing.T) {
	bin := fakeBinary(t, `echo "$@"`+"\n")
	r := CLIRuntime{Binary: bin}

	res, err := r.Run(context.Background(), NewTemplate("/opt/pg").Run("echo exists"))
	require.NoError(t, err)
	require.Equal(t,
		"run --rm -v /opt/pg:/var/lib/postgresql centos:8 bash -c echo exists",
		res.Output())
	require.NoError(t, r.Close())
}

func TestCLIRuntimeExitCode(t *testing.T) {
	bin := fakeBinary(t, "echo 'permission denied' >&2\nexit 3\n")
	r := CLIRuntime{Binary: bin}

	res, err := r.Run(context.Background(), NewTemplate("/opt/pg").Run("true"))
	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	require.Equal(t, 3, exitErr.Code)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, exitErr.Error(), "permission denied")
}

func TestCLIRuntimeMissingBinary(t *testing.T) {
	r := CLIRuntime{Binary: filepath.Join(t.TempDir(), "no-such-docker")}
	_, err := r.Run(context.Background(), NewTemplate("/opt/pg").Run("true"))
	require.Error(t, err)
	var exitErr *ExitError
	require.False(t, errors.As(err, &exitErr))
}
