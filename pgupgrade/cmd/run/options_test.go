/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package run

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/pgupgrade/container"
	"github.com/hypermodeinc/pgupgrade/upgrade"
	"github.com/hypermodeinc/pgupgrade/x"
)

var required = []string{
	"--postgres_data_dir=/opt/awx/pgdocker",
	"--pg_username=awx",
	"--docker_compose_dir=/opt/awx/awxcompose",
}

func newConf(t *testing.T, args ...string) *viper.Viper {
	flag := pflag.NewFlagSet("run", pflag.ContinueOnError)
	x.FillUpgradeFlags(flag)
	flag.Bool("dry_run", false, "")
	flag.String("metrics_file", "", "")
	require.NoError(t, flag.Parse(args))

	conf := viper.New()
	require.NoError(t, conf.BindPFlags(flag))
	conf.AutomaticEnv()
	conf.SetEnvPrefix("PGUPGRADE_TEST")
	return conf
}

func TestParseOptionsDefaults(t *testing.T) {
	opts, err := ParseOptions(newConf(t, required...))
	require.NoError(t, err)

	want := upgrade.DefaultConfig()
	want.DataDir = "/opt/awx/pgdocker"
	want.Username = "awx"
	want.ComposeDir = "/opt/awx/awxcompose"
	require.Equal(t, want, opts.Upgrade)
	require.Equal(t, "tianon/postgres-upgrade:10-to-12", opts.Upgrade.UpgradeImage())
	require.Equal(t, x.RuntimeAPI, opts.Runtime)
	require.Equal(t, []string{"docker", "compose"}, opts.ComposeCommand)
	require.Empty(t, opts.Report)
}

func TestParseOptionsVars(t *testing.T) {
	tests := []struct {
		name  string
		vars  string
		user  string
		start bool
	}{
		{name: "json", vars: `{"pg_username": "postgres", "compose_start_containers": "T"}`,
			user: "postgres", start: true},
		{name: "json bool", vars: `{"compose_start_containers": true}`, user: "awx", start: true},
		{name: "yaml", vars: "pg_username: admin\ncompose_start_containers: 0\n",
			user: "admin", start: false},
		{name: "empty", vars: "", user: "awx", start: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts, err := ParseOptions(newConf(t, append(required, "--vars="+tc.vars)...))
			require.NoError(t, err)
			require.Equal(t, tc.user, opts.Upgrade.Username)
			require.Equal(t, tc.start, opts.Upgrade.StartContainers)
		})
	}
}

func TestParseOptionsErrors(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{name: "unknown var", args: []string{`--vars={"pg_password": "x"}`},
			errMsg: `unknown variable "pg_password"`},
		{name: "vars not a mapping", args: []string{"--vars=[1, 2]"},
			errMsg: "is not a mapping"},
		{name: "bad bool", args: []string{"--compose_start_containers=maybe"},
			errMsg: "invalid value for compose_start_containers"},
		{name: "numeric bool", args: []string{`--vars={"compose_start_containers": 2}`},
			errMsg: "invalid value for compose_start_containers"},
		{name: "null bool", args: []string{`--vars={"compose_start_containers": null}`},
			errMsg: "invalid value for compose_start_containers"},
		{name: "bad runtime", args: []string{"--runtime=podman"},
			errMsg: `invalid --runtime "podman"`},
		{name: "bad versions", args: []string{"--upgrade=from=12; to=10;"},
			errMsg: "must be less than"},
		{name: "bad compose command", args: []string{`--compose_command=docker "compose`},
			errMsg: "while parsing --compose_command"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseOptions(newConf(t, append(append([]string{}, required...),
				tc.args...)...))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.errMsg)
		})
	}

	_, err := ParseOptions(newConf(t, "--pg_username=awx"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "postgres data dir")
}

func TestParseOptionsSuperFlag(t *testing.T) {
	opts, err := ParseOptions(newConf(t, append(required,
		"--upgrade=from=12; to=13; helper=busybox; shell=sh;",
		"--runtime=CLI", "--docker_binary=/usr/local/bin/docker",
		"--compose_command=docker-compose", "--dry_run")...))
	require.NoError(t, err)

	c := opts.Upgrade
	require.Equal(t, "tianon/postgres-upgrade:12-to-13", c.UpgradeImage())
	require.Equal(t, "busybox", c.HelperImage)
	require.Equal(t, "sh", c.Shell)
	require.Equal(t, container.DefaultMountPath, c.MountPath)
	require.True(t, c.DryRun)
	require.Equal(t, x.RuntimeCLI, opts.Runtime)
	require.Equal(t, []string{"docker-compose"}, opts.ComposeCommand)

	rt, err := opts.NewRuntime(context.Background())
	require.NoError(t, err)
	require.Equal(t, &container.CLIRuntime{Binary: "/usr/local/bin/docker"}, rt)
}

func TestParseOptionsEnv(t *testing.T) {
	t.Setenv("PGUPGRADE_TEST_PG_USERNAME", "fromenv")
	t.Setenv("PGUPGRADE_TEST_COMPOSE_START_CONTAINERS", "True")
	opts, err := ParseOptions(newConf(t,
		"--postgres_data_dir=/opt/awx/pgdocker", "--docker_compose_dir=/opt/awx/awxcompose"))
	require.NoError(t, err)
	require.Equal(t, "fromenv", opts.Upgrade.Username)
	require.True(t, opts.Upgrade.StartContainers)
}

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docker-compose.yml"),
		[]byte("services:\n  postgres:\n    image: postgres:12\n"), 0o644))

	opts, err := ParseOptions(newConf(t, "--postgres_data_dir=/opt/awx/pgdocker",
		"--docker_compose_dir="+dir, "--compose_command=docker-compose"))
	require.NoError(t, err)
	p, err := opts.LoadProject()
	require.NoError(t, err)
	require.Equal(t, []string{"docker-compose"}, p.Command)
	require.Equal(t, []string{"postgres"}, p.Services())

	opts.Upgrade.ComposeDir = ""
	_, err = opts.LoadProject()
	require.Error(t, err)
}

func TestPrintSummary(t *testing.T) {
	old := "10"
	f := &upgrade.Facts{
		RunID:             "run-1",
		DataDir:           "/opt/awx/pgdocker",
		VersionFileExists: true,
		OldVersion:        &old,
		UpgradePostgres:   true,
		Steps: []upgrade.StepResult{
			{Name: upgrade.StepDetectVersion, Status: upgrade.StatusRan,
				Duration: 1500 * time.Millisecond},
			{Name: upgrade.StepStopServices, Status: upgrade.StatusFailed,
				Error: "compose failed"},
		},
	}
	var buf bytes.Buffer
	PrintSummary(&buf, f)
	out := buf.String()
	require.Contains(t, out, "Run run-1 on /opt/awx/pgdocker")
	require.Contains(t, out, " 1. detect-version-file")
	require.Contains(t, out, "1.5s")
	require.Contains(t, out, "(compose failed)")
	require.Contains(t, out, `old_pg_version="10" upgrade_postgres=true`)
}
