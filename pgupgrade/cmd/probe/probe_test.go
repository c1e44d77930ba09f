/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package probe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypermodeinc/pgupgrade/upgrade"
)

func TestExitCode(t *testing.T) {
	legacy, current := "10", "12"
	tests := []struct {
		name  string
		facts upgrade.Facts
		code  int
	}{
		{name: "no marker", facts: upgrade.Facts{}, code: 0},
		{name: "current version",
			facts: upgrade.Facts{VersionFileExists: true, OldVersion: &current}, code: 0},
		{name: "legacy version",
			facts: upgrade.Facts{VersionFileExists: true, OldVersion: &legacy, UpgradePostgres: true},
			code:  2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, exitCode(&tc.facts))
		})
	}
}

func TestProbeRegistered(t *testing.T) {
	require.Equal(t, "probe", Probe.Cmd.Name())
	require.Equal(t, "PGUPGRADE_PROBE", Probe.EnvPrefix)
	require.NotNil(t, Probe.Cmd.Flags().Lookup("postgres_data_dir"))
}
