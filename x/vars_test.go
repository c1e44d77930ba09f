/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseVars(t *testing.T) {
	vars, err := ParseVars(`{"pg_username": "awx", "compose_start_containers": true}`)
	require.NoError(t, err)
	require.Equal(t, "awx", vars["pg_username"])
	require.Equal(t, true, vars["compose_start_containers"])

	vars, err = ParseVars("pg_username: awx\npostgres_data_dir: /opt/pgdocker\n")
	require.NoError(t, err)
	require.Equal(t, "awx", vars["pg_username"])
	require.Equal(t, "/opt/pgdocker", vars["postgres_data_dir"])

	for _, empty := range []string{"", `""`, "---", "null", "  "} {
		vars, err = ParseVars(empty)
		require.NoError(t, err, "input %q", empty)
		require.Empty(t, vars, "input %q", empty)
	}
}

func TestParseVarsNotAMapping(t *testing.T) {
	_, err := ParseVars(`[1, 2, 3]`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a mapping")

	_, err = ParseVars("just a string")
	require.Error(t, err)

	_, err = ParseVars("{ unbalanced: [")
	require.Error(t, err)
	require.Contains(t, err.Error(), "cannot parse as JSON")
}

func TestToBool(t *testing.T) {
	for _, in := range []interface{}{"true", "TRUE", "1", "t", "T", true, 1, int64(1), float64(1)} {
		b, err := ToBool(in)
		require.NoError(t, err, "input %v", in)
		require.True(t, b, "input %v", in)
	}
	for _, in := range []interface{}{"false", "False", "0", "f", false, 0, float64(0)} {
		b, err := ToBool(in)
		require.NoError(t, err, "input %v", in)
		require.False(t, b, "input %v", in)
	}
	for _, in := range []interface{}{"yes", "no", "none", "", nil, 2, -1, 1.5, "1.0",
		[]interface{}{true}} {
		_, err := ToBool(in)
		require.Error(t, err, "input %v", in)
	}
}

// YAML 1.2 has no yes/no booleans, so they reach ToBool as strings and are
// rejected like any other unknown word.
func TestParseVarsYesNo(t *testing.T) {
	vars, err := ParseVars("compose_start_containers: yes\n")
	require.NoError(t, err)
	require.Equal(t, "yes", vars["compose_start_containers"])
	_, err = ToBool(vars["compose_start_containers"])
	require.Error(t, err)

	vars, err = ParseVars("compose_start_containers: true\n")
	require.NoError(t, err)
	b, err := ToBool(vars["compose_start_containers"])
	require.NoError(t, err)
	require.True(t, b)
}
