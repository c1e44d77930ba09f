/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package x

import (
	"github.com/dgraph-io/ristretto/v2/z"
	"github.com/spf13/pflag"
)

const (
	// UpgradeDefaults are the defaults of the --upgrade superflag.
	UpgradeDefaults = `image=; from=10; to=12; mount=/var/lib/postgresql; helper=centos:8; ` +
		`shell=bash;`

	// RuntimeAPI talks to the docker daemon over its API, RuntimeCLI shells out to the
	// docker binary.
	RuntimeAPI = "api"
	RuntimeCLI = "cli"
)

// FillUpgradeFlags registers the flags shared by the commands that inspect or
// upgrade a data directory.
func FillUpgradeFlags(flag *pflag.FlagSet) {
	flag.String("postgres_data_dir", "",
		"Host directory holding the postgres data, one sub-directory per major version.")
	flag.String("pg_username", "", "Postgres superuser passed to the upgrade image.")
	flag.String("docker_compose_dir", "",
		"Directory of the docker compose project running the service stack.")
	flag.String("compose_start_containers", "false",
		"Remove the legacy data directory once done. Accepts true/false, 1/0 and t/f.")
	flag.String("vars", "",
		"Inline JSON or YAML mapping of variables overriding the flags above, "+
			`e.g. '{"pg_username": "awx", "compose_start_containers": true}'.`)

	flag.String("upgrade", UpgradeDefaults, z.NewSuperFlagHelp(UpgradeDefaults).
		Head("Upgrade options").
		Flag("image",
			"Upgrade image. Defaults to tianon/postgres-upgrade:<from>-to-<to>.").
		Flag("from",
			"Major version whose PG_VERSION marker triggers the upgrade.").
		Flag("to",
			"Major version to upgrade to.").
		Flag("mount",
			"Path the data directory is mounted at inside the containers.").
		Flag("helper",
			"Image used to inspect and modify the mounted data directory.").
		Flag("shell",
			"Shell of the helper image used to run commands.").
		String())

	flag.String("runtime", RuntimeAPI,
		"How containers are run: "+RuntimeAPI+" (docker engine API) or "+RuntimeCLI+
			" (docker binary).")
	flag.String("docker_binary", "docker", "Docker binary used by the cli runtime.")
	flag.String("compose_command", "docker compose",
		`Command controlling the compose project, e.g. "docker compose" or "docker-compose".`)
	flag.String("report", "", "Write a YAML report of the run to this file.")
}
