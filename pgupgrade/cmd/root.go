/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package cmd

import (
	goflag "flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hypermodeinc/pgupgrade/pgupgrade/cmd/probe"
	"github.com/hypermodeinc/pgupgrade/pgupgrade/cmd/run"
	"github.com/hypermodeinc/pgupgrade/pgupgrade/cmd/version"
	"github.com/hypermodeinc/pgupgrade/x"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "pgupgrade",
	Short: "pgupgrade: in place Postgres major version upgrades for compose deployments",
	Long: `
pgupgrade checks the on-disk version of a Postgres data directory used by a
docker compose deployment and, when it is still in the legacy format, stops
the services and migrates the data with a dedicated upgrade image. All file
operations run inside throwaway containers with the data directory mounted.
` + x.BuildDetails(),
	PersistentPreRunE: cobra.NoArgs,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	initCmds()

	// glog complains about logging before flag.Parse. pflag does the real parsing.
	x.Check(goflag.CommandLine.Parse([]string{}))

	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootConf = viper.New()

// subcommands initially contains all default sub-commands.
var subcommands = []*x.SubCommand{
	&run.Run, &probe.Probe, &version.Version,
}

func initCmds() {
	RootCmd.PersistentFlags().String("config", "",
		"Configuration file. Takes precedence over default values, but is "+
			"overridden to values set with environment variables and flags.")
	x.Check(rootConf.BindPFlags(RootCmd.PersistentFlags()))

	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	// Always set stderrthreshold=0. Don't let users set it themselves.
	x.Check(flag.Set("stderrthreshold", "0"))
	x.Check(flag.CommandLine.MarkDeprecated("stderrthreshold",
		"pgupgrade always sets this flag to 0. It can't be overwritten."))

	for _, sc := range subcommands {
		RootCmd.AddCommand(sc.Cmd)
		bindAll(sc)
	}
	cobra.OnInitialize(func() {
		cfg := rootConf.GetString("config")
		if cfg == "" {
			return
		}
		for _, sc := range subcommands {
			sc.Conf.SetConfigFile(cfg)
			x.Check(x.Wrapf(sc.Conf.ReadInConfig(), "reading config"))
			flattenSuperFlags(sc)
		}
	})
}

// superFlags may be given as nested mappings in the config file.
var superFlags = []string{"upgrade"}

// flattenSuperFlags turns nested config file sections such as
//
//	upgrade:
//	  from: 10
//	  to: 12
//
// into the "from=10; to=12;" form the flags use. Flags set on the command
// line still win.
func flattenSuperFlags(sc *x.SubCommand) {
	for _, name := range superFlags {
		if f := sc.Cmd.Flags().Lookup(name); f == nil || f.Changed {
			continue
		}
		if m, ok := sc.Conf.Get(name).(map[string]interface{}); ok {
			sc.Conf.Set(name, superFlagString(m))
		}
	}
}

func superFlagString(m map[string]interface{}) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s=%v; ", k, m[k])
	}
	return strings.TrimSpace(sb.String())
}

// bindAll gives sc its own viper instance, reading its flags, the root's
// persistent flags and environment variables prefixed with sc.EnvPrefix.
func bindAll(sc *x.SubCommand) {
	sc.Conf = viper.New()
	x.Check(sc.Conf.BindPFlags(sc.Cmd.Flags()))
	x.Check(sc.Conf.BindPFlags(RootCmd.PersistentFlags()))
	sc.Conf.AutomaticEnv()
	sc.Conf.SetEnvPrefix(sc.EnvPrefix)
}
