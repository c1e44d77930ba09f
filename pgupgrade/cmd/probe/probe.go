/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package probe

import (
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hypermodeinc/pgupgrade/pgupgrade/cmd/run"
	"github.com/hypermodeinc/pgupgrade/upgrade"
	"github.com/hypermodeinc/pgupgrade/x"
)

// Probe is the sub-command used to check whether a data directory needs upgrading.
var Probe x.SubCommand

func init() {
	Probe.Cmd = &cobra.Command{
		Use:   "probe",
		Short: "Report whether the postgres data directory needs upgrading",
		Long: `
Probe reads the PG_VERSION marker of the postgres data directory and prints
whether an upgrade would run. Nothing is stopped, created or removed. The exit
status is 0 when no upgrade is needed and 2 when one is.
`,
		Run: func(cmd *cobra.Command, args []string) {
			code, err := probe()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			os.Exit(code)
		},
		Annotations: map[string]string{"group": "tool"},
	}
	Probe.EnvPrefix = "PGUPGRADE_PROBE"
	Probe.Cmd.SetHelpTemplate(x.NonRootTemplate)
	x.FillUpgradeFlags(Probe.Cmd.Flags())
}

func probe() (int, error) {
	opts, err := run.ParseOptions(Probe.Conf)
	if err != nil {
		return 0, err
	}
	ctx, cancel := run.SignalContext()
	defer cancel()

	rt, err := opts.NewRuntime(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			glog.Warningf("Error while closing container runtime: %v", err)
		}
	}()

	proc, err := upgrade.New(opts.Upgrade, rt, nil)
	if err != nil {
		return 0, err
	}
	facts, err := proc.Detect(ctx)
	if facts != nil {
		if opts.Report != "" {
			if werr := upgrade.WriteReport(opts.Report, facts, err); werr != nil {
				glog.Errorf("%v", werr)
			}
		}
		run.PrintSummary(os.Stdout, facts)
	}
	if err != nil {
		return 0, err
	}
	return exitCode(facts), nil
}

// Exit codes of a successful probe.
const (
	codeCurrent      = 0
	codeNeedsUpgrade = 2
)

func exitCode(f *upgrade.Facts) int {
	if f.UpgradePostgres {
		return codeNeedsUpgrade
	}
	return codeCurrent
}
