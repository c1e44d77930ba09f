/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package run

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"github.com/hypermodeinc/pgupgrade/upgrade"
	"github.com/hypermodeinc/pgupgrade/x"
)

// Run is the sub-command used to upgrade a postgres data directory.
var Run x.SubCommand

func init() {
	Run.Cmd = &cobra.Command{
		Use:   "run",
		Short: "Upgrade the postgres data directory if it is in the legacy format",
		Long: `
Run inspects the postgres data directory through a throwaway container. If its
PG_VERSION marker shows the legacy major version, the compose services are
stopped, the upgrade image migrates the data in place and pg_hba.conf is
carried over. With compose_start_containers set, the legacy data directory is
removed afterwards.
`,
		Example: `  pgupgrade run --postgres_data_dir=/opt/awx/pgdocker --pg_username=awx \
    --docker_compose_dir=/opt/awx/awxcompose --compose_start_containers=true`,
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
		Annotations: map[string]string{"group": "core"},
	}
	Run.EnvPrefix = "PGUPGRADE_RUN"
	Run.Cmd.SetHelpTemplate(x.NonRootTemplate)

	flag := Run.Cmd.Flags()
	x.FillUpgradeFlags(flag)
	flag.Bool("dry_run", false,
		"Inspect the data directory and log what would be done, without changing anything.")
	flag.String("metrics_file", "",
		"Write step metrics in the prometheus text format to this file, "+
			"e.g. for the node exporter textfile collector.")
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func run() error {
	opts, err := ParseOptions(Run.Conf)
	if err != nil {
		return err
	}
	project, err := opts.LoadProject()
	if err != nil {
		return err
	}
	if using := project.ServicesUsing(opts.Upgrade.DataDir); len(using) > 0 {
		glog.Infof("Compose services using %s: %v", opts.Upgrade.DataDir, using)
	}

	ctx, cancel := SignalContext()
	defer cancel()

	rt, err := opts.NewRuntime(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			glog.Warningf("Error while closing container runtime: %v", err)
		}
	}()

	proc, err := upgrade.New(opts.Upgrade, rt, project)
	if err != nil {
		return err
	}
	var metrics *upgrade.Metrics
	if opts.MetricsFile != "" {
		metrics = upgrade.NewMetrics()
		proc.WithMetrics(metrics)
	}

	facts, runErr := proc.Run(ctx)
	if facts != nil {
		if opts.Report != "" {
			if err := upgrade.WriteReport(opts.Report, facts, runErr); err != nil {
				glog.Errorf("%v", err)
			}
		}
		PrintSummary(os.Stdout, facts)
	}
	if metrics != nil {
		if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
			glog.Errorf("%v", err)
		}
	}
	return runErr
}
