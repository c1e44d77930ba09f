/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package run

import (
	"context"
	"strings"

	"github.com/dgraph-io/ristretto/v2/z"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/hypermodeinc/pgupgrade/compose"
	"github.com/hypermodeinc/pgupgrade/container"
	"github.com/hypermodeinc/pgupgrade/upgrade"
	"github.com/hypermodeinc/pgupgrade/x"
)

// Options is everything a command needs to inspect or upgrade a data directory.
type Options struct {
	Upgrade upgrade.Config

	Runtime        string
	DockerBinary   string
	ComposeCommand []string
	Report         string
	MetricsFile    string
}

// varKeys may be overridden through --vars.
var varKeys = []string{
	"postgres_data_dir", "pg_username", "docker_compose_dir", "compose_start_containers",
}

// ParseOptions reads the flags registered by x.FillUpgradeFlags from conf.
// Values given through --vars take precedence over flags, config file and
// environment.
func ParseOptions(conf *viper.Viper) (*Options, error) {
	vars, err := x.ParseVars(conf.GetString("vars"))
	if err != nil {
		return nil, errors.Wrap(err, "while parsing --vars")
	}
	for k := range vars {
		if !contains(varKeys, k) {
			return nil, errors.Errorf("unknown variable %q in --vars, expected one of %s",
				k, strings.Join(varKeys, ", "))
		}
	}
	get := func(key string) interface{} {
		if v, ok := vars[key]; ok {
			return v
		}
		return conf.Get(key)
	}
	getString := func(key string) (string, error) {
		s, err := cast.ToStringE(get(key))
		return s, errors.Wrapf(err, "invalid value for %s", key)
	}

	c := upgrade.DefaultConfig()
	if c.DataDir, err = getString("postgres_data_dir"); err != nil {
		return nil, err
	}
	if c.Username, err = getString("pg_username"); err != nil {
		return nil, err
	}
	if c.ComposeDir, err = getString("docker_compose_dir"); err != nil {
		return nil, err
	}
	if c.StartContainers, err = x.ToBool(get("compose_start_containers")); err != nil {
		return nil, errors.Wrap(err, "invalid value for compose_start_containers")
	}

	sf := z.NewSuperFlag(conf.GetString("upgrade")).MergeAndCheckDefault(x.UpgradeDefaults)
	c.Image = sf.GetString("image")
	c.FromVersion = sf.GetString("from")
	c.ToVersion = sf.GetString("to")
	c.MountPath = sf.GetString("mount")
	c.HelperImage = sf.GetString("helper")
	c.Shell = sf.GetString("shell")
	c.DryRun = conf.GetBool("dry_run")
	if err := c.Validate(); err != nil {
		return nil, err
	}

	opts := &Options{
		Upgrade:      c,
		Runtime:      strings.ToLower(conf.GetString("runtime")),
		DockerBinary: conf.GetString("docker_binary"),
		Report:       conf.GetString("report"),
		MetricsFile:  conf.GetString("metrics_file"),
	}
	switch opts.Runtime {
	case x.RuntimeAPI, x.RuntimeCLI:
	default:
		return nil, errors.Errorf("invalid --runtime %q, must be %s or %s",
			opts.Runtime, x.RuntimeAPI, x.RuntimeCLI)
	}
	if opts.ComposeCommand, err = shellquote.Split(conf.GetString("compose_command")); err != nil {
		return nil, errors.Wrap(err, "while parsing --compose_command")
	}
	if len(opts.ComposeCommand) == 0 {
		opts.ComposeCommand = compose.DefaultCommand
	}
	return opts, nil
}

// NewRuntime returns the container runtime selected by --runtime.
func (o *Options) NewRuntime(ctx context.Context) (container.Runtime, error) {
	if o.Runtime == x.RuntimeCLI {
		return &container.CLIRuntime{Binary: o.DockerBinary}, nil
	}
	rt, err := container.NewDockerRuntime(ctx)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

// LoadProject loads the compose project controlling the service stack.
func (o *Options) LoadProject() (*compose.Project, error) {
	if strings.TrimSpace(o.Upgrade.ComposeDir) == "" {
		return nil, errors.New("docker_compose_dir is required")
	}
	p, err := compose.Load(o.Upgrade.ComposeDir)
	if err != nil {
		return nil, err
	}
	p.Command = o.ComposeCommand
	return p, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
