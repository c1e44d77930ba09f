/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package upgrade detects a Postgres data directory in the legacy on-disk
// format and migrates it in place using transient containers.
package upgrade

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/pgupgrade/compose"
	"github.com/hypermodeinc/pgupgrade/container"
)

const (
	labelRunID = "io.hypermode.pgupgrade.run-id"
	labelStep  = "io.hypermode.pgupgrade.step"
)

// Procedure runs the upgrade steps in order against a single data directory.
type Procedure struct {
	conf    Config
	rt      container.Runtime
	stack   compose.Stopper
	metrics *Metrics

	// tmpl is set by the first step of a run.
	tmpl container.Template
}

// New returns a procedure for conf. stack may be nil when only Detect is used.
func New(conf Config, rt container.Runtime, stack compose.Stopper) (*Procedure, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if rt == nil {
		return nil, errors.New("container runtime is required")
	}
	return &Procedure{conf: conf, rt: rt, stack: stack}, nil
}

// WithMetrics makes the procedure record step outcomes in m.
func (p *Procedure) WithMetrics(m *Metrics) *Procedure {
	p.metrics = m
	return p
}

// Run executes every step. The returned facts are valid even when an error is
// returned, and describe how far the run got.
func (p *Procedure) Run(ctx context.Context) (*Facts, error) {
	if strings.TrimSpace(p.conf.Username) == "" {
		return nil, errors.New("postgres username is required to run an upgrade")
	}
	return p.run(ctx, false)
}

// Detect executes only the steps that inspect the data directory and decide
// whether an upgrade is needed. It never mutates anything.
func (p *Procedure) Detect(ctx context.Context) (*Facts, error) {
	return p.run(ctx, true)
}

func (p *Procedure) run(ctx context.Context, detectOnly bool) (*Facts, error) {
	f := &Facts{
		RunID:                  uuid.New().String(),
		Started:                time.Now(),
		DryRun:                 p.conf.DryRun || detectOnly,
		ComposeStartContainers: p.conf.StartContainers,
	}
	glog.Infof("Starting postgres upgrade check %s for %s (from=%s to=%s dry_run=%v)",
		f.RunID, p.conf.DataDir, p.conf.FromVersion, p.conf.ToVersion, f.DryRun)

	err := p.runSteps(ctx, f, detectOnly)
	if p.metrics != nil {
		p.metrics.observeRun(f, err)
	}
	if err != nil {
		glog.Errorf("Postgres upgrade %s failed: %v", f.RunID, err)
		return f, err
	}
	glog.Infof("Postgres upgrade %s done: %s", f.RunID, f)
	return f, nil
}

func (p *Procedure) runSteps(ctx context.Context, f *Facts, detectOnly bool) error {
	for _, s := range p.steps() {
		if detectOnly && s.mutates {
			continue
		}
		res := StepResult{Name: s.name, Description: s.description}
		switch {
		case s.when != nil && !s.when(f):
			res.Status = StatusSkipped
			glog.Infof("[%s] Skipped", s.name)
		case s.mutates && f.DryRun:
			res.Status = StatusDryRun
			glog.Infof("[%s] Dry run, would %s", s.name, s.description)
		default:
			start := time.Now()
			err := s.run(ctx, f)
			res.Duration = time.Since(start)
			switch {
			case err == nil:
				res.Status = StatusRan
				glog.Infof("[%s] Successful", s.name)
			case s.tolerant && ctx.Err() == nil:
				res.Status = StatusTolerated
				res.Error = err.Error()
				glog.Infof("[%s] Ignoring error: %v", s.name, err)
			default:
				res.Status = StatusFailed
				res.Error = err.Error()
				f.Steps = append(f.Steps, res)
				p.observe(res)
				return &StepError{Step: s.name, Description: s.description, Err: err}
			}
		}
		f.Steps = append(f.Steps, res)
		p.observe(res)
	}
	return nil
}

func (p *Procedure) observe(res StepResult) {
	if p.metrics != nil {
		p.metrics.observeStep(res)
	}
}

// exec runs fragment in a helper container and returns its trimmed stdout.
func (p *Procedure) exec(ctx context.Context, step, fragment string) (string, error) {
	spec := p.tmpl.Run(fragment)
	spec.Labels = p.labels(step)
	glog.V(2).Infof("[%s] %s", step, p.tmpl.CommandLine(fragment))
	res, err := p.rt.Run(ctx, spec)
	return res.Output(), err
}

func (p *Procedure) labels(step string) map[string]string {
	labels := make(map[string]string, len(p.tmpl.Labels)+1)
	for k, v := range p.tmpl.Labels {
		labels[k] = v
	}
	labels[labelStep] = step
	return labels
}

// resolveDataDir makes dir absolute and resolves symlinks. The directory is
// created first unless dryRun is set, in which case a missing directory is
// returned as an absolute path.
func resolveDataDir(dir string, dryRun bool) (string, error) {
	if !dryRun {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", errors.Wrapf(err, "while creating %s", dir)
		}
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", errors.Wrapf(err, "error finding absolute path of %s", dir)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	switch {
	case err == nil:
		return resolved, nil
	case dryRun && os.IsNotExist(err):
		return abs, nil
	default:
		return "", errors.Wrapf(err, "while resolving %s", abs)
	}
}
