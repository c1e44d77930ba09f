/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/pgupgrade/container"
)

// Step names, in execution order.
const (
	StepContainerCommand = "compose-container-command"
	StepDetectVersion    = "detect-version-file"
	StepReadVersion      = "read-old-version"
	StepDecide           = "decide-upgrade"
	StepStopServices     = "stop-services"
	StepPrepareTarget    = "prepare-target-dir"
	StepRunUpgrade       = "run-upgrade-image"
	StepCopyHba          = "copy-pg-hba"
	StepRemoveOldData    = "remove-old-data"
)

type step struct {
	name        string
	description string
	// mutates is set for steps that change the service stack or the data directory.
	mutates bool
	// tolerant steps record their error and let the run continue.
	tolerant bool
	when     func(f *Facts) bool
	run      func(ctx context.Context, f *Facts) error
}

func upgrading(f *Facts) bool { return f.UpgradePostgres }

func (p *Procedure) steps() []step {
	return []step{
		{
			name:        StepContainerCommand,
			description: "build the helper container command",
			run:         p.composeContainerCommand,
		},
		{
			name:        StepDetectVersion,
			description: "check for the legacy PG_VERSION file",
			tolerant:    true,
			run:         p.detectVersionFile,
		},
		{
			name:        StepReadVersion,
			description: "read the legacy PG_VERSION file",
			when:        func(f *Facts) bool { return f.VersionFileExists },
			run:         p.readOldVersion,
		},
		{
			name:        StepDecide,
			description: "decide whether postgres needs upgrading",
			when:        func(f *Facts) bool { return f.OldVersion != nil },
			run:         p.decideUpgrade,
		},
		{
			name:        StepStopServices,
			description: "stop the compose services",
			mutates:     true,
			when:        upgrading,
			run:         p.stopServices,
		},
		{
			name:        StepPrepareTarget,
			description: "create the target data directory",
			mutates:     true,
			when:        upgrading,
			run:         p.prepareTargetDir,
		},
		{
			name:        StepRunUpgrade,
			description: "run the postgres upgrade image",
			mutates:     true,
			when:        upgrading,
			run:         p.runUpgradeImage,
		},
		{
			name:        StepCopyHba,
			description: "copy pg_hba.conf to the target data directory",
			mutates:     true,
			when:        upgrading,
			run:         p.copyHba,
		},
		{
			// Gated on compose_start_containers alone, not on the upgrade decision.
			name:        StepRemoveOldData,
			description: "remove the legacy data directory",
			mutates:     true,
			when:        func(f *Facts) bool { return f.ComposeStartContainers },
			run:         p.removeOldData,
		},
	}
}

func (p *Procedure) composeContainerCommand(_ context.Context, f *Facts) error {
	dir, err := resolveDataDir(p.conf.DataDir, f.DryRun)
	if err != nil {
		return err
	}
	f.DataDir = dir
	p.tmpl = container.Template{
		Image:     p.conf.HelperImage,
		HostDir:   dir,
		MountPath: p.conf.MountPath,
		Shell:     p.conf.Shell,
		Labels:    map[string]string{labelRunID: f.RunID},
	}
	f.ContainerCommand = p.tmpl.String()
	return nil
}

func (p *Procedure) detectVersionFile(ctx context.Context, f *Facts) error {
	out, err := p.exec(ctx, StepDetectVersion,
		"test -f "+shellquote.Join(p.conf.markerFile())+" && echo exists")
	if err != nil {
		return err
	}
	f.VersionFileExists = out == "exists"
	return nil
}

func (p *Procedure) readOldVersion(ctx context.Context, f *Facts) error {
	out, err := p.exec(ctx, StepReadVersion, "cat "+shellquote.Join(p.conf.markerFile()))
	if err != nil {
		return err
	}
	f.OldVersion = &out
	glog.Infof("Found postgres data directory version %q", out)
	return nil
}

func (p *Procedure) decideUpgrade(_ context.Context, f *Facts) error {
	f.UpgradePostgres = f.OldVersion != nil && *f.OldVersion == p.conf.FromVersion
	if f.UpgradePostgres {
		glog.Infof("Postgres data in %s needs upgrading from %s to %s",
			f.DataDir, p.conf.FromVersion, p.conf.ToVersion)
	}
	return nil
}

func (p *Procedure) stopServices(ctx context.Context, _ *Facts) error {
	if p.stack == nil {
		return errors.New("no compose project configured")
	}
	return p.stack.Stop(ctx)
}

func (p *Procedure) prepareTargetDir(ctx context.Context, _ *Facts) error {
	_, err := p.exec(ctx, StepPrepareTarget,
		"mkdir -p "+shellquote.Join(p.conf.versionDir(p.conf.ToVersion)))
	return err
}

// upgradeSpec runs the upgrade image with both version directories visible
// below the mount path.
func (p *Procedure) upgradeSpec() container.Spec {
	user := p.conf.Username
	return container.Spec{
		Image: p.conf.UpgradeImage(),
		Cmd:   []string{"--username=" + user},
		Env: []string{
			"PGUSER=" + user,
			"POSTGRES_INITDB_ARGS=-U " + user,
		},
		Mounts: []container.Mount{p.tmpl.Mount()},
		Labels: p.labels(StepRunUpgrade),
	}
}

func (p *Procedure) runUpgradeImage(ctx context.Context, _ *Facts) error {
	spec := p.upgradeSpec()
	glog.Infof("Running %s against %s", spec.Image, p.tmpl.HostDir)
	res, err := p.rt.Run(ctx, spec)
	if err != nil {
		return err
	}
	glog.V(2).Infof("%s output:\n%s", spec.Image, res.Stdout)
	return nil
}

func (p *Procedure) copyHba(ctx context.Context, _ *Facts) error {
	_, err := p.exec(ctx, StepCopyHba,
		shellquote.Join("cp", p.conf.oldHbaFile(), p.conf.newHbaFile()))
	return err
}

func (p *Procedure) removeOldData(ctx context.Context, f *Facts) error {
	old := filepath.Join(f.DataDir, p.conf.FromVersion, "data")
	if size, err := dirSize(old); err == nil {
		glog.Infof("Removing %s (%s)", old, humanize.Bytes(size))
	} else {
		glog.Infof("Removing %s", old)
	}
	_, err := p.exec(ctx, StepRemoveOldData,
		"rm -rf "+shellquote.Join(p.conf.versionDir(p.conf.FromVersion)))
	return err
}

// dirSize sums the sizes of the regular files below dir. The data directory
// is usually owned by the postgres user, so failures are common and only
// affect logging.
func dirSize(dir string) (uint64, error) {
	var size uint64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += uint64(info.Size())
		return nil
	})
	return size, err
}
