/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package upgrade

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"

	"github.com/hypermodeinc/pgupgrade/container"
)

const (
	// LegacyVersion is the on-disk format version that triggers an upgrade.
	LegacyVersion = "10"
	// TargetVersion is the version the upgrade image migrates to.
	TargetVersion = "12"

	upgradeImageFmt = "tianon/postgres-upgrade:%s-to-%s"
)

// Config holds the inputs of the upgrade procedure.
type Config struct {
	// DataDir is the host directory holding one sub-directory per Postgres major version.
	DataDir string
	// Username is the database superuser passed to the upgrade image.
	Username string
	// ComposeDir is the directory of the compose project running the service stack.
	ComposeDir string
	// StartContainers gates removal of the legacy data directory.
	StartContainers bool

	FromVersion string
	ToVersion   string
	// Image is the upgrade image. Empty means tianon/postgres-upgrade:<from>-to-<to>.
	Image string
	// HelperImage, MountPath and Shell configure the transient helper containers.
	HelperImage string
	MountPath   string
	Shell       string

	DryRun bool
}

// DefaultConfig returns a config upgrading 10 to 12 with the default images.
func DefaultConfig() Config {
	return Config{
		FromVersion: LegacyVersion,
		ToVersion:   TargetVersion,
		HelperImage: container.DefaultHelperImage,
		MountPath:   container.DefaultMountPath,
		Shell:       container.DefaultShell,
	}
}

// UpgradeImage returns the image that performs the binary upgrade.
func (c Config) UpgradeImage() string {
	if c.Image != "" {
		return c.Image
	}
	return fmt.Sprintf(upgradeImageFmt, c.FromVersion, c.ToVersion)
}

// Validate checks the inputs needed to inspect the data directory and that
// FromVersion is older than ToVersion. Username is only checked once an
// upgrade is run.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.DataDir) == "" {
		missing = append(missing, "postgres data dir")
	}
	if strings.TrimSpace(c.HelperImage) == "" {
		missing = append(missing, "helper image")
	}
	if strings.TrimSpace(c.MountPath) == "" {
		missing = append(missing, "mount path")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if !strings.HasPrefix(c.MountPath, "/") {
		return errors.Errorf("mount path %q must be absolute", c.MountPath)
	}

	from, err := semver.NewVersion(c.FromVersion)
	if err != nil {
		return errors.Wrapf(err, "error parsing from version %q", c.FromVersion)
	}
	to, err := semver.NewVersion(c.ToVersion)
	if err != nil {
		return errors.Wrapf(err, "error parsing to version %q", c.ToVersion)
	}
	if !from.LessThan(to) {
		return errors.Errorf("from version `%s` must be less than to version `%s`",
			c.FromVersion, c.ToVersion)
	}
	return nil
}

// versionDir is the in-container data directory of a major version.
func (c Config) versionDir(version string) string {
	return strings.TrimRight(c.MountPath, "/") + "/" + version + "/data"
}

func (c Config) markerFile() string {
	return c.versionDir(c.FromVersion) + "/PG_VERSION"
}

func (c Config) oldHbaFile() string {
	return c.versionDir(c.FromVersion) + "/pg_hba.conf"
}

func (c Config) newHbaFile() string {
	return c.versionDir(c.ToVersion) + "/pg_hba.conf"
}
