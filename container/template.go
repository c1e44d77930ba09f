/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package container

import (
	"github.com/kballard/go-shellquote"
)

const (
	DefaultHelperImage = "centos:8"
	DefaultMountPath   = "/var/lib/postgresql"
	DefaultShell       = "bash"
)

// Template runs shell fragments inside a throwaway helper container with
// HostDir mounted at MountPath. Building a template executes nothing.
type Template struct {
	Image     string
	HostDir   string
	MountPath string
	Shell     string
	Labels    map[string]string
}

// NewTemplate returns a template with the default helper image, mount path and shell.
func NewTemplate(hostDir string) Template {
	return Template{
		Image:     DefaultHelperImage,
		HostDir:   hostDir,
		MountPath: DefaultMountPath,
		Shell:     DefaultShell,
	}
}

func (t Template) shell() string {
	if t.Shell == "" {
		return DefaultShell
	}
	return t.Shell
}

// Mount is the bind mount shared by every run of the template.
func (t Template) Mount() Mount {
	return Mount{Source: t.HostDir, Target: t.MountPath}
}

// Run returns the spec that executes fragment with the template's shell.
func (t Template) Run(fragment string) Spec {
	return Spec{
		Image:  t.Image,
		Cmd:    []string{t.shell(), "-c", fragment},
		Mounts: []Mount{t.Mount()},
		Labels: t.Labels,
	}
}

// String renders the template as the docker command line prefix that a
// fragment would be appended to.
func (t Template) String() string {
	return shellquote.Join("docker", "run", "--rm", "-v", t.Mount().String(),
		t.Image, t.shell(), "-c")
}

// CommandLine renders the full docker command line for fragment.
func (t Template) CommandLine(fragment string) string {
	return t.String() + " " + shellquote.Join(fragment)
}
