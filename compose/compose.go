/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

// Package compose controls a docker compose project living in a directory.
package compose

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// fileNames are looked up in order, as docker compose itself does.
var fileNames = []string{"compose.yaml", "compose.yml", "docker-compose.yml", "docker-compose.yaml"}

// DefaultCommand is the compose v2 plugin. Use []string{"docker-compose"} for v1.
var DefaultCommand = []string{"docker", "compose"}

type Volume struct {
	Type     string
	Source   string
	Target   string
	ReadOnly bool `yaml:"read_only"`
}

// Service is the part of a compose service definition we care about.
// Volumes may use the short ("src:dst") or long syntax, so they are kept raw.
type Service struct {
	Image         string
	ContainerName string      `yaml:"container_name"`
	DependsOn     interface{} `yaml:"depends_on,omitempty"`
	Volumes       []yaml.Node `yaml:"volumes,omitempty"`
}

type ComposeConfig struct {
	Version  string `yaml:",omitempty"`
	Services map[string]Service
	Volumes  map[string]interface{} `yaml:",omitempty"`
}

// Stopper stops a running service stack.
type Stopper interface {
	Stop(ctx context.Context) error
}

// Project is a compose project rooted at Dir.
type Project struct {
	Dir     string
	File    string
	Command []string
	Config  ComposeConfig
}

var _ Stopper = (*Project)(nil)

// Load finds and parses the compose file in dir.
func Load(dir string) (*Project, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "error finding absolute path of %s", dir)
	}
	p := &Project{Dir: abs, Command: DefaultCommand}
	for _, name := range fileNames {
		path := filepath.Join(abs, name)
		if _, err := os.Stat(path); err == nil {
			p.File = path
			break
		}
	}
	if p.File == "" {
		return nil, errors.Errorf("no compose file found in %s (looked for %s)",
			abs, strings.Join(fileNames, ", "))
	}

	data, err := os.ReadFile(p.File)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading %s", p.File)
	}
	if err := yaml.Unmarshal(data, &p.Config); err != nil {
		return nil, errors.Wrapf(err, "while parsing %s", p.File)
	}
	return p, nil
}

// Name is the compose project name, which defaults to the directory's base name.
func (p *Project) Name() string {
	return filepath.Base(p.Dir)
}

// Services returns the sorted service names of the project.
func (p *Project) Services() []string {
	names := make([]string, 0, len(p.Config.Services))
	for name := range p.Config.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ServicesUsing returns the services that mount hostDir (or a path below it).
// A relative hostDir is taken relative to the working directory.
func (p *Project) ServicesUsing(hostDir string) []string {
	if abs, err := filepath.Abs(hostDir); err == nil {
		hostDir = abs
	}
	var out []string
	for _, name := range p.Services() {
		for _, v := range p.Config.Services[name].Volumes {
			src := volumeSource(&v)
			if src == "" {
				continue
			}
			if !filepath.IsAbs(src) {
				src = filepath.Join(p.Dir, src)
			}
			if within(src, hostDir) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}

func volumeSource(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		src, _, _ := strings.Cut(n.Value, ":")
		return src
	case yaml.MappingNode:
		var v Volume
		if err := n.Decode(&v); err != nil {
			return ""
		}
		return v.Source
	}
	return ""
}

func within(path, dir string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (p *Project) command(ctx context.Context, args ...string) *exec.Cmd {
	name := p.Command
	if len(name) == 0 {
		name = DefaultCommand
	}
	full := append(append([]string{}, name[1:]...), "-f", p.File)
	full = append(full, args...)
	cmd := exec.CommandContext(ctx, name[0], full...) //nolint:gosec
	cmd.Dir = p.Dir
	cmd.Env = os.Environ()
	return cmd
}

// Stop stops all services of the project and blocks until compose reports them stopped.
func (p *Project) Stop(ctx context.Context) error {
	cmd := p.command(ctx, "stop")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	glog.Infof("Stopping compose project %s (%s)", p.Name(), strings.Join(p.Services(), ", "))
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(err, "while running command: %q: %s",
			strings.Join(cmd.Args, " "), strings.TrimSpace(out.String()))
	}
	glog.V(2).Infof("compose stop output: %s", out.String())
	return nil
}
