/*
 * SPDX-FileCopyrightText: © Hypermode Inc. <hello@hypermode.com>
 * SPDX-License-Identifier: Apache-2.0
 */

package container

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	docker "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/golang/glog"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

var (
	requestTimeout = 30 * time.Second
	removeTimeout  = time.Minute
)

// apiClient is the subset of the docker client used by DockerRuntime.
type apiClient interface {
	Ping(ctx context.Context) (types.Ping, error)
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform,
		containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string,
		condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string,
		options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

// DockerRuntime runs containers through the docker engine API.
type DockerRuntime struct {
	dcli apiClient
	// pulled remembers images already known to be present.
	pulled map[string]bool
}

// NewDockerRuntime connects to the docker daemon configured in the environment
// (DOCKER_HOST, DOCKER_CERT_PATH, ...) and checks that it answers.
func NewDockerRuntime(ctx context.Context) (*DockerRuntime, error) {
	dcli, err := docker.NewClientWithOpts(docker.FromEnv, docker.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, "error setting up docker client")
	}
	r := newDockerRuntime(dcli)
	pctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	if _, err := r.dcli.Ping(pctx); err != nil {
		if cerr := r.Close(); cerr != nil {
			glog.Warningf("error closing docker client: %v", cerr)
		}
		return nil, errors.Wrap(err, "unable to talk to docker daemon")
	}
	return r, nil
}

func newDockerRuntime(dcli apiClient) *DockerRuntime {
	return &DockerRuntime{dcli: dcli, pulled: make(map[string]bool)}
}

// Close releases the docker client.
func (r *DockerRuntime) Close() error {
	return r.dcli.Close()
}

// Run creates the container, starts it, waits for it to exit, collects its
// logs and removes it.
func (r *DockerRuntime) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := r.ensureImage(ctx, spec.Image); err != nil {
		return nil, err
	}

	cid, err := r.createContainer(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer r.removeContainer(cid)

	if err := r.dcli.ContainerStart(ctx, cid, container.StartOptions{}); err != nil {
		return nil, errors.Wrapf(err, "error starting container from image [%v]", spec.Image)
	}

	res := &Result{}
	statusCh, errCh := r.dcli.ContainerWait(ctx, cid, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return nil, errors.Wrapf(err, "error waiting for container [%v]", cid)
		}
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return nil, errors.Errorf("error waiting for container [%v]: %v", cid,
				status.Error.Message)
		}
		res.ExitCode = int(status.StatusCode)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := r.collectLogs(ctx, cid, res); err != nil {
		return nil, err
	}
	return res, checkExit(spec, res)
}

func (r *DockerRuntime) ensureImage(ctx context.Context, ref string) error {
	if r.pulled[ref] {
		return nil
	}
	lctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	images, err := r.dcli.ImageList(lctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return errors.Wrapf(err, "error listing images for [%v]", ref)
	}
	if len(images) > 0 {
		r.pulled[ref] = true
		return nil
	}

	glog.Infof("Pulling image %s", ref)
	out, err := r.dcli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "error pulling image [%v]", ref)
	}
	defer out.Close()
	// The pull only completes once the progress stream has been drained.
	if _, err := io.Copy(io.Discard, out); err != nil {
		return errors.Wrapf(err, "error pulling image [%v]", ref)
	}
	r.pulled[ref] = true
	return nil
}

func (r *DockerRuntime) createContainer(ctx context.Context, spec Spec) (string, error) {
	mts := make([]mount.Mount, 0, len(spec.Mounts))
	for _, m := range spec.Mounts {
		mts = append(mts, mount.Mount{Type: mount.TypeBind, Source: m.Source, Target: m.Target})
	}
	cconf := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		Env:          spec.Env,
		Labels:       spec.Labels,
		AttachStdout: true,
		AttachStderr: true,
	}
	hconf := &container.HostConfig{Mounts: mts}

	cctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	resp, err := r.dcli.ContainerCreate(cctx, cconf, hconf, nil, nil, "")
	if err != nil {
		return "", errors.Wrapf(err, "error creating container from image [%v]", spec.Image)
	}
	for _, w := range resp.Warnings {
		glog.Warningf("docker: %s", w)
	}
	return resp.ID, nil
}

func (r *DockerRuntime) collectLogs(ctx context.Context, cid string, res *Result) error {
	out, err := r.dcli.ContainerLogs(ctx, cid, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return errors.Wrapf(err, "error reading logs of container [%v]", cid)
	}
	defer out.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, out); err != nil {
		return errors.Wrapf(err, "error demultiplexing logs of container [%v]", cid)
	}
	res.Stdout = outBuf.Bytes()
	res.Stderr = errBuf.Bytes()
	return nil
}

// removeContainer runs with its own context so that a cancelled run still
// cleans up after itself.
func (r *DockerRuntime) removeContainer(cid string) {
	ctx, cancel := context.WithTimeout(context.Background(), removeTimeout)
	defer cancel()
	ro := container.RemoveOptions{RemoveVolumes: true, Force: true}
	if err := r.dcli.ContainerRemove(ctx, cid, ro); err != nil {
		glog.Warningf("error removing container [%v]: %v", cid, err)
	}
}
