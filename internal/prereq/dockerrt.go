package prereq

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// DockerRuntime implements ContainerRuntime against a live Docker daemon.
type DockerRuntime struct {
	docker *client.Client
}

// NewDockerRuntime dials the Docker daemon, negotiating the API version.
func NewDockerRuntime(host string) (*DockerRuntime, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	c, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerRuntime{docker: c}, nil
}

// IsRunning reports whether a container with the given name is currently running.
func (d *DockerRuntime) IsRunning(ctx context.Context, containerName string) (bool, error) {
	info, err := d.docker.ContainerInspect(ctx, containerName)
	if client.IsErrNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("inspect container %s: %w", containerName, err)
	}
	return info.State != nil && info.State.Running, nil
}

// Start starts an existing stopped container, or creates and starts one from
// image if it does not yet exist.
func (d *DockerRuntime) Start(ctx context.Context, image, containerName string) error {
	_, err := d.docker.ContainerInspect(ctx, containerName)
	switch {
	case client.IsErrNotFound(err):
		resp, createErr := d.docker.ContainerCreate(ctx, &container.Config{Image: image}, &container.HostConfig{}, nil, nil, containerName)
		if createErr != nil {
			return fmt.Errorf("create container %s: %w", containerName, createErr)
		}
		return d.docker.ContainerStart(ctx, resp.ID, container.StartOptions{})
	case err != nil:
		return fmt.Errorf("inspect container %s: %w", containerName, err)
	}
	return d.docker.ContainerStart(ctx, containerName, container.StartOptions{})
}

// Stop stops the named container.
func (d *DockerRuntime) Stop(ctx context.Context, containerName string) error {
	return d.docker.ContainerStop(ctx, containerName, container.StopOptions{})
}

// Close releases the underlying Docker daemon connection.
func (d *DockerRuntime) Close() error {
	return d.docker.Close()
}

var _ ContainerRuntime = (*DockerRuntime)(nil)
