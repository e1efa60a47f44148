package logs

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// ContainerAPI is the part of the docker engine client used to read logs.
type ContainerAPI interface {
	ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
}

// DockerFollower reads logs from the docker engine API.
type DockerFollower struct {
	api ContainerAPI
}

// NewDockerFollower connects to the engine configured by the DOCKER_*
// environment variables.
func NewDockerFollower() (*DockerFollower, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerFollower{api: cli}, nil
}

func NewDockerFollowerWithAPI(api ContainerAPI) *DockerFollower {
	return &DockerFollower{api: api}
}

func (f *DockerFollower) Follow(ctx context.Context, containerID string, since time.Time) (io.ReadCloser, error) {
	info, err := f.api.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}

	options := container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Timestamps: true,
	}
	if !since.IsZero() {
		options.Since = since.Format(time.RFC3339Nano)
	}

	raw, err := f.api.ContainerLogs(ctx, containerID, options)
	if err != nil {
		return nil, fmt.Errorf("failed to read logs of container %s: %w", containerID, err)
	}

	// Without a TTY the engine multiplexes stdout and stderr into frames.
	tty := info.Config != nil && info.Config.Tty
	pr, pw := io.Pipe()
	go func() {
		var err error
		if tty {
			_, err = io.Copy(pw, raw)
		} else {
			_, err = stdcopy.StdCopy(pw, pw, raw)
		}
		raw.Close()
		pw.CloseWithError(err)
	}()
	return &stream{PipeReader: pr, raw: raw}, nil
}

type stream struct {
	*io.PipeReader
	raw io.Closer
}

func (s *stream) Close() error {
	s.raw.Close()
	return s.PipeReader.Close()
}
