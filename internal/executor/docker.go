package executor

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
)

// DockerExecutor implements the ExecutionLayer interface using the Docker SDK.
type DockerExecutor struct {
	client *client.Client

	mu         sync.Mutex
	containers map[string]string // taskID -> containerID
}

// NewDockerExecutor creates a Docker-based execution layer.
func NewDockerExecutor() (*DockerExecutor, error) {
	// Initializes client from standard environment variables (DOCKER_HOST, etc.)
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerExecutor{
		client:     cli,
		containers: make(map[string]string),
	}, nil
}

// Launch implements ExecutionLayer using Docker containers.
func (d *DockerExecutor) Launch(ctx context.Context, req LaunchRequest) (*Placement, error) {
	// Check if the image exists locally first to save time.
	_, _, err := d.client.ImageInspectWithRaw(ctx, req.Config.Image)
	if err != nil {
		reader, err := d.client.ImagePull(ctx, req.Config.Image, image.PullOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to pull image %s: %w", req.Config.Image, err)
		}
		defer reader.Close()
		io.Copy(io.Discard, reader)
	}

	containerConfig := &container.Config{
		Image:  req.Config.Image,
		Cmd:    req.Config.Command,
		Labels: map[string]string{"taskplane.task-id": req.TaskID},
		Tty:    true,
	}
	created, err := d.client.ContainerCreate(ctx, containerConfig, nil, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	d.mu.Lock()
	d.containers[req.TaskID] = created.ID
	d.mu.Unlock()

	hostname, _ := os.Hostname()
	return &Placement{
		Hostname: hostname,
		AgentID:  created.ID[:12],
	}, nil
}

// Kill implements ExecutionLayer.
func (d *DockerExecutor) Kill(ctx context.Context, taskID string) error {
	d.mu.Lock()
	containerID, ok := d.containers[taskID]
	if ok {
		delete(d.containers, taskID)
	}
	d.mu.Unlock()

	if !ok {
		return fmt.Errorf("no container known for task %s", taskID)
	}
	if err := d.client.ContainerKill(ctx, containerID, "SIGKILL"); err != nil {
		return fmt.Errorf("failed to kill container %s: %w", containerID, err)
	}
	return nil
}

// ListSandboxFiles implements ExecutionLayer. Docker containers expose their
// logs rather than a browsable sandbox, so the listing points at the
// container log path on the daemon host.
func (d *DockerExecutor) ListSandboxFiles(ctx context.Context, taskID string) (*SandboxListing, error) {
	d.mu.Lock()
	containerID, ok := d.containers[taskID]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no container known for task %s", taskID)
	}

	inspect, err := d.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container %s: %w", containerID, err)
	}

	hostname, _ := os.Hostname()
	return &SandboxListing{
		Hostname: hostname,
		Paths:    []string{inspect.LogPath},
	}, nil
}
