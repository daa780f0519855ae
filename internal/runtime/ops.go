package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Ops is the container-management surface used outside the sandbox
// instance itself (status reporting, cleanup of expired previews).
type Ops interface {
	GetContainerStatus(ctx context.Context, containerID string) (string, error)
	ContainerExists(ctx context.Context, containerID string) (bool, error)
	StopContainer(ctx context.Context, containerID string) error
	RemoveContainer(ctx context.Context, containerID string) error
	ListContainers(ctx context.Context) ([]ContainerInfo, error)
}

// ContainerInfo represents information about a Docker container
type ContainerInfo struct {
	ID     string
	Name   string
	Status string
}

type RealOps struct{}

func (RealOps) GetContainerStatus(ctx context.Context, containerID string) (string, error) {
	if ctx == nil {
		return "", errors.New("nil context provided")
	}
	if containerID == "" {
		return "", errors.New("container ID cannot be empty")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		log.Printf("[runtime] failed to create client: %v", err)
		return "", fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
	}
	defer cli.Close()

	containerInfo, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		log.Printf("[runtime] failed to inspect container %s: %v", containerID, err)
		return "", fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}

	return containerInfo.State.Status, nil
}

func (RealOps) ContainerExists(ctx context.Context, containerID string) (bool, error) {
	if ctx == nil {
		return false, errors.New("nil context provided")
	}
	if containerID == "" {
		return false, errors.New("container ID cannot be empty")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		log.Printf("[runtime] failed to create client: %v", err)
		return false, fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
	}
	defer cli.Close()

	_, err = cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container: %w", err)
	}

	return true, nil
}

func (RealOps) StopContainer(ctx context.Context, containerID string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if containerID == "" {
		return errors.New("container ID cannot be empty")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		log.Printf("[runtime] failed to create client: %v", err)
		return fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
	}
	defer cli.Close()

	containerInfo, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		if client.IsErrNotFound(err) {
			return fmt.Errorf("%w: container %s", ErrContainerNotFound, containerID)
		}
		return fmt.Errorf("failed to check container existence: %w", err)
	}

	if containerInfo.State.Status == "exited" || containerInfo.State.Status == "stopped" {
		if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
			log.Printf("[runtime] failed to remove stopped container %s: %v", containerID, err)
			return fmt.Errorf("failed to remove stopped container: %w", err)
		}
		log.Printf("[runtime] removed stopped container: %s", containerID)
		return nil
	}

	if err := cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
		log.Printf("[runtime] failed to stop container %s: %v", containerID, err)
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		log.Printf("[runtime] failed to remove container %s: %v", containerID, err)
		return fmt.Errorf("failed to remove container: %w", err)
	}

	log.Printf("[runtime] stopped and removed container: %s", containerID)
	return nil
}

func (RealOps) RemoveContainer(ctx context.Context, containerID string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if containerID == "" {
		return errors.New("container ID cannot be empty")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		log.Printf("[runtime] failed to create client: %v", err)
		return fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
	}
	defer cli.Close()

	containerInfo, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		log.Printf("[runtime] failed to inspect container %s: %v", containerID, err)
		return fmt.Errorf("%w: %v", ErrContainerNotFound, err)
	}

	if containerInfo.State.Status == "running" {
		log.Printf("[runtime] stopping container %s before removal", containerID)
		if err := cli.ContainerStop(ctx, containerID, container.StopOptions{}); err != nil {
			log.Printf("[runtime] failed to stop container %s: %v", containerID, err)
			return fmt.Errorf("failed to stop container: %w", err)
		}
	}

	if err := cli.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		log.Printf("[runtime] failed to remove container %s: %v", containerID, err)
		return fmt.Errorf("failed to remove container: %w", err)
	}

	log.Printf("[runtime] successfully removed container %s", containerID)
	return nil
}

func (RealOps) ListContainers(ctx context.Context) ([]ContainerInfo, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		log.Printf("[runtime] failed to create client: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
	}
	defer cli.Close()

	containers, err := cli.ContainerList(ctx, types.ContainerListOptions{All: true})
	if err != nil {
		log.Printf("[runtime] failed to list containers: %v", err)
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var containerInfos []ContainerInfo
	for _, c := range containers {
		name := c.ID
		if len(c.Names) > 0 {
			name = c.Names[0]
		}
		containerInfos = append(containerInfos, ContainerInfo{
			ID:     c.ID,
			Name:   name,
			Status: c.Status,
		})
	}

	return containerInfos, nil
}
