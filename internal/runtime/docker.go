package runtime

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"previewd/internal/tree"
)

// Custom error types for better error handling
var (
	ErrContainerNotFound       = errors.New("container not found")
	ErrContainerNotRunning     = errors.New("container is not running")
	ErrPortUnavailable         = errors.New("no available ports found")
	ErrDockerDaemonUnavailable = errors.New("docker daemon unavailable")
	ErrInstallFailed           = errors.New("dependency install failed")
)

const (
	// workDir is where the project tree is mounted inside the sandbox.
	workDir = "/app"
	// devPort is the port the previewed app's dev server listens on.
	devPort = "5173/tcp"
)

// BootDocker returns a Booter that provisions a sandbox container from the
// given image with the dev-server port published on an available host port.
func BootDocker(image string) Booter {
	return func(ctx context.Context) (Instance, error) {
		if ctx == nil {
			return nil, errors.New("nil context provided")
		}

		cli, err := client.NewClientWithOpts(client.FromEnv)
		if err != nil {
			log.Printf("[runtime] failed to create client: %v", err)
			return nil, fmt.Errorf("%w: %v", ErrDockerDaemonUnavailable, err)
		}

		hostPort, err := findAvailablePort()
		if err != nil {
			cli.Close()
			log.Printf("[runtime] failed to find available port: %v", err)
			return nil, fmt.Errorf("%w: %v", ErrPortUnavailable, err)
		}
		log.Printf("[runtime] using host port %d for dev server", hostPort)

		exposedPorts := nat.PortSet{devPort: struct{}{}}
		portBindings := nat.PortMap{
			devPort: []nat.PortBinding{{
				HostIP:   "0.0.0.0",
				HostPort: fmt.Sprintf("%d", hostPort),
			}},
		}

		resp, err := cli.ContainerCreate(ctx, &container.Config{
			Image:        image,
			Cmd:          []string{"sleep", "infinity"},
			WorkingDir:   workDir,
			Tty:          true,
			ExposedPorts: exposedPorts,
		}, &container.HostConfig{
			PortBindings: portBindings,
		}, nil, nil, fmt.Sprintf("previewd-%d", time.Now().UnixNano()))
		if err != nil {
			cli.Close()
			log.Printf("[runtime] failed to create container: %v", err)
			return nil, fmt.Errorf("failed to create container: %w", err)
		}

		if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
			log.Printf("[runtime] failed to start container %s: %v", resp.ID, err)
			cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{})
			cli.Close()
			return nil, fmt.Errorf("failed to start container: %w", err)
		}

		containerInfo, err := cli.ContainerInspect(ctx, resp.ID)
		if err != nil {
			cli.Close()
			return nil, fmt.Errorf("failed to verify container status: %w", err)
		}
		if containerInfo.State.Status != "running" {
			log.Printf("[runtime] container %s is not running, status: %s", resp.ID, containerInfo.State.Status)
			cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{})
			cli.Close()
			return nil, fmt.Errorf("%w: container exited during boot", ErrContainerNotRunning)
		}

		log.Printf("[runtime] started sandbox container: %s (dev port %d)", resp.ID, hostPort)
		return &DockerSandbox{cli: cli, containerID: resp.ID, hostPort: hostPort}, nil
	}
}

// DockerSandbox is the Docker-backed sandbox instance. The docker client
// lives for the instance lifetime.
type DockerSandbox struct {
	cli         *client.Client
	containerID string
	hostPort    int
}

func (s *DockerSandbox) ContainerID() string {
	return s.containerID
}

func (s *DockerSandbox) URL() string {
	return fmt.Sprintf("http://localhost:%d", s.hostPort)
}

// Mount replaces the full project tree inside the container. This is the
// non-incremental path used for first load and forced reloads.
func (s *DockerSandbox) Mount(ctx context.Context, root *tree.Node) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}

	archive, err := tree.Tar(root, "app")
	if err != nil {
		return fmt.Errorf("failed to build mount archive: %w", err)
	}

	if err := s.cli.CopyToContainer(ctx, s.containerID, "/", bytes.NewReader(archive), types.CopyToContainerOptions{}); err != nil {
		log.Printf("[runtime] failed to mount tree in %s: %v", s.containerID, err)
		return fmt.Errorf("failed to mount file tree: %w", err)
	}

	log.Printf("[runtime] mounted %d files into %s", tree.CountFiles(root), s.containerID)
	return nil
}

// WriteFile writes a single file into the mounted tree, creating parent
// directories as needed.
func (s *DockerSandbox) WriteFile(ctx context.Context, path, content string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if path == "" {
		return errors.New("path cannot be empty")
	}

	archive, err := tree.Tar(tree.Build(map[string]string{path: content}), "app")
	if err != nil {
		return fmt.Errorf("failed to build file archive: %w", err)
	}

	if err := s.cli.CopyToContainer(ctx, s.containerID, "/", bytes.NewReader(archive), types.CopyToContainerOptions{}); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// RemoveFile deletes a file from the mounted tree.
func (s *DockerSandbox) RemoveFile(ctx context.Context, path string) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	if path == "" {
		return errors.New("path cannot be empty")
	}

	_, err := s.exec(ctx, []string{"rm", "-f", workDir + "/" + path})
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Install runs the dependency install inside the sandbox. A non-zero exit
// is returned as ErrInstallFailed with the captured output.
func (s *DockerSandbox) Install(ctx context.Context) (string, error) {
	if ctx == nil {
		return "", errors.New("nil context provided")
	}

	output, err := s.exec(ctx, []string{"npm", "install", "--no-audit", "--no-fund"})
	if err != nil {
		log.Printf("[runtime] install failed in %s: %v", s.containerID, err)
		return output, fmt.Errorf("%w: %v", ErrInstallFailed, err)
	}

	log.Printf("[runtime] install completed in %s", s.containerID)
	return output, nil
}

// StartDev spawns the dev server and returns its output line-by-line. The
// channel closes when the process exits or the stream breaks. The dev
// process is never restarted by the caller; file changes are picked up by
// the previewed app's own watcher.
func (s *DockerSandbox) StartDev(ctx context.Context) (<-chan string, error) {
	if ctx == nil {
		return nil, errors.New("nil context provided")
	}

	execConfig := types.ExecConfig{
		Cmd:          []string{"npm", "run", "dev", "--", "--host"},
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	}

	execResp, err := s.cli.ContainerExecCreate(ctx, s.containerID, execConfig)
	if err != nil {
		log.Printf("[runtime] failed to create dev exec for %s: %v", s.containerID, err)
		return nil, fmt.Errorf("failed to create dev process: %w", err)
	}

	resp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: true})
	if err != nil {
		log.Printf("[runtime] failed to attach to dev process for %s: %v", s.containerID, err)
		return nil, fmt.Errorf("failed to attach to dev process: %w", err)
	}

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		defer resp.Close()

		scanner := bufio.NewScanner(resp.Reader)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Printf("[runtime] dev output stream ended for %s: %v", s.containerID, err)
		}
	}()

	log.Printf("[runtime] dev server spawned in %s", s.containerID)
	return lines, nil
}

// Close stops and removes the sandbox container.
func (s *DockerSandbox) Close(ctx context.Context) error {
	if ctx == nil {
		return errors.New("nil context provided")
	}
	defer s.cli.Close()

	if err := s.cli.ContainerStop(ctx, s.containerID, container.StopOptions{}); err != nil {
		log.Printf("[runtime] failed to stop container %s: %v", s.containerID, err)
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := s.cli.ContainerRemove(ctx, s.containerID, container.RemoveOptions{}); err != nil {
		log.Printf("[runtime] failed to remove container %s: %v", s.containerID, err)
		return fmt.Errorf("failed to remove container: %w", err)
	}

	log.Printf("[runtime] stopped and removed container: %s", s.containerID)
	return nil
}

func (s *DockerSandbox) exec(ctx context.Context, command []string) (string, error) {
	execConfig := types.ExecConfig{
		Cmd:          command,
		WorkingDir:   workDir,
		AttachStdout: true,
		AttachStderr: true,
		Tty:          true,
	}

	execResp, err := s.cli.ContainerExecCreate(ctx, s.containerID, execConfig)
	if err != nil {
		return "", fmt.Errorf("failed to create exec: %w", err)
	}

	resp, err := s.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{Tty: true})
	if err != nil {
		return "", fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer resp.Close()

	var out bytes.Buffer
	if _, err := out.ReadFrom(resp.Reader); err != nil {
		return "", fmt.Errorf("failed to read exec output: %w", err)
	}

	inspectResp, err := s.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspectResp.ExitCode != 0 {
		return out.String(), fmt.Errorf("command failed with exit code %d", inspectResp.ExitCode)
	}

	return out.String(), nil
}

// findAvailablePort finds an available host port for the dev server.
func findAvailablePort() (int, error) {
	for port := 4301; port < 4400; port++ {
		addr := fmt.Sprintf(":%d", port)
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: no available ports found in range 4301-4399", ErrPortUnavailable)
}
