package docker

import (
	"context"
	"fmt"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"
	"warden/internal/types"
	"warden/logger"
)

// ErrUnavailable marks failures to reach the docker host at all.
var ErrUnavailable = errors.New("docker host unavailable")

type Docker interface {
	IsContainerRunning(ctx context.Context, container string) (bool, ContainerInfo, error)
	ContainerExec(ctx context.Context, params ContainerExecParams) (io.Reader, error)
	CopyFromContainer(ctx context.Context, containerName, filePath string) (types.File, error)
}

type dockerClient struct {
	hostClient client.APIClient
}

func NewClient() (Docker, error) {
	hostClient, err := client.NewClientWithOpts(client.FromEnv,
		client.WithAPIVersionNegotiation(), client.WithTimeout(10*time.Minute))
	if err != nil {
		return nil, err
	}

	p, err := hostClient.Ping(context.Background())
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to docker host")
	}

	logger.Info("docker client connected",
		zap.String("api_version", p.APIVersion),
		zap.String("os_type", p.OSType))
	return &dockerClient{hostClient: hostClient}, nil
}

func (d *dockerClient) IsContainerRunning(ctx context.Context, container string) (bool, ContainerInfo, error) {
	result, err := d.hostClient.ContainerInspect(ctx, container)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, ContainerInfo{}, nil
		}
		return false, ContainerInfo{}, unavailable(err)
	}

	if result.State.Running || result.State.Restarting {
		return true, ContainerInfo{ID: result.ID, Name: result.Name, State: result.State.Status}, nil
	}

	return false, ContainerInfo{ID: result.ID, Name: result.Name, State: result.State.Status}, nil
}

// ContainerExec executes a command in the specified container and waits for it to exit.
// Dump commands on large databases can run for a long time, the context bounds the wait.
func (d *dockerClient) ContainerExec(ctx context.Context, params ContainerExecParams) (io.Reader, error) {
	execID, err := d.hostClient.ContainerExecCreate(ctx, params.ContainerName, container.ExecOptions{
		Env:          params.Envs,
		Cmd:          params.Cmd,
		AttachStderr: true,
		AttachStdout: true,
	})
	if err != nil {
		return nil, unavailable(err)
	}

	hr, err := d.hostClient.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, unavailable(err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		inspect, err := d.hostClient.ContainerExecInspect(ctx, execID.ID)
		if err != nil {
			hr.Close()
			return nil, unavailable(err)
		}

		if !inspect.Running {
			if inspect.ExitCode == 0 {
				break
			}
			_, stdErr, err := ReadExecResponse(hr.Reader)
			hr.Close()
			if err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("exec cmd error (exit %d): %s", inspect.ExitCode, stdErr)
		}

		select {
		case <-ctx.Done():
			hr.Close()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return hr.Reader, nil
}

// CopyFromContainer copies a file from a container into a local temp file
func (d *dockerClient) CopyFromContainer(ctx context.Context, containerName, filePath string) (types.File, error) {
	tempFile := filepath.Join(os.TempDir(), fmt.Sprintf("warden-%s%s", uuid.NewString(), filepath.Ext(filePath)))
	containerAndPath := fmt.Sprintf("%s:%s", containerName, filePath)
	cmd := exec.CommandContext(ctx, "docker", "cp", containerAndPath, tempFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return types.File{}, errors.Errorf("docker cp failed: %s", string(out))
	}

	fi, err := os.Open(tempFile)
	if err != nil {
		return types.File{}, err
	}

	stat, err := fi.Stat()
	if err != nil {
		_ = fi.Close()
		return types.File{}, err
	}

	logger.Debug("copy file from container successful",
		zap.String("container", containerName),
		zap.Int64("size", stat.Size()),
		zap.String("name", tempFile))

	return types.File{
		Content: fi,
		Stat: types.FileStat{
			Size: stat.Size(),
			Name: tempFile,
			Mode: stat.Mode(),
		},
	}, nil
}

func unavailable(err error) error {
	if client.IsErrConnectionFailed(err) {
		return errors.Wrap(ErrUnavailable, err.Error())
	}
	return err
}
