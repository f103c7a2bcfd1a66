package backup

import (
	"context"
	"fmt"
	"github.com/docker/docker/api/types/strslice"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"warden/internal/integrations/docker"
	"warden/internal/types"
	"warden/logger"
)

// Dumper produces a raw dump of one resource as a local file. The caller
// owns the returned file and must Release it.
type Dumper interface {
	Dump(ctx context.Context, resource types.Resource) (types.File, error)
	Extension() string
}

// Dumpers returns the container backed dumper for every supported engine.
func Dumpers(dc docker.Docker) map[types.StorageEngine]Dumper {
	return map[types.StorageEngine]Dumper{
		types.StorageEnginePostgres: NewPostgres(dc),
		types.StorageEngineMysql:    NewMysql(dc),
		types.StorageEngineMongo:    NewMongo(dc),
		types.StorageEngineRedis:    NewRedis(dc),
	}
}

type containerDump struct {
	resultPath string
	cmd        strslice.StrSlice
	envs       []string
}

// runInContainer executes the dump command (if any) inside the resource's
// container and copies the result out.
func runInContainer(ctx context.Context, dc docker.Docker, resource types.Resource, dump containerDump) (types.File, error) {
	running, info, err := dc.IsContainerRunning(ctx, resource.Container)
	if err != nil {
		return types.File{}, errors.Wrap(err, "failed to inspect container")
	}
	if info.ID == "" {
		return types.File{}, errors.Wrapf(ErrUnknownResource, "container %s not found", resource.Container)
	}
	if !running {
		return types.File{}, errors.Errorf("container %s is %s", resource.Container, info.State)
	}

	logger.Info("starting dump",
		zap.String("database", resource.Name),
		zap.String("engine", resource.Engine.String()),
		zap.String("container", resource.Container))

	if len(dump.cmd) > 0 {
		_, err = dc.ContainerExec(ctx, docker.ContainerExecParams{
			ContainerName: resource.Container,
			Cmd:           dump.cmd,
			Envs:          dump.envs,
		})
		if err != nil {
			return types.File{}, errors.Wrapf(err, "failed to execute %s", dump.cmd[0])
		}
	}

	f, err := dc.CopyFromContainer(ctx, resource.Container, dump.resultPath)
	if err != nil {
		return types.File{}, errors.Wrap(err, "failed to copy dump file")
	}
	return f, nil
}

func tempPath(ext string) string {
	return fmt.Sprintf("/tmp/%s.%s", uuid.NewString(), ext)
}

func findVar(name string, resource types.Resource) (string, error) {
	v, ok := resource.Vars[name]
	if !ok || v == "" {
		return "", errors.Wrapf(ErrMissingCredentials, "var: %s was not found for %s", name, resource.Name)
	}
	return v, nil
}
