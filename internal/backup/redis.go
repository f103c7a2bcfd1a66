package backup

import (
	"context"
	"github.com/docker/docker/api/types/strslice"
	"warden/internal/integrations/docker"
	"warden/internal/types"
)

const redisDumpPath = "/data/dump.rdb"

type redisDumper struct {
	dockerClient docker.Docker
}

func NewRedis(dc docker.Docker) Dumper {
	return &redisDumper{dockerClient: dc}
}

// Dump forces a synchronous SAVE so the copied rdb reflects the current dataset.
func (r redisDumper) Dump(ctx context.Context, resource types.Resource) (types.File, error) {
	cmd := strslice.StrSlice{"redis-cli"}
	var envs []string
	if password, ok := resource.Vars["REDIS_PASSWORD"]; ok && password != "" {
		envs = append(envs, "REDISCLI_AUTH="+password)
	}
	cmd = append(cmd, "SAVE")

	return runInContainer(ctx, r.dockerClient, resource, containerDump{
		resultPath: redisDumpPath,
		cmd:        cmd,
		envs:       envs,
	})
}

func (r redisDumper) Extension() string {
	return "rdb"
}
