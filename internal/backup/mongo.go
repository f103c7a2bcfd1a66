package backup

import (
	"context"
	"github.com/docker/docker/api/types/strslice"
	"warden/internal/integrations/docker"
	"warden/internal/types"
)

type mongoDumper struct {
	dockerClient docker.Docker
}

func NewMongo(dc docker.Docker) Dumper {
	return &mongoDumper{dockerClient: dc}
}

func (m mongoDumper) Dump(ctx context.Context, resource types.Resource) (types.File, error) {
	username, err := findVar("MONGO_INITDB_ROOT_USERNAME", resource)
	if err != nil {
		return types.File{}, err
	}
	password, err := findVar("MONGO_INITDB_ROOT_PASSWORD", resource)
	if err != nil {
		return types.File{}, err
	}

	resultPath := tempPath(m.Extension())
	return runInContainer(ctx, m.dockerClient, resource, containerDump{
		resultPath: resultPath,
		cmd: strslice.StrSlice{
			"mongodump",
			"-u", username,
			"-p", password,
			"--authenticationDatabase", "admin",
			"--archive=" + resultPath,
		},
	})
}

func (m mongoDumper) Extension() string {
	return "archive"
}
