package backup

import (
	"context"
	"github.com/docker/docker/api/types/strslice"
	"warden/internal/integrations/docker"
	"warden/internal/types"
)

type postgresDumper struct {
	dockerClient docker.Docker
}

func NewPostgres(dc docker.Docker) Dumper {
	return &postgresDumper{dockerClient: dc}
}

func (p postgresDumper) Dump(ctx context.Context, resource types.Resource) (types.File, error) {
	username, err := findVar("POSTGRES_USER", resource)
	if err != nil {
		return types.File{}, err
	}
	password, err := findVar("POSTGRES_PASSWORD", resource)
	if err != nil {
		return types.File{}, err
	}
	dbName, err := findVar("POSTGRES_DB", resource)
	if err != nil {
		return types.File{}, err
	}

	resultPath := tempPath(p.Extension())
	return runInContainer(ctx, p.dockerClient, resource, containerDump{
		resultPath: resultPath,
		cmd: strslice.StrSlice{
			"pg_dump",
			"-U", username,
			"-d", dbName,
			"-f", resultPath,
		},
		envs: []string{"PGPASSWORD=" + password},
	})
}

func (p postgresDumper) Extension() string {
	return "sql"
}
