package backup

import (
	"context"
	"fmt"
	"github.com/docker/docker/api/types/strslice"
	"warden/internal/integrations/docker"
	"warden/internal/types"
)

type mysqlDumper struct {
	dockerClient docker.Docker
}

func NewMysql(dc docker.Docker) Dumper {
	return &mysqlDumper{dockerClient: dc}
}

func (m mysqlDumper) Dump(ctx context.Context, resource types.Resource) (types.File, error) {
	username, err := findVar("MYSQL_USER", resource)
	if err != nil {
		return types.File{}, err
	}
	password, err := findVar("MYSQL_PASSWORD", resource)
	if err != nil {
		return types.File{}, err
	}
	dbName, err := findVar("MYSQL_DATABASE", resource)
	if err != nil {
		return types.File{}, err
	}

	// password goes through MYSQL_PWD so it never shows up in the process list
	resultPath := tempPath(m.Extension())
	return runInContainer(ctx, m.dockerClient, resource, containerDump{
		resultPath: resultPath,
		cmd: strslice.StrSlice{
			"sh", "-c",
			fmt.Sprintf(`mysqldump --single-transaction -u %s %s > %s`, username, dbName, resultPath),
		},
		envs: []string{"MYSQL_PWD=" + password},
	})
}

func (m mysqlDumper) Extension() string {
	return "sql"
}
