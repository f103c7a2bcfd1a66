package types

import (
	"github.com/samber/lo"
	"strings"
)

type (
	StorageEngine string

	// Resource is one named data store the orchestrator is allowed to back up.
	Resource struct {
		Name      string            `yaml:"name" json:"name" validate:"required"`
		Engine    StorageEngine     `yaml:"engine" json:"engine" validate:"required,oneof=postgres mysql mongo redis"`
		Container string            `yaml:"container" json:"container" validate:"required"`
		Vars      map[string]string `yaml:"vars" json:"-"`
	}

	Catalog struct {
		resources map[string]Resource
		order     []string
	}
)

const (
	StorageEnginePostgres StorageEngine = "postgres"
	StorageEngineMysql    StorageEngine = "mysql"
	StorageEngineMongo    StorageEngine = "mongo"
	StorageEngineRedis    StorageEngine = "redis"
)

func (s StorageEngine) String() string {
	return string(s)
}

func NewCatalog(resources ...Resource) *Catalog {
	c := &Catalog{resources: make(map[string]Resource, len(resources))}
	for _, r := range resources {
		if _, ok := c.resources[r.Name]; !ok {
			c.order = append(c.order, r.Name)
		}
		c.resources[r.Name] = r
	}
	return c
}

func (c *Catalog) Lookup(name string) (Resource, bool) {
	r, ok := c.resources[name]
	return r, ok
}

func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Resolve de-duplicates names preserving order and fails on the first
// name that is not in the catalog.
func (c *Catalog) Resolve(names []string) (DatabaseList, error) {
	unique := lo.Uniq(lo.FilterMap(names, func(item string, _ int) (string, bool) {
		name := strings.TrimSpace(item)
		return name, name != ""
	}))
	if len(unique) == 0 {
		return nil, Invalid("databases must not be empty")
	}

	unknown := lo.Filter(unique, func(item string, _ int) bool {
		_, ok := c.resources[item]
		return !ok
	})
	if len(unknown) > 0 {
		return nil, Invalid("unknown database(s): %v", unknown)
	}
	return DatabaseList(unique), nil
}
