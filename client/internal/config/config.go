package config

import (
	"gopkg.in/yaml.v3"
	"os"
	"path/filepath"
)

const (
	Path = ".warden.yml"
)

type (
	Config struct {
		Host string `yaml:"host"`
		// AccessKey is only read from the file when the keyring is unavailable.
		AccessKey string `yaml:"accessKey,omitempty"`
	}
)

// Parse reads ./.warden.yml, falling back to the one in the home directory.
// A missing file yields an empty config.
func Parse() (Config, error) {
	c := Config{}
	for _, p := range paths() {
		value, err := os.ReadFile(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return c, err
		}

		if err = yaml.Unmarshal(value, &c); err != nil {
			return c, err
		}
		return c, nil
	}
	return c, nil
}

func SaveConfig(c Config) error {
	value, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(homePath(), value, 0600)
}

func paths() []string {
	return []string{Path, homePath()}
}

func homePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return Path
	}
	return filepath.Join(home, Path)
}
