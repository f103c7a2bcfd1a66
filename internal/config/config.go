package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
	"warden/internal/storage"
	"warden/internal/summary"
	"warden/internal/types"
)

const (
	defaultAddr         = ":3646"
	defaultDatabasePath = "/var/warden/data/warden.db"
	defaultBackupDir    = "/var/warden/backups"
	defaultCatalogPath  = "/etc/warden/catalog.yml"
)

type (
	Config struct {
		Mode string `validate:"oneof=development production"`
		Addr string `validate:"required"`

		// AccessKey is the master access key to the server. Must be kept safe and secure!
		AccessKey string

		ServerSSLCertFile, ServerSSLKeyFile string

		DatabasePath string `validate:"required"`
		BackupDir    string `validate:"required"`
		CatalogPath  string

		TickInterval      time.Duration `validate:"gt=0"`
		RetentionInterval time.Duration `validate:"gt=0"`
		JobTimeout        time.Duration `validate:"gt=0"`
		StorageThreshold  float64       `validate:"gt=0,lte=100"`
		Location          *time.Location

		// ObjectStorage is nil unless S3_ENDPOINT is set, backups then go to BackupDir.
		ObjectStorage *storage.Credentials

		Catalog *types.Catalog
		Health  summary.Config
	}

	CatalogFile struct {
		Resources []types.Resource `yaml:"resources" validate:"dive"`
		Health    summary.Config   `yaml:"health"`
	}
)

// Load reads the configuration from the environment, after an optional .env
// file, and the resource catalog file it points to.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrap(err, "failed to read .env")
	}

	cfg := Config{
		Mode:              getenv("WARDEN_MODE", "development"),
		Addr:              getenv("WARDEN_ADDR", defaultAddr),
		AccessKey:         os.Getenv("ACCESS_KEY"),
		ServerSSLCertFile: os.Getenv("SERVER_SSL_CERT_FILE"),
		ServerSSLKeyFile:  os.Getenv("SERVER_SSL_KEY_FILE"),
		DatabasePath:      getenv("WARDEN_DATABASE_PATH", defaultDatabasePath),
		BackupDir:         getenv("WARDEN_BACKUP_DIR", defaultBackupDir),
		CatalogPath:       getenv("WARDEN_CATALOG", defaultCatalogPath),
	}

	var err error
	if cfg.TickInterval, err = duration("WARDEN_TICK_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RetentionInterval, err = duration("WARDEN_RETENTION_INTERVAL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.JobTimeout, err = duration("WARDEN_JOB_TIMEOUT", 2*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.StorageThreshold, err = float("WARDEN_STORAGE_THRESHOLD", 85); err != nil {
		return Config{}, err
	}
	if cfg.Location, err = time.LoadLocation(getenv("WARDEN_TIMEZONE", "UTC")); err != nil {
		return Config{}, errors.Wrap(err, "invalid WARDEN_TIMEZONE")
	}

	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		capacity, err := integer("WARDEN_STORAGE_CAPACITY_BYTES", 0)
		if err != nil {
			return Config{}, err
		}
		useSSL, err := strconv.ParseBool(getenv("S3_USE_SSL", "true"))
		if err != nil {
			return Config{}, errors.Wrap(err, "invalid S3_USE_SSL")
		}
		cfg.ObjectStorage = &storage.Credentials{
			Endpoint:      endpoint,
			AccessKeyID:   os.Getenv("S3_ACCESS_KEY_ID"),
			SecretKey:     os.Getenv("S3_SECRET_KEY"),
			Region:        os.Getenv("S3_REGION"),
			Bucket:        os.Getenv("S3_BUCKET"),
			UseSSL:        useSSL,
			CapacityBytes: capacity,
		}
	}

	catalog, err := ReadCatalog(cfg.CatalogPath)
	if err != nil {
		return Config{}, err
	}
	cfg.Catalog = types.NewCatalog(catalog.Resources...)
	cfg.Health = catalog.Health

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

// ReadCatalog parses the resource catalog. ${VAR} references are expanded
// from the environment so credentials can stay out of the file.
func ReadCatalog(path string) (CatalogFile, error) {
	var out CatalogFile
	content, err := os.ReadFile(path)
	if err != nil {
		return out, errors.Wrapf(err, "failed to read catalog %s", path)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(content))), &out); err != nil {
		return out, errors.Wrapf(err, "failed to parse catalog %s", path)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(out); err != nil {
		return out, errors.Wrapf(err, "invalid catalog %s", path)
	}

	seen := make(map[string]bool, len(out.Resources))
	for _, r := range out.Resources {
		if seen[r.Name] {
			return out, errors.Errorf("invalid catalog %s: duplicate resource %q", path, r.Name)
		}
		seen[r.Name] = true
	}
	return out, nil
}

func (c Config) HasTLSConfig() bool {
	return c.ServerSSLCertFile != "" && c.ServerSSLKeyFile != ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func float(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return f, nil
}

func integer(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return n, nil
}
