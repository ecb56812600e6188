// Package config loads storage backend configuration from files and the
// environment, and constructs the matching Store.
package config

import (
	"context"
	"strings"

	"github.com/spf13/viper"

	storage "github.com/medianotion/storage-service"
	serrors "github.com/medianotion/storage-service/errors"
	"github.com/medianotion/storage-service/filestore"
	"github.com/medianotion/storage-service/miniostore"
	"github.com/medianotion/storage-service/s3"
)

// Backend names accepted by Config.Backend.
const (
	BackendS3    = "s3"
	BackendFile  = "file"
	BackendMinio = "minio"
)

// CredentialsConfig selects how a backend authenticates. Type picks the
// variant; the remaining fields feed it.
type CredentialsConfig struct {
	// Type is one of "none", "access_key", "session_token", or "custom".
	// Empty means "none".
	Type string `mapstructure:"type"`

	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	SessionToken string `mapstructure:"session_token"`

	// Properties carries provider-specific settings for the "custom"
	// variant, e.g. a shared-config profile name.
	Properties map[string]string `mapstructure:"properties"`
}

// Credentials converts the raw section into a storage.Credentials variant.
func (c CredentialsConfig) Credentials() (storage.Credentials, error) {
	switch strings.ToLower(c.Type) {
	case "", "none":
		return storage.NoCredentials(), nil
	case "access_key":
		return storage.AccessKeyCredentials(c.AccessKey, c.SecretKey), nil
	case "session_token":
		return storage.SessionTokenCredentials(c.AccessKey, c.SecretKey, c.SessionToken), nil
	case "custom":
		return storage.CustomCredentials(c.Properties), nil
	default:
		return storage.Credentials{}, serrors.Newf("config", "", serrors.KindConfiguration,
			"unknown credentials type %q", c.Type)
	}
}

// S3Section configures the S3 backend.
type S3Section struct {
	Bucket         string            `mapstructure:"bucket"`
	Region         string            `mapstructure:"region"`
	Retries        int               `mapstructure:"retries"`
	Endpoint       string            `mapstructure:"endpoint"`
	ForcePathStyle bool              `mapstructure:"force_path_style"`
	Credentials    CredentialsConfig `mapstructure:"credentials"`
}

// FileSection configures the filesystem backend.
type FileSection struct {
	BasePath       string `mapstructure:"base_path"`
	BufferSize     int    `mapstructure:"buffer_size"`
	CreateDirs     bool   `mapstructure:"create_dirs"`
	Transactional  bool   `mapstructure:"transactional"`
	AllowOverwrite bool   `mapstructure:"allow_overwrite"`
	TempSuffix     string `mapstructure:"temp_suffix"`
}

// MinioSection configures the MinIO backend.
type MinioSection struct {
	Endpoint    string            `mapstructure:"endpoint"`
	Bucket      string            `mapstructure:"bucket"`
	Region      string            `mapstructure:"region"`
	UseSSL      bool              `mapstructure:"use_ssl"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
}

// Config is the full storage configuration. Backend selects which section
// is used; the others may be left at their zero values.
type Config struct {
	Backend string       `mapstructure:"backend"`
	S3      S3Section    `mapstructure:"s3"`
	File    FileSection  `mapstructure:"file"`
	Minio   MinioSection `mapstructure:"minio"`
}

// envPrefix namespaces the environment variables read by Load, so
// STORAGE_BACKEND sets Config.Backend and STORAGE_S3_BUCKET sets
// Config.S3.Bucket.
const envPrefix = "STORAGE"

// configKeys is every key Load recognizes. Each one is bound to its
// environment variable explicitly: viper only consults the environment
// for keys it already knows about, so a key that has no default and no
// file entry would otherwise never surface from the environment.
var configKeys = []string{
	"backend",
	"s3.bucket",
	"s3.region",
	"s3.retries",
	"s3.endpoint",
	"s3.force_path_style",
	"s3.credentials.type",
	"s3.credentials.access_key",
	"s3.credentials.secret_key",
	"s3.credentials.session_token",
	"file.base_path",
	"file.buffer_size",
	"file.create_dirs",
	"file.transactional",
	"file.allow_overwrite",
	"file.temp_suffix",
	"minio.endpoint",
	"minio.bucket",
	"minio.region",
	"minio.use_ssl",
	"minio.credentials.type",
	"minio.credentials.access_key",
	"minio.credentials.secret_key",
	"minio.credentials.session_token",
}

// Load reads configuration from the optional file at path (any format
// viper understands, chosen by extension) and from STORAGE_-prefixed
// environment variables, with the environment taking precedence. An empty
// path skips the file entirely.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, serrors.New("config", key, serrors.KindConfiguration, err)
		}
	}

	v.SetDefault("backend", BackendS3)
	v.SetDefault("s3.retries", 3)
	v.SetDefault("file.buffer_size", 64*1024)
	v.SetDefault("file.create_dirs", true)
	v.SetDefault("file.transactional", true)
	v.SetDefault("file.allow_overwrite", true)
	v.SetDefault("file.temp_suffix", ".tmp")
	v.SetDefault("minio.use_ssl", true)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, serrors.New("config", path, serrors.KindConfiguration, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, serrors.New("config", path, serrors.KindConfiguration, err)
	}
	return &cfg, nil
}

// NewStore constructs the Store selected by cfg.Backend.
func NewStore(ctx context.Context, cfg *Config) (storage.Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendS3:
		creds, err := cfg.S3.Credentials.Credentials()
		if err != nil {
			return nil, err
		}
		return s3.New(ctx, storage.S3Config{
			Bucket:         cfg.S3.Bucket,
			Region:         cfg.S3.Region,
			Retries:        cfg.S3.Retries,
			Credentials:    creds,
			Endpoint:       cfg.S3.Endpoint,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
	case BackendFile:
		return filestore.New(storage.FileConfig{
			BasePath:       cfg.File.BasePath,
			BufferSize:     cfg.File.BufferSize,
			CreateDirs:     cfg.File.CreateDirs,
			Transactional:  cfg.File.Transactional,
			AllowOverwrite: cfg.File.AllowOverwrite,
			TempSuffix:     cfg.File.TempSuffix,
		})
	case BackendMinio:
		creds, err := cfg.Minio.Credentials.Credentials()
		if err != nil {
			return nil, err
		}
		return miniostore.New(storage.MinioConfig{
			Endpoint:    cfg.Minio.Endpoint,
			Bucket:      cfg.Minio.Bucket,
			Region:      cfg.Minio.Region,
			UseSSL:      cfg.Minio.UseSSL,
			Credentials: creds,
		})
	default:
		return nil, serrors.Newf("config", "", serrors.KindConfiguration,
			"unknown backend %q", cfg.Backend)
	}
}
