package storage

// S3Config configures the Amazon S3 backend.
type S3Config struct {
	// Bucket is the container all operations run against. Required.
	Bucket string

	// Region is the AWS region. Defaults to us-east-1 when empty and no
	// ambient region is configured.
	Region string

	// Retries is the maximum retry attempt count for transport calls.
	Retries int

	// Credentials selects how the backend authenticates.
	Credentials Credentials

	// Endpoint overrides the service endpoint, for S3-compatible services
	// or local test stacks. Optional.
	Endpoint string

	// ForcePathStyle switches to path-style addressing, required by most
	// S3-compatible services.
	ForcePathStyle bool
}

// DefaultS3Config returns an S3Config for bucket with the default retry
// count and ambient credentials.
func DefaultS3Config(bucket string) S3Config {
	return S3Config{
		Bucket:      bucket,
		Retries:     3,
		Credentials: NoCredentials(),
	}
}

// FileConfig configures the filesystem/network-share backend.
type FileConfig struct {
	// BasePath is the directory all keys resolve under. Required.
	BasePath string

	// BufferSize bounds the copy buffer used for streaming writes, in
	// bytes. Zero selects the default.
	BufferSize int

	// CreateDirs auto-creates the base path at construction when it does
	// not exist. When false, a missing base path is a configuration error.
	CreateDirs bool

	// Transactional stages writes and copies in a temp file and exposes
	// them at the final path via an atomic rename. When false, writes go
	// straight to the destination with no atomicity guarantee.
	Transactional bool

	// AllowOverwrite permits replacing an existing object. When false, a
	// Put or Copy onto an existing key fails.
	AllowOverwrite bool

	// TempSuffix is appended to the destination path to derive the temp
	// file name for transactional writes.
	TempSuffix string
}

// DefaultFileConfig returns a FileConfig rooted at basePath with
// transactional writes and overwrites enabled.
func DefaultFileConfig(basePath string) FileConfig {
	return FileConfig{
		BasePath:       basePath,
		BufferSize:     64 * 1024,
		CreateDirs:     true,
		Transactional:  true,
		AllowOverwrite: true,
		TempSuffix:     ".tmp",
	}
}

// MinioConfig configures the MinIO-client backend for S3-compatible
// services.
type MinioConfig struct {
	// Endpoint is the service host[:port], without scheme. Required.
	Endpoint string

	// Bucket is the container all operations run against. Required.
	Bucket string

	// Region is passed through to the service when set.
	Region string

	// UseSSL enables TLS for the connection.
	UseSSL bool

	// Credentials selects how the backend authenticates.
	Credentials Credentials
}

// DefaultMinioConfig returns a MinioConfig for endpoint and bucket with
// TLS enabled and ambient credentials.
func DefaultMinioConfig(endpoint, bucket string) MinioConfig {
	return MinioConfig{
		Endpoint:    endpoint,
		Bucket:      bucket,
		UseSSL:      true,
		Credentials: NoCredentials(),
	}
}
