package config

const (
	defaultDataDir                 = "~/.local/share/sieve"
	defaultLogDir                  = "~/.local/share/sieve/logs"
	defaultMaxWidth                = 800
	defaultMaxHeight               = 800
	defaultQuality                 = 75
	defaultLowThreshold            = 30
	defaultHighThreshold           = 225
	defaultMaxInputPixels          = 40_000_000
	defaultRegistryFile            = "registry.db"
	defaultArtifactsSubdir         = "artifacts"
	defaultBusyTimeoutMillis       = 5000
	defaultOperationTimeoutSeconds = 10
	defaultUploadTimeoutSeconds    = 60
	defaultNamePrefix              = "image"
	defaultIngestJobs              = 4
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"

	// UploadSourceCanonical uploads the normalized bytes that were fingerprinted.
	UploadSourceCanonical = "canonical"
	// UploadSourceOriginal uploads the bytes exactly as submitted.
	UploadSourceOriginal = "original"
)

// Default returns a Config populated with repository defaults. Registry and
// artifact paths are left empty and derived from the data directory during
// normalization.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Canonical: Canonical{
			MaxWidth:      defaultMaxWidth,
			MaxHeight:     defaultMaxHeight,
			Quality:       defaultQuality,
			LowThreshold:  defaultLowThreshold,
			HighThreshold: defaultHighThreshold,

			MaxInputPixels: defaultMaxInputPixels,
		},
		Registry: Registry{
			BusyTimeoutMillis:       defaultBusyTimeoutMillis,
			OperationTimeoutSeconds: defaultOperationTimeoutSeconds,
		},
		Artifacts: Artifacts{
			NamePrefix:           defaultNamePrefix,
			UploadTimeoutSeconds: defaultUploadTimeoutSeconds,
			UploadSource:         UploadSourceCanonical,
		},
		Ingest: Ingest{
			Jobs: defaultIngestJobs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
