package config

// Application constants
const (
	AppName    = "disbursex"
	AppVersion = "1.0.0"

	// EnvPrefix prefixes every environment variable, e.g. DISBURSEX_SERVER_PORT.
	EnvPrefix = "DISBURSEX"

	DefaultPort           = 8080
	DefaultMaxUploadBytes = 64 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// Extraction defaults
	DefaultHeaderScanRows   = 60
	DefaultMetaRows         = 8
	DefaultMetaCols         = 8
	DefaultWorkers          = 4
	DefaultMaxFilesPerBatch = 8

	DefaultLedgerSheet = "編集用"

	// Rate Limiting
	DefaultRateLimitRPS = 5
	DefaultBurstSize    = 10
)

// ConfigFileLocations are searched in order when DISBURSEX_CONFIG_FILE is
// unset.
var ConfigFileLocations = []string{
	"disbursex.yaml",
	"config.yaml",
	"configs/config.yaml",
}
