package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Service  *svcConfig
	Engine   *engineConfig
	Storage  *storageConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"reports"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string   `envconfig:"REPORT_ENGINE_ADDRESS" default:":3443"`
	MetricsAddress  string   `envconfig:"REPORT_ENGINE_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string   `envconfig:"REPORT_ENGINE_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string   `envconfig:"REPORT_ENGINE_LOG_LEVEL" default:"info"`
	CorsOrigins     []string `envconfig:"REPORT_ENGINE_CORS_ORIGINS" default:"https://localhost:3000"`
	MigrationFolder string   `envconfig:"REPORT_ENGINE_MIGRATIONS_FOLDER" default:"deploy/migrations"`
}

type engineConfig struct {
	// WorkerSlots bounds the number of jobs generating reports in parallel.
	WorkerSlots int `envconfig:"REPORT_ENGINE_WORKER_SLOTS" default:"4"`
	// DepartmentSlots caps running jobs per department; 0 disables the cap.
	DepartmentSlots   int           `envconfig:"REPORT_ENGINE_DEPARTMENT_SLOTS" default:"2"`
	DispatchInterval  time.Duration `envconfig:"REPORT_ENGINE_DISPATCH_INTERVAL" default:"2s"`
	TriggerInterval   time.Duration `envconfig:"REPORT_ENGINE_TRIGGER_INTERVAL" default:"30s"`
	ReconcileInterval time.Duration `envconfig:"REPORT_ENGINE_RECONCILE_INTERVAL" default:"1m"`
	LeaseTTL          time.Duration `envconfig:"REPORT_ENGINE_LEASE_TTL" default:"2m"`
	RetryBaseDelay    time.Duration `envconfig:"REPORT_ENGINE_RETRY_BASE_DELAY" default:"30s"`
	RetryMaxDelay     time.Duration `envconfig:"REPORT_ENGINE_RETRY_MAX_DELAY" default:"15m"`
	// DefaultMaxRetries applies to report types without their own limit.
	DefaultMaxRetries int `envconfig:"REPORT_ENGINE_DEFAULT_MAX_RETRIES" default:"3"`
}

type storageConfig struct {
	// Backend selects the artifact store: "minio" or "local".
	Backend   string        `envconfig:"REPORT_ENGINE_STORAGE_BACKEND" default:"local"`
	Retention time.Duration `envconfig:"REPORT_ENGINE_ARTIFACT_RETENTION" default:"168h"`
	LocalDir  string        `envconfig:"REPORT_ENGINE_STORAGE_DIR" default:"/var/lib/report-engine/artifacts"`
	Endpoint  string        `envconfig:"REPORT_ENGINE_S3_ENDPOINT" default:""`
	Bucket    string        `envconfig:"REPORT_ENGINE_S3_BUCKET" default:"report-artifacts"`
	AccessKey string        `envconfig:"REPORT_ENGINE_S3_ACCESS_KEY" default:""`
	SecretKey string        `envconfig:"REPORT_ENGINE_S3_SECRET_KEY" default:""`
	UseSSL    bool          `envconfig:"REPORT_ENGINE_S3_USE_SSL" default:"false"`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a fresh, non-shared configuration.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	return cfg
}

// NewTestConfig is NewDefault wired to an in-memory sqlite database.
func NewTestConfig() *Config {
	cfg := NewDefault()
	cfg.Database.Type = "sqlite"
	// shared cache keeps every pooled connection on the same database; the
	// busy timeout lets concurrent workers wait out each other's writes
	cfg.Database.Name = "file::memory:?cache=shared&_busy_timeout=5000"
	return cfg
}
