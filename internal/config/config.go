// Package config centralizes how InvoiceDrop reads its settings: defaults in
// code, then an optional YAML file, then INVOICEDROP_* environment variables.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Scheduler backends.
const (
	SchedulerTimer = "timer"
	SchedulerAsynq = "asynq"
)

// ConfigEnv names the variable pointing at a YAML config file.
const ConfigEnv = "INVOICEDROP_CONFIG"

// Config represents runtime configuration for the service.
type Config struct {
	Address         string        `yaml:"address" env:"INVOICEDROP_ADDRESS"`
	CORSOrigin      string        `yaml:"cors_origin" env:"INVOICEDROP_CORS_ORIGIN"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"INVOICEDROP_SHUTDOWN_TIMEOUT"`

	Log        Log        `yaml:"log"`
	Upload     Upload     `yaml:"upload"`
	Storage    Storage    `yaml:"storage"`
	Signing    Signing    `yaml:"signing"`
	Processing Processing `yaml:"processing"`
	Redis      Redis      `yaml:"redis"`
	NATS       NATS       `yaml:"nats"`
}

type Log struct {
	Level  string `yaml:"level" env:"INVOICEDROP_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"INVOICEDROP_LOG_PRETTY"`
}

type Upload struct {
	MaxFileSize       int64   `yaml:"max_file_bytes" env:"INVOICEDROP_MAX_FILE_BYTES"`
	MaxFilesPerUpload int     `yaml:"max_files" env:"INVOICEDROP_MAX_FILES"`
	FieldName         string  `yaml:"field" env:"INVOICEDROP_UPLOAD_FIELD"`
	RatePerSecond     float64 `yaml:"rps" env:"INVOICEDROP_UPLOAD_RPS"`
	Burst             int     `yaml:"burst" env:"INVOICEDROP_UPLOAD_BURST"`
}

type Storage struct {
	Backend string `yaml:"backend" env:"INVOICEDROP_STORAGE"`
	Dir     string `yaml:"dir" env:"INVOICEDROP_UPLOAD_DIR"`
	S3      S3     `yaml:"s3"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint" env:"INVOICEDROP_S3_ENDPOINT"`
	AccessKey string `yaml:"access_key_id" env:"INVOICEDROP_S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_access_key" env:"INVOICEDROP_S3_SECRET_KEY"`
	Region    string `yaml:"region" env:"INVOICEDROP_S3_REGION"`
	Bucket    string `yaml:"bucket" env:"INVOICEDROP_S3_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"INVOICEDROP_S3_USE_SSL"`
}

type Signing struct {
	Secret string        `yaml:"secret" env:"INVOICEDROP_SIGNING_SECRET"`
	TTL    time.Duration `yaml:"ttl" env:"INVOICEDROP_SIGNED_TTL"`
}

type Processing struct {
	Scheduler      string        `yaml:"scheduler" env:"INVOICEDROP_SCHEDULER"`
	Workers        int           `yaml:"workers" env:"INVOICEDROP_WORKERS"`
	StartDelay     time.Duration `yaml:"start_delay" env:"INVOICEDROP_START_DELAY"`
	FinishMinDelay time.Duration `yaml:"finish_min_delay" env:"INVOICEDROP_FINISH_MIN_DELAY"`
	FinishMaxDelay time.Duration `yaml:"finish_max_delay" env:"INVOICEDROP_FINISH_MAX_DELAY"`
	SuccessRate    float64       `yaml:"success_rate" env:"INVOICEDROP_SUCCESS_RATE"`
	Seed           int64         `yaml:"seed" env:"INVOICEDROP_SEED"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"INVOICEDROP_REDIS_ADDR"`
	Password string `yaml:"password" env:"INVOICEDROP_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"INVOICEDROP_REDIS_DB"`
}

type NATS struct {
	URL           string `yaml:"url" env:"INVOICEDROP_NATS_URL"`
	Subject       string `yaml:"subject" env:"INVOICEDROP_NATS_SUBJECT"`
	MaxReconnects int    `yaml:"max_reconnects" env:"INVOICEDROP_NATS_MAX_RECONNECTS"`
}

const (
	// 10 << 20 equals 10 * 2^20 bytes.
	defaultMaxFileSize     = 10 << 20
	defaultMaxFiles        = 10
	defaultField           = "invoices"
	defaultAddress         = ":8080"
	defaultSignedTTL       = 5 * time.Minute
	defaultWorkerCount     = 2
	defaultShutdownTimeout = 5 * time.Second
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Address:         defaultAddress,
		CORSOrigin:      "*",
		ShutdownTimeout: defaultShutdownTimeout,
		Log:             Log{Level: "info"},
		Upload: Upload{
			MaxFileSize:       defaultMaxFileSize,
			MaxFilesPerUpload: defaultMaxFiles,
			FieldName:         defaultField,
			Burst:             5,
		},
		Storage: Storage{
			Backend: StorageLocal,
			Dir:     "./uploads",
			S3:      S3{Endpoint: "localhost:9000", Region: "us-east-1", Bucket: "invoices"},
		},
		Signing: Signing{TTL: defaultSignedTTL},
		Processing: Processing{
			Scheduler:      SchedulerTimer,
			Workers:        defaultWorkerCount,
			StartDelay:     time.Second,
			FinishMinDelay: 15 * time.Second,
			FinishMaxDelay: 45 * time.Second,
			SuccessRate:    0.8,
		},
		Redis: Redis{Addr: "localhost:6379"},
		NATS:  NATS{Subject: "invoices.status", MaxReconnects: 10},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// INVOICEDROP_CONFIG variable is consulted, and when that is empty too only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: cannot read file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: cannot unmarshal yaml: %w", err)
		}
	}
	// No envDefault tags: unset variables leave the file/default value alone.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate replaces non-positive sizes and durations with defaults and
// rejects settings that cannot work.
func (c *Config) Validate() error {
	d := Default()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = d.Upload.MaxFileSize
	}
	if c.Upload.MaxFilesPerUpload <= 0 {
		c.Upload.MaxFilesPerUpload = d.Upload.MaxFilesPerUpload
	}
	if c.Upload.FieldName == "" {
		c.Upload.FieldName = d.Upload.FieldName
	}
	if c.Upload.Burst <= 0 {
		c.Upload.Burst = d.Upload.Burst
	}
	if c.Signing.TTL <= 0 {
		c.Signing.TTL = d.Signing.TTL
	}
	if c.Signing.Secret == "" {
		// If no secret was supplied we generate one using crypto/rand.
		c.Signing.Secret = randomSecret()
	}
	if c.Processing.Workers <= 0 {
		c.Processing.Workers = d.Processing.Workers
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.Processing.StartDelay < 0 {
		c.Processing.StartDelay = d.Processing.StartDelay
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = d.NATS.Subject
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.Dir == "" {
			return fmt.Errorf("config: storage.dir is empty")
		}
	case StorageS3:
		if c.Storage.S3.Endpoint == "" || c.Storage.S3.Bucket == "" {
			return fmt.Errorf("config: s3 endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Processing.Scheduler {
	case SchedulerTimer:
	case SchedulerAsynq:
		if c.Redis.Addr == "" {
			return fmt.Errorf("config: redis.addr is required for the asynq scheduler")
		}
	default:
		return fmt.Errorf("config: unknown scheduler %q", c.Processing.Scheduler)
	}
	if c.Processing.SuccessRate < 0 || c.Processing.SuccessRate > 1 {
		return fmt.Errorf("config: success_rate must be within [0, 1], got %v", c.Processing.SuccessRate)
	}
	if c.Processing.FinishMinDelay < 0 || c.Processing.FinishMaxDelay < c.Processing.FinishMinDelay {
		return fmt.Errorf("config: finish delays must satisfy 0 <= min <= max, got %s and %s",
			c.Processing.FinishMinDelay, c.Processing.FinishMaxDelay)
	}
	if c.Upload.RatePerSecond < 0 {
		return fmt.Errorf("config: upload rps must not be negative")
	}
	return nil
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte("fallbacksecret"))
	}
	return hex.EncodeToString(buf)
}
