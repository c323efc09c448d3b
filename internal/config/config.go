package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server settings. Values come from defaults, then an
// optional YAML file pointed at by IMGD_CONFIG, then environment
// variables; later sources win.
type Config struct {
	ListenAddr string
	LogLevel   string

	// DBDriver is "sqlite" or "postgres".
	DBDriver string
	DBDSN    string

	// StorageBackend is "filesystem" or "gcs".
	StorageBackend string
	StoragePath    string
	GCSBucket      string

	// RedisAddr enables the render cache and computed events when set.
	RedisAddr string

	AuthToken string

	// DefaultTTL is the expiry assigned to new image records.
	DefaultTTL    time.Duration
	SweepInterval time.Duration

	MaxImageWidth  int
	MaxImageHeight int
	MaxUploadBytes int64
	ImageAllowance int

	QueueSize int
	Workers   int
}

// fileConfig mirrors Config for YAML decoding; durations are strings.
type fileConfig struct {
	ListenAddr     string `yaml:"listen_addr"`
	LogLevel       string `yaml:"log_level"`
	DBDriver       string `yaml:"db_driver"`
	DBDSN          string `yaml:"db_dsn"`
	StorageBackend string `yaml:"storage_backend"`
	StoragePath    string `yaml:"storage_path"`
	GCSBucket      string `yaml:"gcs_bucket"`
	RedisAddr      string `yaml:"redis_addr"`
	AuthToken      string `yaml:"auth_token"`
	DefaultTTL     string `yaml:"default_ttl"`
	SweepInterval  string `yaml:"sweep_interval"`
	MaxImageWidth  int    `yaml:"max_image_width"`
	MaxImageHeight int    `yaml:"max_image_height"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	ImageAllowance int    `yaml:"image_allowance"`
	QueueSize      int    `yaml:"queue_size"`
	Workers        int    `yaml:"workers"`
}

// Load builds the configuration from defaults, file and environment.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:     ":8080",
		LogLevel:       "info",
		DBDriver:       "sqlite",
		DBDSN:          "/data/db/images.db",
		StorageBackend: "filesystem",
		StoragePath:    "/data/images",
		DefaultTTL:     24 * time.Hour,
		SweepInterval:  time.Minute,
		MaxImageWidth:  16384,
		MaxImageHeight: 16384,
		MaxUploadBytes: 10 << 20,
		ImageAllowance: 100000,
		QueueSize:      1024,
		Workers:        4,
	}

	if path := os.Getenv("IMGD_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "postgres" {
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}
	if cfg.StorageBackend != "filesystem" && cfg.StorageBackend != "gcs" {
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "gcs" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("gcs storage requires a bucket name")
	}
	if cfg.DefaultTTL <= 0 {
		return nil, fmt.Errorf("default ttl must be positive")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.DBDriver, fc.DBDriver)
	setString(&c.DBDSN, fc.DBDSN)
	setString(&c.StorageBackend, fc.StorageBackend)
	setString(&c.StoragePath, fc.StoragePath)
	setString(&c.GCSBucket, fc.GCSBucket)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.AuthToken, fc.AuthToken)
	if fc.MaxImageWidth > 0 {
		c.MaxImageWidth = fc.MaxImageWidth
	}
	if fc.MaxImageHeight > 0 {
		c.MaxImageHeight = fc.MaxImageHeight
	}
	if fc.MaxUploadBytes > 0 {
		c.MaxUploadBytes = fc.MaxUploadBytes
	}
	if fc.ImageAllowance > 0 {
		c.ImageAllowance = fc.ImageAllowance
	}
	if fc.QueueSize > 0 {
		c.QueueSize = fc.QueueSize
	}
	if fc.Workers > 0 {
		c.Workers = fc.Workers
	}
	if err := setDuration(&c.DefaultTTL, fc.DefaultTTL); err != nil {
		return fmt.Errorf("config file default_ttl: %w", err)
	}
	if err := setDuration(&c.SweepInterval, fc.SweepInterval); err != nil {
		return fmt.Errorf("config file sweep_interval: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.ListenAddr, os.Getenv("IMGD_LISTEN_ADDR"))
	setString(&c.LogLevel, os.Getenv("IMGD_LOG_LEVEL"))
	setString(&c.DBDriver, os.Getenv("IMGD_DB_DRIVER"))
	setString(&c.DBDSN, os.Getenv("IMGD_DB_DSN"))
	setString(&c.StorageBackend, os.Getenv("IMGD_STORAGE_BACKEND"))
	setString(&c.StoragePath, os.Getenv("IMGD_STORAGE_PATH"))
	setString(&c.GCSBucket, os.Getenv("IMGD_GCS_BUCKET"))
	setString(&c.RedisAddr, os.Getenv("IMGD_REDIS_ADDR"))
	setString(&c.AuthToken, os.Getenv("IMGD_AUTH_TOKEN"))

	for _, v := range []struct {
		key string
		dst *int
	}{
		{"IMGD_MAX_IMAGE_WIDTH", &c.MaxImageWidth},
		{"IMGD_MAX_IMAGE_HEIGHT", &c.MaxImageHeight},
		{"IMGD_IMAGE_ALLOWANCE", &c.ImageAllowance},
		{"IMGD_QUEUE_SIZE", &c.QueueSize},
		{"IMGD_WORKERS", &c.Workers},
	} {
		if err := setInt(v.dst, os.Getenv(v.key)); err != nil {
			return fmt.Errorf("%s: %w", v.key, err)
		}
	}

	if s := os.Getenv("IMGD_MAX_UPLOAD_BYTES"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("IMGD_MAX_UPLOAD_BYTES: %w", err)
		}
		c.MaxUploadBytes = n
	}

	if err := setDuration(&c.DefaultTTL, os.Getenv("IMGD_DEFAULT_TTL")); err != nil {
		return fmt.Errorf("IMGD_DEFAULT_TTL: %w", err)
	}
	if err := setDuration(&c.SweepInterval, os.Getenv("IMGD_SWEEP_INTERVAL")); err != nil {
		return fmt.Errorf("IMGD_SWEEP_INTERVAL: %w", err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v string) error {
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return err
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
