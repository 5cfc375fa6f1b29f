// Package config centralizes how gestionqr reads its settings and exposes
// them as strongly typed Go values. Every key can come from the environment
// (GESTIONQR_ prefix) or from an optional file named by GESTIONQR_CONFIG.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gestionqr/gestionqr/internal/storage"
)

// Record store drivers.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// Config represents runtime configuration for the server, worker and CLI.
type Config struct {
	Address   string
	LogLevel  string
	LogFormat string
	// PublicAppURL is the origin written into QR payloads when set.
	PublicAppURL string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	BlobDriver      storage.Driver
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	S3Region        string
	S3UseSSL        bool
	S3PathStyle     bool
	Bucket          string
	BucketPublic    bool
	PublicBucketURL string
	SignedURLTTL    time.Duration
	MaxFileSize     int64

	JWTSecret     []byte
	SigningSecret []byte

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LabelWorkers  int
}

const (
	envPrefix = "GESTIONQR"
	// 25 << 20 equals 25 MiB.
	defaultMaxFileSize  = 25 << 20
	defaultSignedTTL    = 30 * time.Minute
	defaultAddress      = ":8080"
	defaultBucket       = "documentos"
	defaultSQLitePath   = "gestionqr.db"
	defaultRedisAddr    = "localhost:6379"
	defaultLabelWorkers = 1
)

// Load reads configuration from the environment and the optional config
// file, falling back to defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path := os.Getenv(envPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("address", defaultAddress)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("public_app_url", "")
	v.SetDefault("store_driver", StorePostgres)
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", defaultSQLitePath)
	v.SetDefault("blob_driver", string(storage.DriverMinio))
	v.SetDefault("s3_endpoint", "localhost:9000")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_use_ssl", false)
	v.SetDefault("s3_path_style", true)
	v.SetDefault("bucket", defaultBucket)
	v.SetDefault("bucket_public", false)
	v.SetDefault("public_bucket_url", "")
	v.SetDefault("signed_url_ttl", defaultSignedTTL)
	v.SetDefault("max_file_size", defaultMaxFileSize)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("signing_secret", "")
	v.SetDefault("redis_addr", defaultRedisAddr)
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("label_workers", defaultLabelWorkers)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Address:         v.GetString("address"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
		PublicAppURL:    strings.TrimSpace(v.GetString("public_app_url")),
		StoreDriver:     strings.ToLower(v.GetString("store_driver")),
		DatabaseURL:     v.GetString("database_url"),
		SQLitePath:      v.GetString("sqlite_path"),
		BlobDriver:      storage.Driver(strings.ToLower(v.GetString("blob_driver"))),
		S3Endpoint:      v.GetString("s3_endpoint"),
		S3AccessKey:     v.GetString("s3_access_key"),
		S3SecretKey:     v.GetString("s3_secret_key"),
		S3Region:        v.GetString("s3_region"),
		S3UseSSL:        v.GetBool("s3_use_ssl"),
		S3PathStyle:     v.GetBool("s3_path_style"),
		Bucket:          v.GetString("bucket"),
		BucketPublic:    v.GetBool("bucket_public"),
		PublicBucketURL: v.GetString("public_bucket_url"),
		SignedURLTTL:    v.GetDuration("signed_url_ttl"),
		MaxFileSize:     v.GetInt64("max_file_size"),
		JWTSecret:       secret(v.GetString("jwt_secret")),
		SigningSecret:   secret(v.GetString("signing_secret")),
		RedisAddr:       v.GetString("redis_addr"),
		RedisPassword:   v.GetString("redis_password"),
		RedisDB:         v.GetInt("redis_db"),
		LabelWorkers:    v.GetInt("label_workers"),
	}
	if cfg.SigningSecret == nil {
		// Download links then only survive until the process restarts.
		cfg.SigningSecret = randomSecret()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	if cfg.LabelWorkers <= 0 {
		cfg.LabelWorkers = defaultLabelWorkers
	}
	if cfg.Bucket == "" {
		cfg.Bucket = defaultBucket
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres, StoreSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	switch c.BlobDriver {
	case storage.DriverMemory, storage.DriverMinio, storage.DriverS3:
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	return nil
}

// RequireDatabase reports a configuration error when the selected store
// cannot be opened.
func (c *Config) RequireDatabase() error {
	if c.StoreDriver == StorePostgres && c.DatabaseURL == "" {
		return fmt.Errorf("%s_DATABASE_URL is required for the postgres store", envPrefix)
	}
	if c.StoreDriver == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("%s_SQLITE_PATH is required for the sqlite store", envPrefix)
	}
	return nil
}

// RequireJWT reports a configuration error when tokens cannot be verified.
func (c *Config) RequireJWT() error {
	if len(c.JWTSecret) == 0 {
		return fmt.Errorf("%s_JWT_SECRET is required", envPrefix)
	}
	return nil
}

func secret(v string) []byte {
	if v == "" {
		return nil
	}
	return []byte(v)
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
