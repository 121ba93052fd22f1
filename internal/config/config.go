package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MaxBatchSize is the write-batch ceiling imposed by the document store.
	// Configured batch sizes above it are clamped.
	MaxBatchSize = 500

	// DefaultPageSize is used when a caller asks for a page without a size.
	DefaultPageSize = 15

	// DefaultActionSampleSize is how many recent records are scanned to build
	// the action filter list. Product choice, not a platform limit.
	DefaultActionSampleSize = 100

	// DefaultExportLimit caps a single export. Product choice, not a platform limit.
	DefaultExportLimit = 1000
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	AuditStore AuditStoreConfig `yaml:"audit_store"`
	Audit      AuditConfig      `yaml:"audit"`
	JWT        JWTConfig        `yaml:"jwt"`
	Admin      AdminConfig      `yaml:"admin"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// AuditStoreConfig selects where audit log records live.
type AuditStoreConfig struct {
	Driver     string        `yaml:"driver"` // sql, mongo, memory
	MongoURI   string        `yaml:"mongo_uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

type AuditConfig struct {
	PageSize         int    `yaml:"page_size"`
	ActionSampleSize int    `yaml:"action_sample_size"`
	ExportLimit      int    `yaml:"export_limit"`
	BatchSize        int    `yaml:"batch_size"`
	RetentionCron    string `yaml:"retention_cron"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// AdminConfig holds the credentials of the account created on first start.
type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	cfg.overrideFromEnv()
	cfg.Audit.normalize()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "auditdesk.db",
		},
		AuditStore: AuditStoreConfig{
			Driver:     "sql",
			MongoURI:   "mongodb://localhost:27017",
			Database:   "auditdesk",
			Collection: "logs",
			Timeout:    5 * time.Second,
		},
		Audit: AuditConfig{
			PageSize:         DefaultPageSize,
			ActionSampleSize: DefaultActionSampleSize,
			ExportLimit:      DefaultExportLimit,
			BatchSize:        MaxBatchSize,
			RetentionCron:    "0 3 * * *",
		},
		JWT: JWTConfig{
			Secret:     "auditdesk-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
			Email:    "admin@localhost",
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// normalize replaces unset limits with defaults and clamps the batch size
// to what the store accepts.
func (a *AuditConfig) normalize() {
	if a.PageSize <= 0 {
		a.PageSize = DefaultPageSize
	}
	if a.ActionSampleSize <= 0 {
		a.ActionSampleSize = DefaultActionSampleSize
	}
	if a.ExportLimit <= 0 {
		a.ExportLimit = DefaultExportLimit
	}
	if a.BatchSize <= 0 || a.BatchSize > MaxBatchSize {
		a.BatchSize = MaxBatchSize
	}
}

// Normalized returns a copy with defaults applied.
func (a AuditConfig) Normalized() AuditConfig {
	a.normalize()
	return a
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if driver := os.Getenv("AUDIT_STORE_DRIVER"); driver != "" {
		c.AuditStore.Driver = driver
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		c.AuditStore.MongoURI = uri
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if password := os.Getenv("ADMIN_PASSWORD"); password != "" {
		c.Admin.Password = password
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}
