package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultServerAddress  = ":4000"
	DefaultFrontendOrigin = "http://localhost:5173"
	DefaultSQLiteDSN      = "muhabet.db"
)

var validate = validator.New()

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address" validate:"required"`
	FrontendOrigin    string `json:"frontend_origin" validate:"required,url"`
	MinWorkers        int    `json:"min_workers" validate:"gte=1"`
	MaxWorkers        int    `json:"max_workers" validate:"gtefield=MinWorkers"`
	QueueSize         int    `json:"queue_size" validate:"gte=1"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout"` // minutes
	SubmitTimeout     int    `json:"submit_timeout"`      // seconds
	SendBuffer        int    `json:"send_buffer" validate:"gte=1"`
	NotifyRejections  bool   `json:"notify_rejections"`
	HistoryCacheTTL   int    `json:"history_cache_ttl"` // seconds
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// overrides are read from MUHABET_* variables, falling back to the bare names.
type overrides struct {
	Port             int    `envconfig:"PORT"`
	ServerAddress    string `envconfig:"SERVER_ADDRESS"`
	FrontendOrigin   string `envconfig:"FRONTEND_ORIGIN"`
	SQLiteDSN        string `envconfig:"SQLITE_DSN"`
	NotifyRejections *bool  `envconfig:"NOTIFY_REJECTIONS"`
	RedisHost        string `envconfig:"REDIS_HOST"`
	RedisPort        int    `envconfig:"REDIS_PORT"`
	RedisPassword    string `envconfig:"REDIS_PASSWORD"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error: the service then runs on defaults and env overrides.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if sqlite, ok := cfg.Databases["sqlite3"]; ok && isRelativeFile(sqlite.DSN) {
		sqlite.DSN = filepath.Join(filepath.Dir(absPath), sqlite.DSN)
		cfg.Databases["sqlite3"] = sqlite
	}

	if err := validate.Struct(cfg.BasicConfig); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var o overrides
	if err := envconfig.Process("muhabet", &o); err != nil {
		return fmt.Errorf("read env overrides: %w", err)
	}
	if o.ServerAddress != "" {
		c.BasicConfig.ServerAddress = o.ServerAddress
	} else if o.Port > 0 {
		c.BasicConfig.ServerAddress = fmt.Sprintf(":%d", o.Port)
	}
	if o.FrontendOrigin != "" {
		c.BasicConfig.FrontendOrigin = strings.TrimRight(o.FrontendOrigin, "/")
	}
	if o.NotifyRejections != nil {
		c.BasicConfig.NotifyRejections = *o.NotifyRejections
	}
	if o.SQLiteDSN != "" {
		if c.Databases == nil {
			c.Databases = make(map[string]DatabaseConfig)
		}
		db := c.Databases["sqlite3"]
		db.DSN = o.SQLiteDSN
		c.Databases["sqlite3"] = db
	}
	if o.RedisHost != "" {
		c.Redis.Enabled = true
		c.Redis.Host = o.RedisHost
	}
	if o.RedisPort > 0 {
		c.Redis.Port = o.RedisPort
	}
	if o.RedisPassword != "" {
		c.Redis.Password = o.RedisPassword
	}
	return nil
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = DefaultServerAddress
	}
	if b.FrontendOrigin == "" {
		b.FrontendOrigin = DefaultFrontendOrigin
	}
	if b.MinWorkers <= 0 {
		b.MinWorkers = 2
	}
	if b.MaxWorkers <= 0 {
		b.MaxWorkers = 8
	}
	if b.QueueSize <= 0 {
		b.QueueSize = 256
	}
	if b.WorkerIdleTimeout <= 0 {
		b.WorkerIdleTimeout = 5
	}
	if b.SubmitTimeout <= 0 {
		b.SubmitTimeout = 10
	}
	if b.SendBuffer <= 0 {
		b.SendBuffer = 64
	}
	if b.HistoryCacheTTL <= 0 {
		b.HistoryCacheTTL = 30
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if db, ok := c.Databases["sqlite3"]; !ok || db.DSN == "" {
		db.DSN = DefaultSQLiteDSN
		c.Databases["sqlite3"] = db
	}
}

func isRelativeFile(dsn string) bool {
	if dsn == "" || strings.HasPrefix(dsn, "file:") || strings.HasPrefix(dsn, ":memory:") {
		return false
	}
	return !filepath.IsAbs(dsn)
}
