package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yukikurage/unica-api/internal/constants"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Session  SessionConfig  `yaml:"session"`
	App      AppConfig      `yaml:"app"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	GinMode         string        `yaml:"gin_mode"`
	LogLevel        string        `yaml:"log_level"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver                 string        `yaml:"driver"` // postgres, mysql or sqlite
	Host                   string        `yaml:"host"`
	Port                   string        `yaml:"port"`
	User                   string        `yaml:"user"`
	Password               string        `yaml:"password"`
	Name                   string        `yaml:"name"` // file path for sqlite
	SSLMode                string        `yaml:"ssl_mode"`
	MaxOpenConns           int           `yaml:"max_open_conns"`
	MaxIdleConns           int           `yaml:"max_idle_conns"`
	ConnMaxLifetime        time.Duration `yaml:"conn_max_lifetime"`
	MaxTransactionAttempts int           `yaml:"max_transaction_attempts"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	PoolSize int    `yaml:"pool_size"`
}

type SessionConfig struct {
	Secret string `yaml:"secret"`
	Store  string `yaml:"store"` // redis or cookie
	MaxAge int    `yaml:"max_age"`
}

type AppConfig struct {
	MaxPinnedTasks int `yaml:"max_pinned_tasks"`
}

// Load reads the YAML file at path when it exists and applies environment
// overrides on top of it.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            "8080",
			GinMode:         "debug",
			LogLevel:        "info",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:                 "postgres",
			Host:                   "localhost",
			Port:                   "5432",
			User:                   "unica",
			Password:               "unica",
			Name:                   "unica",
			SSLMode:                "disable",
			MaxOpenConns:           25,
			MaxIdleConns:           5,
			ConnMaxLifetime:        5 * time.Minute,
			MaxTransactionAttempts: constants.MaxTransactionAttempts,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
		},
		Session: SessionConfig{
			Secret: "default-secret-key-change-me",
			Store:  "redis",
			MaxAge: 86400 * 7,
		},
		App: AppConfig{
			MaxPinnedTasks: constants.MaxPinnedTasks,
		},
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Server.GinMode = getEnv("GIN_MODE", cfg.Server.GinMode)
	cfg.Server.LogLevel = getEnv("LOG_LEVEL", cfg.Server.LogLevel)
	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.MaxTransactionAttempts = getEnvInt("DB_MAX_TRANSACTION_ATTEMPTS", cfg.Database.MaxTransactionAttempts)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnv("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Session.Secret = getEnv("SESSION_SECRET", cfg.Session.Secret)
	cfg.Session.Store = getEnv("SESSION_STORE", cfg.Session.Store)
	cfg.App.MaxPinnedTasks = getEnvInt("MAX_PINNED_TASKS", cfg.App.MaxPinnedTasks)

	if cfg.Database.MaxTransactionAttempts < 1 {
		cfg.Database.MaxTransactionAttempts = 1
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}
