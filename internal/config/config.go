package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"
)

// State backends
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Environment variables that override file values
const (
	EnvAPIURL      = "SKILLCONNECT_API_URL"
	EnvSocketURL   = "SKILLCONNECT_SOCKET_URL"
	EnvRedisAddr   = "SKILLCONNECT_REDIS_ADDR"
	EnvPostgresDSN = "SKILLCONNECT_POSTGRES_DSN"
)

// RedisConfig configures the redis state backend
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty" validate:"min=0"`
}

// Config represents the application configuration
type Config struct {
	APIBaseURL        string        `yaml:"apiBaseURL" validate:"required,url"`
	SocketURL         string        `yaml:"socketURL" validate:"required,url"`
	RequestTimeout    time.Duration `yaml:"requestTimeout,omitempty" validate:"min=0"`
	StateBackend      string        `yaml:"stateBackend,omitempty" validate:"oneof=file memory redis postgres"`
	StateDir          string        `yaml:"stateDir,omitempty"`
	Redis             RedisConfig   `yaml:"redis,omitempty"`
	PostgresDSN       string        `yaml:"postgresDSN,omitempty"`
	TypingIdle        time.Duration `yaml:"typingIdle,omitempty" validate:"min=0"`
	SupportReplyDelay time.Duration `yaml:"supportReplyDelay,omitempty" validate:"min=0"`
	LogDir            string        `yaml:"logDir,omitempty"`
	DigestSchedule    string        `yaml:"digestSchedule,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load loads and validates the configuration from skillconnect_<env>.yaml.
// A .env file in the working directory is applied first.
func Load(env string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	configPath, err := findConfigFile(env)
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration struct, the selected backend's settings and the digest rule
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch cfg.StateBackend {
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("config validation failed: redis.addr is required when stateBackend is %q", BackendRedis)
		}
	case BackendPostgres:
		if cfg.PostgresDSN == "" {
			return fmt.Errorf("config validation failed: postgresDSN is required when stateBackend is %q", BackendPostgres)
		}
	}

	if cfg.DigestSchedule != "" {
		if _, err := rrule.StrToRRule(cfg.DigestSchedule); err != nil {
			return fmt.Errorf("invalid rrule in digestSchedule: %w", err)
		}
	}

	return nil
}

// DigestRule parses the digest schedule. It returns nil when none is configured.
func (c *Config) DigestRule() (*rrule.RRule, error) {
	if c.DigestSchedule == "" {
		return nil, nil
	}
	rule, err := rrule.StrToRRule(c.DigestSchedule)
	if err != nil {
		return nil, fmt.Errorf("invalid rrule in digestSchedule: %w", err)
	}
	return rule, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvSocketURL); v != "" {
		cfg.SocketURL = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.PostgresDSN = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = BackendFile
	}
	if cfg.StateDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.StateDir = filepath.Join(home, ".skillconnect")
		} else {
			cfg.StateDir = ".skillconnect"
		}
	}
	if cfg.TypingIdle == 0 {
		cfg.TypingIdle = time.Second
	}
	if cfg.SupportReplyDelay == 0 {
		cfg.SupportReplyDelay = time.Second
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "logs"
	}
}

// loadDotEnv applies .env from the working directory. A missing file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// findConfigFile searches for skillconnect_<env>.yaml in current directory and home directory
func findConfigFile(env string) (string, error) {
	configFileName := fmt.Sprintf("skillconnect_%s.yaml", env)

	// Check current directory
	if _, err := os.Stat(configFileName); err == nil {
		return configFileName, nil
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homeConfigPath := filepath.Join(homeDir, configFileName)
	if _, err := os.Stat(homeConfigPath); err == nil {
		return homeConfigPath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", configFileName)
}
