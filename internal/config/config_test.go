package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		APIBaseURL:   "https://api.skillconnect.test/api",
		SocketURL:    "wss://api.skillconnect.test",
		StateBackend: BackendFile,
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "skillconnect_test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.DigestSchedule = "FREQ=DAILY;BYHOUR=9;BYMINUTE=0"

	assert.NoError(t, Validate(cfg))
}

func TestValidate_MissingRequiredField(t *testing.T) {
	cfg := validConfig()
	cfg.SocketURL = ""

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_InvalidURL(t *testing.T) {
	cfg := validConfig()
	cfg.APIBaseURL = "not a url"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_UnknownBackend(t *testing.T) {
	cfg := validConfig()
	cfg.StateBackend = "sqlite"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidate_BackendSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "redis without addr",
			mutate:  func(c *Config) { c.StateBackend = BackendRedis },
			wantErr: "redis.addr is required",
		},
		{
			name: "redis with addr",
			mutate: func(c *Config) {
				c.StateBackend = BackendRedis
				c.Redis.Addr = "localhost:6379"
			},
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.StateBackend = BackendPostgres },
			wantErr: "postgresDSN is required",
		},
		{
			name: "postgres with dsn",
			mutate: func(c *Config) {
				c.StateBackend = BackendPostgres
				c.PostgresDSN = "postgres://localhost/skillconnect"
			},
		},
		{
			name:   "memory",
			mutate: func(c *Config) { c.StateBackend = BackendMemory },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_InvalidRRule(t *testing.T) {
	cfg := validConfig()
	cfg.DigestSchedule = "INVALID_RRULE_SYNTAX"

	err := Validate(cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestDigestRule(t *testing.T) {
	cfg := validConfig()

	rule, err := cfg.DigestRule()
	require.NoError(t, err)
	assert.Nil(t, rule)

	cfg.DigestSchedule = "FREQ=HOURLY;INTERVAL=2"
	rule, err = cfg.DigestRule()
	require.NoError(t, err)
	require.NotNil(t, rule)

	now := time.Now()
	next := rule.After(now, false)
	assert.True(t, next.After(now))
}

func TestLoadFromPath_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
apiBaseURL: "https://api.skillconnect.test/api"
socketURL: "wss://api.skillconnect.test"
requestTimeout: 5s
stateBackend: redis
redis:
  addr: "localhost:6379"
  db: 2
typingIdle: 1500ms
digestSchedule: "FREQ=WEEKLY;BYDAY=MO"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://api.skillconnect.test/api", cfg.APIBaseURL)
	assert.Equal(t, "wss://api.skillconnect.test", cfg.SocketURL)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendRedis, cfg.StateBackend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 1500*time.Millisecond, cfg.TypingIdle)
	assert.Equal(t, "FREQ=WEEKLY;BYDAY=MO", cfg.DigestSchedule)
}

func TestLoadFromPath_Defaults(t *testing.T) {
	path := writeConfig(t, `
apiBaseURL: "https://api.skillconnect.test/api"
socketURL: "wss://api.skillconnect.test"
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, BackendFile, cfg.StateBackend)
	assert.NotEmpty(t, cfg.StateDir)
	assert.Equal(t, time.Second, cfg.TypingIdle)
	assert.Equal(t, time.Second, cfg.SupportReplyDelay)
	assert.Equal(t, "logs", cfg.LogDir)
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://staging.skillconnect.test/api")
	t.Setenv(EnvPostgresDSN, "postgres://localhost/state")

	path := writeConfig(t, `
apiBaseURL: "https://api.skillconnect.test/api"
socketURL: "wss://api.skillconnect.test"
stateBackend: postgres
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://staging.skillconnect.test/api", cfg.APIBaseURL)
	assert.Equal(t, "postgres://localhost/state", cfg.PostgresDSN)
}

func TestLoadFromPath_InvalidRRule(t *testing.T) {
	path := writeConfig(t, `
apiBaseURL: "https://api.skillconnect.test/api"
socketURL: "wss://api.skillconnect.test"
digestSchedule: "NOT_A_RULE"
`)

	_, err := LoadFromPath(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rrule")
}

func TestLoadFromPath_MissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "apiBaseURL: [unclosed")

	_, err := LoadFromPath(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_FindsFileInWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	body := `
apiBaseURL: "https://api.skillconnect.test/api"
socketURL: "wss://api.skillconnect.test"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skillconnect_local.yaml"), []byte(body), 0644))

	cfg, err := Load("local")
	require.NoError(t, err)
	assert.Equal(t, "wss://api.skillconnect.test", cfg.SocketURL)

	_, err = Load("prod")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "skillconnect_prod.yaml not found")
}
