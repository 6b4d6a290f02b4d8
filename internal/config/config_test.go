package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LUMA_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "Login", cfg.Auth.CookieName)
	assert.Equal(t, 8, cfg.Auth.BcryptCost)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 25, cfg.Users.DefaultPageSize)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: mysql
  host: db
  port: 3306
  user: luma
  database: luma
auth:
  jwt_secret: `+testSecret+`
  session_ttl: 1h
users:
  default_page_size: 10
  max_page_size: 50
`), 0o600))

	t.Setenv("LUMA_AUTH_BCRYPT_COST", "10")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 10, cfg.Auth.BcryptCost)
	assert.Equal(t, 10, cfg.Users.DefaultPageSize)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", Path: "x.db"},
			Storage:  StorageConfig{Backend: "filesystem", DataDir: "data"},
			Auth:     AuthConfig{JWTSecret: testSecret, SessionTTL: time.Hour, CookieName: "Login", BcryptCost: 8},
			Users:    UsersConfig{DefaultPageSize: 25, MaxPageSize: 100},
			Logging:  LoggingConfig{Level: "info"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := map[string]func(c *Config){
		"bad port":        func(c *Config) { c.Server.Port = 0 },
		"bad driver":      func(c *Config) { c.Database.Driver = "oracle" },
		"postgres host":   func(c *Config) { c.Database.Driver = "postgres" },
		"short secret":    func(c *Config) { c.Auth.JWTSecret = "short" },
		"s3 bucket":       func(c *Config) { c.Storage.Backend = "s3" },
		"bcrypt cost":     func(c *Config) { c.Auth.BcryptCost = 2 },
		"page size":       func(c *Config) { c.Users.MaxPageSize = 10 },
		"log level":       func(c *Config) { c.Logging.Level = "verbose" },
		"no cookie name":  func(c *Config) { c.Auth.CookieName = "" },
		"zero session tl": func(c *Config) { c.Auth.SessionTTL = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
