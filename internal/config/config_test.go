package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:               "development",
		Port:              "3000",
		JWTSecret:         "secure-secret-at-least-32-chars-long",
		DBDriver:          "postgres",
		DBSSLMode:         "disable",
		DownstreamTimeout: 5 * time.Second,
		TrendingTTL:       time.Minute,
		UsersServiceURL:   "http://users",
		FeedAlgorithmURL:  "http://feed",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"Valid development config", func(c *Config) {}, false},
		{"Missing port", func(c *Config) { c.Port = "" }, true},
		{"Missing JWT secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"Zero downstream timeout", func(c *Config) { c.DownstreamTimeout = 0 }, true},
		{"Negative trending TTL", func(c *Config) { c.TrendingTTL = -time.Second }, true},
		{"Unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"Sqlite driver", func(c *Config) { c.DBDriver = "sqlite" }, false},
		{"Production with default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
			c.DBSSLMode = "require"
		}, true},
		{"Production with SSL disabled", func(c *Config) { c.Env = "production" }, true},
		{"Production with require SSL mode", func(c *Config) {
			c.Env = "prod"
			c.DBSSLMode = "require"
		}, false},
		{"Production without feed service", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "verify-full"
			c.FeedAlgorithmURL = ""
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()

	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DOWNSTREAM_TIMEOUT", "750ms")
	t.Setenv("USERS_SERVICE_URL", "http://users.local/")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 750*time.Millisecond, c.DownstreamTimeout)
	assert.Equal(t, "http://users.local", c.UsersServiceURL)
	assert.Equal(t, "myapp://twits", c.ShareRedirectURL)
	assert.Equal(t, 5, c.TrendingLimit)
}

func TestLoadConfig_MissingProfileFile(t *testing.T) {
	defer viper.Reset()

	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(wd) }()

	t.Setenv("APP_ENV", "staging")

	_, err = LoadConfig()
	assert.Error(t, err)
}
