// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	JWTSecret      string `mapstructure:"JWT_SECRET"`
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	ServiceName    string `mapstructure:"SERVICE_NAME"`
	DBDriver       string `mapstructure:"DB_DRIVER"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	DBReadHost     string `mapstructure:"DB_READ_HOST"`
	DBReadPort     string `mapstructure:"DB_READ_PORT"`
	DBSchemaMode   string `mapstructure:"DB_SCHEMA_MODE"`
	DBMaxOpenConns int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	FlagsFile      string `mapstructure:"FEATURE_FLAGS_FILE"`
	RateLimitRPM   int    `mapstructure:"RATE_LIMIT_RPM"`

	UsersServiceURL   string        `mapstructure:"USERS_SERVICE_URL"`
	FeedAlgorithmURL  string        `mapstructure:"FEED_ALGORITHM_URL"`
	MetricServiceURL  string        `mapstructure:"METRIC_SERVICE_URL"`
	DownstreamTimeout time.Duration `mapstructure:"DOWNSTREAM_TIMEOUT"`
	TrendingTTL       time.Duration `mapstructure:"TRENDING_TTL"`
	TrendingLimit     int           `mapstructure:"TRENDING_LIMIT"`
	ShareRedirectURL  string        `mapstructure:"SHARE_REDIRECT_URL"`
	SyncOnStartup     bool          `mapstructure:"SYNC_ON_STARTUP"`

	OTelExporter string `mapstructure:"OTEL_EXPORTER"`
	OTelEndpoint string `mapstructure:"OTEL_ENDPOINT"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("SERVICE_NAME", "twitsnap")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "twitsnap")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_READ_HOST", "")
	viper.SetDefault("DB_READ_PORT", "5432")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("FEATURE_FLAGS", "ranked_feed=on,metrics_events=on")
	viper.SetDefault("FEATURE_FLAGS_FILE", "")
	viper.SetDefault("RATE_LIMIT_RPM", 600)
	viper.SetDefault("USERS_SERVICE_URL", "http://localhost:8000")
	viper.SetDefault("FEED_ALGORITHM_URL", "http://localhost:8001")
	viper.SetDefault("METRIC_SERVICE_URL", "http://localhost:8002")
	viper.SetDefault("DOWNSTREAM_TIMEOUT", "5s")
	viper.SetDefault("TRENDING_TTL", "5m")
	viper.SetDefault("TRENDING_LIMIT", 5)
	viper.SetDefault("SHARE_REDIRECT_URL", "myapp://twits")
	viper.SetDefault("SYNC_ON_STARTUP", true)
	viper.SetDefault("OTEL_EXPORTER", "none")
	viper.SetDefault("OTEL_ENDPOINT", "localhost:4318")
}

func (c *Config) normalize() {
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.OTelExporter = strings.ToLower(strings.TrimSpace(c.OTelExporter))
	c.UsersServiceURL = strings.TrimRight(c.UsersServiceURL, "/")
	c.FeedAlgorithmURL = strings.TrimRight(c.FeedAlgorithmURL, "/")
	c.MetricServiceURL = strings.TrimRight(c.MetricServiceURL, "/")
	c.ShareRedirectURL = strings.TrimRight(c.ShareRedirectURL, "/")
}

// IsProduction reports whether the configured environment is production.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.DownstreamTimeout <= 0 {
		return errors.New("DOWNSTREAM_TIMEOUT must be positive")
	}
	if c.TrendingTTL <= 0 {
		return errors.New("TRENDING_TTL must be positive")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable SSL in production")
		}
		if c.UsersServiceURL == "" || c.FeedAlgorithmURL == "" {
			return errors.New("USERS_SERVICE_URL and FEED_ALGORITHM_URL are required in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
