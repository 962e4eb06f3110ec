package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Service names one of the binaries built from this module.
type Service string

const (
	ServiceLogin       Service = "login"
	ServiceCatalog     Service = "catalog"
	ServiceBilling     Service = "billing"
	ServiceLegacyUsers Service = "legacy-users"
)

// Config holds the application configuration. It is built once at startup
// and shared read-only by every component.
type Config struct {
	Service            Service       `yaml:"-"`
	ServerPort         int           `yaml:"port"`
	Environment        string        `yaml:"environment"`
	LogLevel           string        `yaml:"log_level"`
	DatabasePath       string        `yaml:"database_path"`
	SecretKey          string        `yaml:"secret_key"`
	TokenTTL           time.Duration `yaml:"token_ttl"`
	AuthServiceURL     string        `yaml:"auth_service_url"`
	ValidationTimeout  time.Duration `yaml:"validation_timeout"`
	ValidationCacheTTL time.Duration `yaml:"validation_cache_ttl"`
	RedisURL           string        `yaml:"redis_url"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
}

// Load builds the configuration for a service: defaults first, then the
// optional YAML file at path, then environment variables.
func Load(service Service, path string) (*Config, error) {
	cfg, err := defaults(service)
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults(service Service) (*Config, error) {
	cfg := &Config{
		Service:           service,
		Environment:       "development",
		LogLevel:          "info",
		TokenTTL:          time.Hour,
		ValidationTimeout: 5 * time.Second,
		AllowedOrigins:    []string{"*"},
	}

	switch service {
	case ServiceLogin:
		cfg.ServerPort = 5000
		cfg.DatabasePath = "./users.db"
	case ServiceCatalog:
		cfg.ServerPort = 8000
		cfg.AuthServiceURL = "http://localhost:5000"
	case ServiceBilling:
		cfg.ServerPort = 8001
		cfg.DatabasePath = "./facturacion.db"
		cfg.AuthServiceURL = "http://localhost:5000"
	case ServiceLegacyUsers:
		cfg.ServerPort = 5001
		cfg.DatabasePath = "./users_legacy.db"
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.ServerPort = port
	}

	c.Environment = getEnv("APP_ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	if c.Service == ServiceCatalog {
		// The catalog service has always been configured through DB_URI.
		c.DatabasePath = getEnv("DB_URI", c.DatabasePath)
	}
	c.SecretKey = getEnv("SECRET_KEY", c.SecretKey)
	c.AuthServiceURL = getEnv("AUTH_SERVICE_URL", c.AuthServiceURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = splitList(v)
	}

	var err error
	if c.TokenTTL, err = getEnvDuration("TOKEN_TTL", c.TokenTTL); err != nil {
		return err
	}
	if c.ValidationTimeout, err = getEnvDuration("VALIDATION_TIMEOUT", c.ValidationTimeout); err != nil {
		return err
	}
	if c.ValidationCacheTTL, err = getEnvDuration("VALIDATION_CACHE_TTL", c.ValidationCacheTTL); err != nil {
		return err
	}
	return nil
}

// Validate reports missing or inconsistent settings. Any error here is
// fatal at startup.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.ServerPort))
	}
	if c.DatabasePath == "" {
		if c.Service == ServiceCatalog {
			errs = append(errs, errors.New("DB_URI is required"))
		} else {
			errs = append(errs, errors.New("DATABASE_PATH is required"))
		}
	}

	switch c.Service {
	case ServiceLogin:
		if c.SecretKey == "" {
			errs = append(errs, errors.New("SECRET_KEY is required"))
		}
		if c.TokenTTL <= 0 {
			errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL))
		}
	case ServiceCatalog, ServiceBilling:
		if c.AuthServiceURL == "" {
			errs = append(errs, errors.New("AUTH_SERVICE_URL is required"))
		} else if u, err := url.Parse(c.AuthServiceURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid AUTH_SERVICE_URL %q", c.AuthServiceURL))
		}
		if c.ValidationTimeout <= 0 {
			errs = append(errs, fmt.Errorf("VALIDATION_TIMEOUT must be positive, got %s", c.ValidationTimeout))
		}
		if c.ValidationCacheTTL < 0 {
			errs = append(errs, fmt.Errorf("VALIDATION_CACHE_TTL must not be negative, got %s", c.ValidationCacheTTL))
		}
	}

	return errors.Join(errs...)
}

// IsProduction reports whether cookies should carry the Secure flag and logs
// should be emitted as JSON.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		// Plain integers are accepted as seconds.
		secs, convErr := strconv.Atoi(value)
		if convErr != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		d = time.Duration(secs) * time.Second
	}
	return d, nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
