// Package config loads the server configuration.
//
// LOAD ORDER:
//  1. Defaults (Default())
//  2. An optional YAML file, named by the CONFIG_FILE env var
//  3. Environment variables, which always win
//
// The result is validated once; main aborts on a bad configuration instead of
// discovering it on the first request.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is the full server configuration.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Upload    UploadConfig    `yaml:"upload"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	// TrustProxy makes X-Forwarded-For / X-Real-IP the client address. Only
	// enable it behind a proxy that overwrites those headers; otherwise any
	// client can pick its own rate limit key.
	TrustProxy      bool          `yaml:"trust_proxy"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path"`   // sqlite file, or ":memory:"
	URL    string `yaml:"url"`    // postgres connection string
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	TokenTTL   time.Duration `yaml:"token_ttl"`
	BcryptCost int           `yaml:"bcrypt_cost"`
}

type UploadConfig struct {
	Dir string `yaml:"dir"`
}

// RateLimitConfig holds per-IP request budgets per minute. Zero disables a limiter.
type RateLimitConfig struct {
	AuthPerMinute    int `yaml:"auth_per_minute"`
	GeneralPerMinute int `yaml:"general_per_minute"`
}

// RedisConfig is optional. With an empty Addr the rate limiter is in-process.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Env: EnvDevelopment,
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver: DriverSQLite,
			Path:   "data/mentor-match.db",
		},
		Auth: AuthConfig{
			TokenTTL:   time.Hour,
			BcryptCost: 12,
		},
		Upload: UploadConfig{
			Dir: "data/uploads",
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute:    5,
			GeneralPerMinute: 100,
		},
	}
}

// Load builds a Config from defaults, the optional CONFIG_FILE and the environment.
func Load() (Config, error) {
	return load(os.Getenv)
}

// load takes the env lookup as a parameter so tests don't have to mutate the
// process environment.
func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	if path := getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	// Decoding into the already-defaulted struct keeps every default the file
	// doesn't mention.
	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) error {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid %s value %q: %w", key, v, err)
		}
		*dst = n
		return nil
	}

	setString("APP_ENV", &c.Env)
	if err := setInt("PORT", &c.Server.Port); err != nil {
		return err
	}
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_PATH", &c.Database.Path)
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.Database.URL = v
		// A connection string implies the postgres store unless DB_DRIVER says otherwise.
		if getenv("DB_DRIVER") == "" {
			c.Database.Driver = DriverPostgres
		}
	}
	setString("JWT_SECRET", &c.Auth.JWTSecret)
	if v := strings.TrimSpace(getenv("JWT_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid JWT_TTL value %q: %w", v, err)
		}
		c.Auth.TokenTTL = d
	}
	if err := setInt("BCRYPT_COST", &c.Auth.BcryptCost); err != nil {
		return err
	}
	setString("UPLOAD_DIR", &c.Upload.Dir)
	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := strings.TrimSpace(getenv("TRUST_PROXY")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid TRUST_PROXY value %q: %w", v, err)
		}
		c.Server.TrustProxy = b
	}
	setString("REDIS_ADDR", &c.Redis.Addr)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	if err := setInt("RATE_LIMIT_AUTH", &c.RateLimit.AuthPerMinute); err != nil {
		return err
	}
	return setInt("RATE_LIMIT_GENERAL", &c.RateLimit.GeneralPerMinute)
}

// Validate checks the invariants the rest of the program relies on.
func (c Config) Validate() error {
	var errs []error

	if c.Env != EnvDevelopment && c.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("env must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}
	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 16 characters"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("token TTL must be positive"))
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		errs = append(errs, fmt.Errorf("bcrypt cost %d out of range 4..31", c.Auth.BcryptCost))
	}
	if c.Upload.Dir == "" {
		errs = append(errs, errors.New("upload dir is required"))
	}
	if c.RateLimit.AuthPerMinute < 0 || c.RateLimit.GeneralPerMinute < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether detailed internal errors may be sent to clients.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}
