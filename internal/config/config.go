package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the service configuration, read from YAML and the environment.
type Config struct {
	Addr     string `yaml:"addr" env:"WORKLOG_ADDR" env-default:":8080"`
	LogLevel string `yaml:"log_level" env:"WORKLOG_LOG_LEVEL" env-default:"INFO"`

	DB struct {
		Driver string `yaml:"driver" env:"WORKLOG_DB_DRIVER" env-default:"sqlite3"`
		DSN    string `yaml:"dsn" env:"WORKLOG_DB_DSN" env-default:"data/worklog.db"`
	} `yaml:"db"`

	Auth struct {
		JWTSecret string        `yaml:"jwt_secret" env:"WORKLOG_JWT_SECRET"`
		TokenTTL  time.Duration `yaml:"token_ttl" env:"WORKLOG_TOKEN_TTL" env-default:"24h"`
	} `yaml:"auth"`

	// Bootstrap seeds the first admin account when the user table is empty.
	Bootstrap struct {
		EmpID    string `yaml:"emp_id" env:"WORKLOG_ADMIN_ID" env-default:"ADMIN"`
		Name     string `yaml:"name" env:"WORKLOG_ADMIN_NAME" env-default:"Administrator"`
		Email    string `yaml:"email" env:"WORKLOG_ADMIN_EMAIL"`
		Password string `yaml:"password" env:"WORKLOG_ADMIN_PASSWORD"`
	} `yaml:"bootstrap_admin"`

	SMTP struct {
		Host     string `yaml:"host" env:"SMTP_HOST"`
		Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
		Username string `yaml:"username" env:"EMAIL_USER"`
		Password string `yaml:"password" env:"EMAIL_APP_PASSWORD"`
		From     string `yaml:"from" env:"EMAIL_FROM"`
		// Reviewer gets new submissions, Records gets approvals.
		Reviewer string `yaml:"reviewer" env:"PM_EMAIL"`
		Records  string `yaml:"records" env:"HR_EMAIL"`
	} `yaml:"smtp"`

	NotifyTimeout time.Duration `yaml:"notify_timeout" env:"WORKLOG_NOTIFY_TIMEOUT" env-default:"30s"`

	Metrics struct {
		Stdout   bool          `yaml:"stdout" env:"WORKLOG_METRICS_STDOUT" env-default:"false"`
		Interval time.Duration `yaml:"interval" env:"WORKLOG_METRICS_INTERVAL" env-default:"1m"`
	} `yaml:"metrics"`
}

// Load reads an optional .env file, then the YAML file at path (when it
// exists), then the environment. Environment values win.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if path == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
		return cfg, cfg.validate()
	}

	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return Config{}, fmt.Errorf("read env: %w", err)
		}
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.DB.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret (WORKLOG_JWT_SECRET) is required")
	}
	return nil
}

// SMTPEnabled reports whether mail delivery is configured.
func (c Config) SMTPEnabled() bool {
	return c.SMTP.Host != ""
}

// BootstrapEnabled reports whether a first admin should be seeded.
func (c Config) BootstrapEnabled() bool {
	return c.Bootstrap.Email != "" && c.Bootstrap.Password != ""
}
