package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const defaultSessionSecret = "entrylog-dev-secret"

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string        `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabasePath      string        `env:"DATABASE_PATH" envDefault:"blog.db"`
	SessionSecret     string        `env:"SESSION_SECRET" envDefault:"entrylog-dev-secret"`
	AdminPassword     string        `env:"ADMIN_PASSWORD"`
	AdminPasswordHash string        `env:"ADMIN_PASSWORD_HASH"`
	Env               string        `env:"APP_ENV" envDefault:"dev"`
	LogLevel          string        `env:"LOG_LEVEL"`
	GinMode           string        `env:"GIN_MODE" envDefault:"release"`
	SiteName          string        `env:"SITE_NAME" envDefault:"Blog"`
	SiteWidth         int           `env:"SITE_WIDTH" envDefault:"800"`
	EntriesPerPage    int           `env:"ENTRIES_PER_PAGE" envDefault:"20"`
	LoginRatePerMin   int           `env:"LOGIN_RATE_PER_MINUTE" envDefault:"10"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// IsProduction reports whether APP_ENV selects production behaviour.
func (c AppConfig) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "prod", "production":
		return true
	}
	return false
}

// Load 从环境变量读取应用配置，缺失项使用默认值。
func Load() (AppConfig, error) {
	return parse(env.Options{})
}

// LoadFrom parses configuration from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (AppConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return AppConfig{}, fmt.Errorf("parsing config: %w", err)
	}

	cfg.AdminPassword = strings.TrimSpace(cfg.AdminPassword)
	cfg.AdminPasswordHash = strings.TrimSpace(cfg.AdminPasswordHash)

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c AppConfig) ValidateServe() error {
	var errs []error
	if c.AdminPassword == "" && c.AdminPasswordHash == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set"))
	}
	// 生产环境禁止使用默认会话密钥
	if c.IsProduction() && c.SessionSecret == defaultSessionSecret {
		errs = append(errs, errors.New("SESSION_SECRET must be changed in production"))
	}
	return errors.Join(errs...)
}

func (c AppConfig) validate() error {
	var errs []error
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		errs = append(errs, fmt.Errorf("GIN_MODE must be debug, release or test, got %q", c.GinMode))
	}
	if c.EntriesPerPage <= 0 {
		errs = append(errs, fmt.Errorf("ENTRIES_PER_PAGE must be positive, got %d", c.EntriesPerPage))
	}
	if c.SiteWidth <= 0 {
		errs = append(errs, fmt.Errorf("SITE_WIDTH must be positive, got %d", c.SiteWidth))
	}
	if c.LoginRatePerMin <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_PER_MINUTE must be positive, got %d", c.LoginRatePerMin))
	}
	return errors.Join(errs...)
}
