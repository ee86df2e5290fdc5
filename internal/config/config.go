package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes. In jwt mode every API request needs a bearer token; dev mode
// additionally accepts header-less requests as an admin using DEV_TOKEN.
const (
	AuthModeJWT = "jwt"
	AuthModeDev = "dev"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	BackendURL     string        `mapstructure:"BACKEND_URL"`
	BackendToken   string        `mapstructure:"BACKEND_TOKEN"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	AuthSigningKey string        `mapstructure:"AUTH_SIGNING_KEY"`
	AuthMode       string        `mapstructure:"AUTH_MODE"`
	DevToken       string        `mapstructure:"DEV_TOKEN"`
	ReportDir      string        `mapstructure:"REPORT_DIR"`
	ReportSchedule string        `mapstructure:"REPORT_SCHEDULE"`
	SandboxPort    string        `mapstructure:"SANDBOX_PORT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("SANDBOX_PORT", "8090")
	v.SetDefault("AUTH_MODE", AuthModeJWT)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("LOG_LEVEL")
	v.BindEnv("BACKEND_URL")
	v.BindEnv("BACKEND_TOKEN")
	v.BindEnv("REQUEST_TIMEOUT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("AUTH_MODE")
	v.BindEnv("DEV_TOKEN")
	v.BindEnv("REPORT_DIR")
	v.BindEnv("REPORT_SCHEDULE")
	v.BindEnv("SANDBOX_PORT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// ResolvedAuthMode returns the effective auth mode; unset means jwt.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode == "" {
		return AuthModeJWT
	}
	return c.AuthMode
}

// DevAuthToken returns the token granted to header-less requests. It is empty
// unless AUTH_MODE is dev, whatever ENV says.
func (c *Config) DevAuthToken() string {
	if c.ResolvedAuthMode() != AuthModeDev {
		return ""
	}
	return c.DevToken
}

// SigningKey returns the decoded HMAC key used to verify bearer tokens, or nil
// when tokens are only decoded.
func (c *Config) SigningKey() []byte {
	if c.AuthSigningKey == "" {
		return nil
	}
	key, err := hex.DecodeString(c.AuthSigningKey)
	if err != nil {
		return nil
	}
	return key
}

// Validate checks that the configuration is usable before the server starts.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil {
		return fmt.Errorf("BACKEND_URL is not a valid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("BACKEND_URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("BACKEND_URL must include a host")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if c.AuthSigningKey != "" {
		key, err := hex.DecodeString(c.AuthSigningKey)
		if err != nil {
			return fmt.Errorf("AUTH_SIGNING_KEY is not valid hex: %w", err)
		}
		if len(key) < 32 {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least 32 bytes, got %d bytes", len(key))
		}
	}

	switch c.ResolvedAuthMode() {
	case AuthModeJWT:
	case AuthModeDev:
		if c.DevToken == "" {
			return fmt.Errorf("DEV_TOKEN is required when AUTH_MODE is %q", AuthModeDev)
		}
		if c.Env == "production" {
			return fmt.Errorf("AUTH_MODE %q is not allowed when ENV is production", AuthModeDev)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeJWT, AuthModeDev, c.AuthMode)
	}

	if c.ReportSchedule != "" {
		if _, err := time.Parse("15:04", c.ReportSchedule); err != nil {
			return fmt.Errorf("REPORT_SCHEDULE must be HH:MM, got %q", c.ReportSchedule)
		}
		if c.ReportDir == "" {
			return fmt.Errorf("REPORT_DIR is required when REPORT_SCHEDULE is set")
		}
	}

	return nil
}
