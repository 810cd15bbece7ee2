// Package config loads application settings from the environment.
//
// LOOKUP ORDER (first hit wins):
//  1. real environment variables
//  2. .env.local, then .env (loaded into the environment by godotenv, never
//     overriding what is already set)
//  3. an optional config.yaml in the working directory
//  4. the defaults below
//
// The result is validated once at start-up; a bad value stops the process
// before it binds a port.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting the server and santactl need.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json text"`

	DBPath string `mapstructure:"DB_PATH" validate:"required"`

	JWTSecret  string `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	AppBaseURL string `mapstructure:"APP_BASE_URL" validate:"required,url"`

	UploadDir      string `mapstructure:"UPLOAD_DIR" validate:"required"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES" validate:"gte=1024"`

	// RevealDate and MaxParticipants seed the settings row the first time it
	// is read. After that the admin edits the stored values.
	RevealDate      time.Time `mapstructure:"-"`
	MaxParticipants int       `mapstructure:"MAX_PARTICIPANTS" validate:"gte=3,lte=10000"`

	// SMTP is optional. With an empty host, notifications are only logged.
	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT" validate:"gte=0,lte=65535"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom     string `mapstructure:"SMTP_FROM" validate:"omitempty,email"`

	// GitHub OAuth is optional. The routes are only registered when both the
	// client ID and secret are set.
	GitHubClientID     string `mapstructure:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `mapstructure:"GITHUB_CLIENT_SECRET"`
	GitHubCallbackURL  string `mapstructure:"GITHUB_CALLBACK_URL" validate:"omitempty,url"`

	LoginRateRPS   float64 `mapstructure:"LOGIN_RATE_RPS" validate:"gt=0"`
	LoginRateBurst int     `mapstructure:"LOGIN_RATE_BURST" validate:"gte=1"`
}

// GitHubEnabled reports whether GitHub login should be offered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// SMTPEnabled reports whether real email should be sent.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

// IsProduction reports whether cookies should be marked Secure, among other things.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// keys lists every variable bound from the environment.
var keys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DB_PATH",
	"JWT_SECRET",
	"APP_BASE_URL",
	"UPLOAD_DIR",
	"MAX_UPLOAD_BYTES",
	"REVEAL_DATE",
	"MAX_PARTICIPANTS",
	"SMTP_HOST",
	"SMTP_PORT",
	"SMTP_USERNAME",
	"SMTP_PASSWORD",
	"SMTP_FROM",
	"GITHUB_CLIENT_ID",
	"GITHUB_CLIENT_SECRET",
	"GITHUB_CALLBACK_URL",
	"LOGIN_RATE_RPS",
	"LOGIN_RATE_BURST",
}

// Load builds a Config from the environment, .env files, an optional
// config.yaml and defaults, then validates it.
func Load() (*Config, error) {
	// Missing .env files are fine; real deployments set real env vars.
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("DB_PATH", "santa.db")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("MAX_UPLOAD_BYTES", 5<<20)
	v.SetDefault("REVEAL_DATE", defaultRevealDate(time.Now()).Format(time.RFC3339))
	v.SetDefault("MAX_PARTICIPANTS", 30)
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("LOGIN_RATE_RPS", 1)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	_ = v.ReadInConfig()

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Durations and timestamps arrive as strings; parse them explicitly so
	// the error names the offending key.
	if s := v.GetString("SHUTDOWN_TIMEOUT"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}

	revealDate, err := time.Parse(time.RFC3339, strings.TrimSpace(v.GetString("REVEAL_DATE")))
	if err != nil {
		return nil, fmt.Errorf("invalid REVEAL_DATE (want RFC3339): %w", err)
	}
	c.RevealDate = revealDate.UTC()

	c.AppBaseURL = strings.TrimRight(c.AppBaseURL, "/")

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if c.SMTPEnabled() && c.SMTPFrom == "" {
		return nil, fmt.Errorf("invalid configuration: SMTP_FROM is required when SMTP_HOST is set")
	}
	return &c, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// defaultRevealDate is 17:00 UTC on December 20th of the current year.
func defaultRevealDate(now time.Time) time.Time {
	return time.Date(now.Year(), time.December, 20, 17, 0, 0, 0, time.UTC)
}
