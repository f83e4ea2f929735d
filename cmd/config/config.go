package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	AppEnv     string        `env:"APP_ENV" envDefault:"production"`
	ServerPort string        `env:"SERVER_PORT" envDefault:"8080" validate:"required,numeric"`
	DBURL      string        `env:"DB_URL" validate:"required"`
	SecretKey  string        `env:"SECRET_KEY" validate:"required"`
	TokenTTL   time.Duration `env:"TOKEN_TTL" envDefault:"72h"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587" validate:"min=1,max=65535"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
	SMTPFrom string `env:"SMTP_FROM"`

	AutoApprovePolicy   string `env:"AUTO_APPROVE_POLICY" envDefault:"always" validate:"oneof=always opt_in"`
	ReleaseSlotOnCancel bool   `env:"RELEASE_SLOT_ON_CANCEL" envDefault:"true"`
	ReminderSchedule    string `env:"REMINDER_SCHEDULE" envDefault:"0 8 * * *"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	UploadDir      string   `env:"UPLOAD_DIR" envDefault:"uploads"`
}

var validate = validator.New()

// Load reads an optional .env file and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return Parse()
}

// Parse builds a Config from the current environment without touching .env.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Development reports whether the server runs with developer defaults.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// SenderAddress is the From address for outgoing email.
func (c *Config) SenderAddress() string {
	if c.SMTPFrom != "" {
		return c.SMTPFrom
	}
	return c.SMTPUser
}
