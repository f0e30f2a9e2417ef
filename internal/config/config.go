package config

import (
	"fmt"
	"path/filepath"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	DataDir string `env:"CHECKIN_DATA_DIR,default=data"`

	DirectorySheet string `env:"DIRECTORY_SHEET,default=directory"`
	CheckInSheet   string `env:"CHECKIN_SHEET,default=checkins"`
	IDColumn       string `env:"ID_COLUMN,default=id"`
	PhoneColumn    string `env:"PHONE_COLUMN,default=phone"`

	LockTimeout      time.Duration `env:"LOCK_TIMEOUT,default=10s"`
	TemplateCacheTTL time.Duration `env:"TEMPLATE_CACHE_TTL,default=6h"`

	HTTPAddr  string  `env:"HTTP_ADDR,default=:8080"`
	RateLimit float64 `env:"RATE_LIMIT,default=5"`
	RateBurst int     `env:"RATE_BURST,default=10"`

	EnableWhatsApp   bool   `env:"ENABLE_WHATSAPP,default=false"`
	NotifyOnCheckIn  bool   `env:"NOTIFY_ON_CHECKIN,default=false"`
	PhoneCountryCode string `env:"PHONE_COUNTRY_CODE,default=886"`

	EnableCLI bool   `env:"ENABLE_CLI,default=true"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
}

// LoadConfig reads an optional .env file, then the environment
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT must be positive, got %s", cfg.LockTimeout)
	}
	return &cfg, nil
}

func (c *Config) WorkbookPath() string {
	return filepath.Join(c.DataDir, "workbook.db")
}

func (c *Config) PropertiesPath() string {
	return filepath.Join(c.DataDir, "properties.json")
}
