// /internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DiscordToken      string `env:"DISCORD_TOKEN,required,notEmpty"`
	InitSlashCommands bool   `env:"INIT_SLASH_COMMANDS" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile   string `env:"LOG_FILE"`
	LogPretty bool   `env:"LOG_PRETTY"`

	Proxy           string        `env:"PROXY"`
	StreamMode      string        `env:"STREAM_MODE" envDefault:"link"`
	SearchBaseURL   string        `env:"SEARCH_BASE_URL" envDefault:"https://www.youtube.com"`
	SearchRate      float64       `env:"SEARCH_RATE" envDefault:"2"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"15s"`
}

var ErrInvalid = errors.New("invalid configuration")

// LoadDotEnv reads .env into the process environment if it exists. It
// reports whether a file was loaded.
func LoadDotEnv(paths ...string) (bool, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
	}
	if err := godotenv.Load(paths...); err != nil {
		return false, fmt.Errorf("load dotenv: %w", err)
	}
	return true, nil
}

// Load parses the process environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StreamMode {
	case "link", "pipe":
	default:
		return fmt.Errorf("%w: STREAM_MODE must be link or pipe, got %q", ErrInvalid, c.StreamMode)
	}
	if c.SearchRate <= 0 {
		return fmt.Errorf("%w: SEARCH_RATE must be positive", ErrInvalid)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("%w: PROVIDER_TIMEOUT must be positive", ErrInvalid)
	}
	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return fmt.Errorf("%w: PROXY: %w", ErrInvalid, err)
		}
		switch u.Scheme {
		case "http", "https", "socks4", "socks5":
		default:
			return fmt.Errorf("%w: PROXY scheme must be http, https, socks4 or socks5, got %q", ErrInvalid, u.Scheme)
		}
	}
	return nil
}
