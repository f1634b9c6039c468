package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cfup/common"
	"cfup/logfile"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Environment variables recognized at startup. Credentials never come from
// the config file.
const (
	EnvAPIKey   = "API_KEY"
	EnvZoneID   = "ZONE_ID"
	EnvLogLevel = "LOG_LEVEL"
)

var (
	ErrMissingAPIKey = errors.New("missing " + EnvAPIKey + " in environment")
	ErrMissingZoneID = errors.New("missing " + EnvZoneID + " in environment")
)

type Config struct {
	Service  Service  `toml:"service" json:"service" yaml:"service"`
	Log      Log      `toml:"log" json:"log" yaml:"log"`
	Provider Provider `toml:"provider" json:"provider" yaml:"provider"`
	Resolver Resolver `toml:"resolver" json:"resolver" yaml:"resolver"`
}

type Service struct {
	Name        string          `toml:"name" json:"name" yaml:"name"`
	RefreshRate common.Duration `toml:"refresh_rate" json:"refresh_rate" yaml:"refresh_rate"`
}

type Log struct {
	Level     *zapcore.Level `toml:"level" json:"level" yaml:"level"`
	Dir       string         `toml:"dir" json:"dir" yaml:"dir"`
	File      string         `toml:"file" json:"file" yaml:"file"`
	MaxSizeMB int            `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	Retention logfile.Policy `toml:"retention" json:"retention" yaml:"retention"`
}

// Path is the active log file location.
func (l Log) Path() string {
	return filepath.Join(l.Dir, l.File)
}

type Provider struct {
	// APIToken and ZoneID are environment-only; see LoadEnv.
	APIToken string `toml:"-" json:"-" yaml:"-"`
	ZoneID   string `toml:"-" json:"-" yaml:"-"`

	TTL     int  `toml:"ttl" json:"ttl" yaml:"ttl"`
	Proxied bool `toml:"proxied" json:"proxied" yaml:"proxied"`
}

type Resolver struct {
	Cooldown common.Duration `toml:"cooldown" json:"cooldown" yaml:"cooldown"`
	Timeout  common.Duration `toml:"timeout" json:"timeout" yaml:"timeout"`
	Services []IPService     `toml:"services" json:"services" yaml:"services"`
}

// IPService describes one public-IP lookup endpoint. Format selects the
// response parser; Config carries parser-specific options such as the JSON
// field name.
type IPService struct {
	Name   string         `toml:"name" json:"name" yaml:"name"`
	URL    string         `toml:"url" json:"url" yaml:"url"`
	Format string         `toml:"format" json:"format" yaml:"format"`
	Config map[string]any `toml:"config,omitempty" json:"config,omitempty" yaml:"config,omitempty"`
}

// Default returns the configuration used when no config file is given.
// The built-in lookup service list lives in the sources package.
func Default() Config {
	return Config{
		Log: Log{
			Dir:       "/var/log/cfup",
			File:      "cfup.log",
			MaxSizeMB: 10,
			Retention: logfile.DefaultPolicy(),
		},
		Provider: Provider{
			TTL:     1, // automatic
			Proxied: true,
		},
		Resolver: Resolver{
			Cooldown: common.Duration(24 * time.Hour),
			Timeout:  common.Duration(10 * time.Second),
		},
	}
}

// LoadFile decodes the file at path over c, choosing the codec from the
// file extension.
func (c *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	switch {
	case strings.HasSuffix(path, ".toml"):
		err = toml.NewDecoder(f).Decode(c)
	case strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml"):
		err = yaml.NewDecoder(f).Decode(c)
	case strings.HasSuffix(path, ".json"):
		err = json.NewDecoder(f).Decode(c)
	default:
		return fmt.Errorf("unsupported config format: %s", path)
	}

	if err != nil {
		return fmt.Errorf("decode config: %w", err)
	}

	return nil
}

// LoadEnv overlays environment-supplied values over c.
func (c *Config) LoadEnv() error {
	c.Provider.APIToken = os.Getenv(EnvAPIKey)
	c.Provider.ZoneID = os.Getenv(EnvZoneID)

	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		parsed, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvLogLevel, err)
		}
		c.Log.Level = &parsed
	}

	return nil
}

// Validate reports fatal configuration problems. It must pass before any
// HTTP call is made.
func (c *Config) Validate() error {
	if c.Provider.APIToken == "" {
		return ErrMissingAPIKey
	}
	if c.Provider.ZoneID == "" {
		return ErrMissingZoneID
	}

	for i, svc := range c.Resolver.Services {
		if svc.URL == "" {
			return fmt.Errorf("resolver service %d (%s): missing url", i, svc.Name)
		}
	}

	return nil
}
