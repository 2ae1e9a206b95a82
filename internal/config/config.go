// Package config builds the editor's configuration once at startup. The
// resulting Config is passed to constructors; nothing reads it globally.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration.
type Config struct {
	Transport string `yaml:"transport"`
	Port      string `yaml:"port"`
	DataDir   string `yaml:"data_dir"`

	Backend BackendConfig `yaml:"backend"`

	// UseLocalStorage keeps drafts in DataDir across restarts.
	UseLocalStorage bool          `yaml:"use_local_storage"`
	PersistDebounce time.Duration `yaml:"persist_debounce"`

	Log LogConfig `yaml:"log"`
}

type BackendConfig struct {
	URL            string        `yaml:"url"`
	AccessToken    string        `yaml:"access_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Transport:       "stdio",
		Port:            "8081",
		DataDir:         "./data",
		UseLocalStorage: true,
		PersistDebounce: 500 * time.Millisecond,
		Backend: BackendConfig{
			URL:            "http://localhost:42001",
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Environment variables read by Load.
const (
	EnvBackendURL  = "EDITOR_BACKEND_URL"
	EnvAccessToken = "EDITOR_ACCESS_TOKEN"
	EnvDataDir     = "EDITOR_DATA_DIR"
	EnvLogLevel    = "EDITOR_LOG_LEVEL"
)

// Load reads the configuration from, in increasing precedence, defaults, the
// YAML file named by -config, environment variables and the remaining flags.
func Load(args []string, getenv func(string) string) (Config, error) {
	fs := flag.NewFlagSet("editor-mcp", flag.ContinueOnError)
	path := fs.String("config", "", "Path to a YAML configuration file")
	transport := fs.String("transport", "", "Transport mode: stdio or http")
	port := fs.String("port", "", "HTTP port (only used with --transport http)")
	dataDir := fs.String("data-dir", "", "Directory for the local draft database")
	backendURL := fs.String("backend-url", "", "Base URL of the site backend")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if *path != "" {
		if err := cfg.loadFile(*path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv(getenv)

	setIf(&cfg.Transport, *transport)
	setIf(&cfg.Port, *port)
	setIf(&cfg.DataDir, *dataDir)
	setIf(&cfg.Backend.URL, *backendURL)
	setIf(&cfg.Log.Level, *logLevel)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	setIf(&c.Backend.URL, getenv(EnvBackendURL))
	setIf(&c.Backend.AccessToken, getenv(EnvAccessToken))
	setIf(&c.DataDir, getenv(EnvDataDir))
	setIf(&c.Log.Level, getenv(EnvLogLevel))
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error
	switch c.Transport {
	case "stdio", "http":
	default:
		errs = append(errs, fmt.Errorf("unknown transport %q (use stdio or http)", c.Transport))
	}
	if c.Transport == "http" {
		if _, err := strconv.Atoi(c.Port); err != nil {
			errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
		}
	}
	if strings.TrimSpace(c.Backend.URL) == "" {
		errs = append(errs, errors.New("backend url is required"))
	}
	if c.Backend.RequestTimeout < 0 {
		errs = append(errs, errors.New("backend request_timeout must not be negative"))
	}
	if c.PersistDebounce < 0 {
		errs = append(errs, errors.New("persist_debounce must not be negative"))
	}
	if c.UseLocalStorage && c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required when use_local_storage is set"))
	}
	return errors.Join(errs...)
}
