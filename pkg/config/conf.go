package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	EnvHypotheses = "TRACKSCORE_HYPOTHESES"
	EnvDB         = "TRACKSCORE_DB"

	DefaultPort     = 8080
	DefaultLogLevel = "info"
	DefaultProfile  = "default"
	DefaultHypFile  = "hypotheses.yaml"
)

// Config represents app config object.
type Config struct {
	// Hypotheses is the location of the hypotheses payload: a file path, an
	// http(s) URL or github://owner/repo/path[@ref].
	Hypotheses string `yaml:"hypotheses"`
	// IDColumn overrides the student identifier header.
	IDColumn string `yaml:"id_column,omitempty"`
	// DB is the weight store DSN or sqlite path.
	DB       string `yaml:"db,omitempty"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	Profile  string `yaml:"profile"`
}

func getDefaultConfig(dirPath string) *Config {
	return &Config{
		Hypotheses: filepath.Join(dirPath, DefaultHypFile),
		Port:       DefaultPort,
		LogLevel:   DefaultLogLevel,
		Profile:    DefaultProfile,
	}
}

func (c *Config) applyDefaults(dirPath string) {
	d := getDefaultConfig(dirPath)
	if c.Hypotheses == "" {
		c.Hypotheses = d.Hypotheses
	}
	if c.Port <= 0 {
		c.Port = d.Port
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Profile == "" {
		c.Profile = d.Profile
	}
}

func (c *Config) applyEnvironmentOverrides() {
	if v := strings.TrimSpace(os.Getenv(EnvHypotheses)); v != "" {
		slog.Debug("hypotheses location from environment", "env", EnvHypotheses)
		c.Hypotheses = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDB)); v != "" {
		slog.Debug("weight store from environment", "env", EnvDB)
		c.DB = v
	}
}

func (c *Config) validate() error {
	if c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// Save writes c to the config file in dirPath.
func Save(dirPath string, c *Config) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if c == nil {
		return errors.New("config required")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", configFileName, err)
	}
	return nil
}

// ReadOrCreate reads app config from directory or creates a new one.
// Environment overrides are applied to the returned value, never saved.
func ReadOrCreate(dirPath string) (*Config, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("failed to create dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default config", "path", path)
		if err := Save(dirPath, getDefaultConfig(dirPath)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config file %s: %w", path, err)
	}

	c.applyDefaults(dirPath)
	c.applyEnvironmentOverrides()

	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &c, nil
}

// GetOrCreateHomeDir returns the home directory for the current user.
// The create flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("failed to get user home dir: %w", err)
	}
	slog.Debug("home dir", "path", home)

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("failed to create dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
