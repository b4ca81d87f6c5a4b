package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`
	// DBPath defaults to <data_dir>/worlds.sqlite when empty.
	DBPath string `yaml:"db_path"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	Journal    bool `yaml:"journal"`
	FeedBuffer int  `yaml:"feed_buffer"`
}

func Defaults() Config {
	return Config{
		Addr:    ":8080",
		DataDir: "./data",
		// The stock frontend is the Vite dev server.
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		Journal:            true,
		FeedBuffer:         16,
	}
}

// Load reads the server config, starting from defaults. An empty path means
// defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("server.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	if strings.TrimSpace(c.DBPath) == "" && strings.TrimSpace(c.DataDir) != "" {
		c.DBPath = filepath.Join(c.DataDir, "worlds.sqlite")
	}
	if c.FeedBuffer <= 0 {
		c.FeedBuffer = 16
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	return nil
}

// JournalDir is where the change journal rotates its files.
func (c *Config) JournalDir() string {
	return filepath.Join(c.DataDir, "journal")
}
