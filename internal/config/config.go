package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	DefaultConfigDir  = ".claudewatch"
	DefaultConfigFile = "config.yaml"
	DefaultLogFile    = "analysis.jsonl"
	DefaultDataDir    = "data"

	// EnvConfigPath overrides the default config location when --config is not given.
	EnvConfigPath = "CLAUDE_WATCH_CONFIG"
)

// Config is the fully resolved runtime configuration handed to commands.
// Everything the engine needs lives in Watch; the rest is CLI plumbing.
type Config struct {
	ConfigDir  string
	ConfigPath string
	LogPath    string
	Watch      *WatchConfig
}

// Load resolves where configuration lives, loads .env files so API keys are
// visible, then parses and path-resolves the watch configuration. Validation is
// left to the engine so commands like status can still inspect a broken file.
func Load(configPath, logPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configDir := filepath.Join(homeDir, DefaultConfigDir)
	if err := ensureDir(configDir); err != nil {
		return nil, err
	}

	// Existing environment wins over both files.
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(configDir, ".env"))

	cfg := &Config{ConfigDir: configDir}

	switch {
	case configPath != "":
		cfg.ConfigPath = configPath
	case os.Getenv(EnvConfigPath) != "":
		cfg.ConfigPath = os.Getenv(EnvConfigPath)
	default:
		cfg.ConfigPath = filepath.Join(configDir, DefaultConfigFile)
	}

	if logPath != "" {
		cfg.LogPath = logPath
	} else {
		cfg.LogPath = filepath.Join(configDir, DefaultLogFile)
	}

	watch, err := LoadWatch(cfg.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if watch.DataDir == "" {
		watch.DataDir = filepath.Join(configDir, DefaultDataDir)
	}
	cfg.Watch = watch

	return cfg, nil
}

// LoadWatch reads a YAML or JSON watch configuration and resolves relative
// example paths against the file's directory.
func LoadWatch(path string) (*WatchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file not found: %s", ErrConfig, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}

	watch, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err == nil {
		watch.ResolvePaths(filepath.Dir(abs))
	}
	return watch, nil
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
