// Package config loads the generator configuration from file and
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Backend string        `mapstructure:"backend"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Paths   PathsConfig   `mapstructure:"paths"`
	Workers int           `mapstructure:"workers"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ArchiveConfig names the repository being processed.
type ArchiveConfig struct {
	// Root is a local mirror path or a repository base URL.
	Root string `mapstructure:"root"`
}

// PathsConfig contains path-related configuration
type PathsConfig struct {
	TmpDir  string `mapstructure:"tmp_dir"`
	DBFile  string `mapstructure:"db_file"`
	LogFile string `mapstructure:"log_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	Color string `mapstructure:"color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("asgen")
	viper.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "asgen"))
	}
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvPrefix("ASGEN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Archive.Root = expandPath(cfg.Archive.Root)
	cfg.Paths.TmpDir = expandPath(cfg.Paths.TmpDir)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	cacheDir, err := os.UserCacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = os.TempDir()
	}
	stateDir := filepath.Join(cacheDir, "asgen")

	viper.SetDefault("backend", "debian")
	viper.SetDefault("archive.root", ".")
	viper.SetDefault("workers", 0)

	viper.SetDefault("paths.tmp_dir", filepath.Join(stateDir, "tmp"))
	viper.SetDefault("paths.db_file", filepath.Join(stateDir, "state.db"))
	viper.SetDefault("paths.log_file", filepath.Join(stateDir, "asgen.log"))

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.color", "auto")
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
