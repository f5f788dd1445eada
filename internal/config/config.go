package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Storage  StorageConfig
	Persist  PersistConfig
	Log      LogConfig
	UI       UIConfig
}

// DatabaseConfig holds sqlite settings. In snapshot mode Path is the image
// file the working copy is loaded from and saved to.
type DatabaseConfig struct {
	Path string
	Mode string
}

// StorageConfig holds the fallback tier used in snapshot mode.
type StorageConfig struct {
	FallbackPath string `mapstructure:"fallback_path"`
}

// PersistConfig holds the auto-persist cron spec. Empty disables it.
type PersistConfig struct {
	Schedule string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// UIConfig holds presentation settings.
type UIConfig struct {
	Currency string
}

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "arkark")
}

func configPath() string {
	if p := os.Getenv("ARKARK_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "arkark", "config.toml")
}

// Load reads configuration from file and env. A .env file in the working
// directory is loaded first. Env var overrides use prefix ARKARK_.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// default values
	v.SetDefault("database.path", filepath.Join(dataDir(), "arkark.db"))
	v.SetDefault("database.mode", "write_through")
	v.SetDefault("storage.fallback_path", filepath.Join(dataDir(), "arkark.kv"))
	v.SetDefault("persist.schedule", "@every 30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
	v.SetDefault("ui.currency", "TWD")

	v.SetConfigType("toml")
	v.SetConfigFile(configPath())

	v.SetEnvPrefix("ARKARK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	switch c.Database.Mode {
	case "write_through", "snapshot":
	default:
		return Config{}, fmt.Errorf("database.mode: unknown mode %q", c.Database.Mode)
	}
	return c, nil
}

// Save writes cfg to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := configPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("database.mode", cfg.Database.Mode)
	v.Set("storage.fallback_path", cfg.Storage.FallbackPath)
	v.Set("persist.schedule", cfg.Persist.Schedule)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.pretty", cfg.Log.Pretty)
	v.Set("ui.currency", cfg.UI.Currency)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
