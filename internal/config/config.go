package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string `mapstructure:"port"`
	ModelPath     string `mapstructure:"model_path"`     // file or directory of model YAML
	TemplatesPath string `mapstructure:"templates_path"` // file or directory of template YAML
	DBURL         string `mapstructure:"db_url"`
	Workers       int    `mapstructure:"workers"`

	LogLevel       string `mapstructure:"log_level"`
	LogDevelopment bool   `mapstructure:"log_development"`
}

func def() Config {
	return Config{
		Port:          "8080",
		ModelPath:     "model",
		TemplatesPath: "templates",
		DBURL:         "",
		Workers:       4,
		LogLevel:      "info",
	}
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"port":            "port",
	"model":           "model_path",
	"templates":       "templates_path",
	"db":              "db_url",
	"workers":         "workers",
	"log-level":       "log_level",
	"log-development": "log_development",
}

// Load reads the config file, then DVH_* environment variables, then the
// flags that were set explicitly. An empty path looks for dvh.yaml in the
// working directory and is fine when there is none.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	d := def()
	v.SetDefault("port", d.Port)
	v.SetDefault("model_path", d.ModelPath)
	v.SetDefault("templates_path", d.TemplatesPath)
	v.SetDefault("db_url", d.DBURL)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_development", d.LogDevelopment)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dvh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	// ENV overrides
	v.SetEnvPrefix("DVH")
	v.AutomaticEnv()

	// Flags overrides
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	cfg.ModelPath = strings.TrimSpace(cfg.ModelPath)
	cfg.TemplatesPath = strings.TrimSpace(cfg.TemplatesPath)
	cfg.DBURL = strings.TrimSpace(cfg.DBURL)
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q (allowed: debug|info|warn|error)", c.LogLevel)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
