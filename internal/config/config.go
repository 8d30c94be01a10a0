// Package config loads imagescout configuration from file and environment.
// Precedence: environment variables (IMAGESCOUT_ prefix), then the config
// file, then built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Load reads configuration from the given file path. When path is empty it
// searches for imagescout.yaml in the current directory and ~/.imagescout,
// and missing files are not an error.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("imagescout")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.imagescout")
	}

	v.SetEnvPrefix("IMAGESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.path", "imagescout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("plugins.advisor.default_limit", 5)
}

// NewLogger builds a zap logger from the log.level and log.format settings.
func NewLogger(v *viper.Viper) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(v.GetString("log.level"))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", v.GetString("log.level"), err)
	}

	var cfg zap.Config
	if v.GetString("log.format") == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
