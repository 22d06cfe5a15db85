package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads a YAML config named configName from configPath (or ./ and
// ./config) and layers environment variables on top, with "." in keys
// mapped to "_" in variable names. A missing file is not an error.
func Load(configPath, configName string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return v, nil
}

// Duration reads key as a Go duration string ("750ms", "2s").
// Unparsable or empty values yield def.
func Duration(v *viper.Viper, key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return def
	}
	return d
}

// BindEnvs binds each config key to an explicit environment variable.
// Pairs are given as key, env, key, env, ...
func BindEnvs(v *viper.Viper, pairs ...string) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("bind envs: odd number of arguments")
	}
	for i := 0; i < len(pairs); i += 2 {
		if err := v.BindEnv(pairs[i], pairs[i+1]); err != nil {
			return fmt.Errorf("bind %s: %w", pairs[i], err)
		}
	}
	return nil
}
