// Package core provides the configuration and logging building blocks for
// the daemon.
package core

import (
	"fmt"
	"os"
	"path/filepath"

	uberconfig "go.uber.org/config"
	"go.uber.org/fx"
)

const (
	_configDirEnv  = "CODESHARE_CONFIG_DIR"
	_baseFile      = "base.yaml"
	_overridesFile = "local.yaml"
)

// ConfigModule provides the YAML config provider.
var ConfigModule = fx.Options(
	fx.Provide(NewConfig),
)

// NewConfig loads base.yaml plus an optional local.yaml override from the
// config directory, with environment variable expansion.
func NewConfig() (uberconfig.Provider, error) {
	configDir := configDir()

	basePath := filepath.Join(configDir, _baseFile)
	if _, err := os.Stat(basePath); err != nil {
		return nil, fmt.Errorf("missing base configuration %q: %w", basePath, err)
	}

	options := []uberconfig.YAMLOption{uberconfig.File(basePath)}
	overridePath := filepath.Join(configDir, _overridesFile)
	if _, err := os.Stat(overridePath); err == nil {
		options = append(options, uberconfig.File(overridePath))
	}
	options = append(options, uberconfig.Expand(os.LookupEnv))

	provider, err := uberconfig.NewYAML(options...)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return provider, nil
}

func configDir() string {
	if dir := os.Getenv(_configDirEnv); dir != "" {
		return dir
	}
	return "config"
}
