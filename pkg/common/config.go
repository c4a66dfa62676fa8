package common

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	configPathEnv = "CONFIG_PATH"
	configJSONEnv = "CONFIG_JSON"
	envPrefix     = "LOANWATCH_"
)

//go:embed config.default.yaml
var defaultConfig []byte

// ConfigManager layers configuration sources: embedded defaults, an
// optional file pointed at by CONFIG_PATH, an optional CONFIG_JSON
// override, and finally LOANWATCH_* environment variables.
type ConfigManager[T any] struct {
	k *koanf.Koanf
}

func NewConfigManager[T any]() (*ConfigManager[T], error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if path := os.Getenv(configPathEnv); path != "" {
		parser, err := parserForPath(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if raw := os.Getenv(configJSONEnv); raw != "" {
		if err := k.Load(rawbytes.Provider([]byte(raw)), json.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load CONFIG_JSON: %w", err)
		}
	}

	// LOANWATCH_GATEWAY_HTTP_PORT=9000 -> gateway.http.port
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	return &ConfigManager[T]{k: k}, nil
}

// GetConfig unmarshals the merged configuration
func (cm *ConfigManager[T]) GetConfig() T {
	var config T
	cm.k.UnmarshalWithConf("", &config, koanf.UnmarshalConf{Tag: "key"})
	return config
}

// GetRawValue looks up a single flat key in the merged configuration.
// Used by placeholder resolution, which checks configuration before the
// process environment.
func (cm *ConfigManager[T]) GetRawValue(key string) (string, bool) {
	if cm.k.Exists(key) {
		return cm.k.String(key), true
	}
	lower := strings.ToLower(key)
	if lower != key && cm.k.Exists(lower) {
		return cm.k.String(lower), true
	}
	return "", false
}

func parserForPath(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}
}
