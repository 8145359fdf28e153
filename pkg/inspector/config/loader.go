package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment variable read by WithEnv.
const EnvPrefix = "INSPECTOR_"

// ErrUnsupportedFormat indicates a config file extension other than
// .yaml, .yml or .json.
var ErrUnsupportedFormat = errors.New("unsupported config file format")

// FromFile loads configuration from a file, auto-detecting format by extension.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(data)
	case ".json":
		return FromJSON(data)
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// FromYAML parses YAML data into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON data into a Config. An empty document is an empty Config.
func FromJSON(data []byte) (Config, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return New(nil), nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// WithEnv returns a copy of c overridden by environ, given in os.Environ
// form. After EnvPrefix the first underscore separates the section from the
// field, so INSPECTOR_CACHE_TTL sets cache.ttl and
// INSPECTOR_VALIDATION_REGEX_TIMEOUT sets validation.regex_timeout.
// Empty values are ignored. Overrides always win over the document.
func (c Config) WithEnv(environ []string) Config {
	data := make(map[string]any, len(c.data))
	for k, v := range c.data {
		data[k] = v
	}
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
		if rest == "" {
			continue
		}
		section, field, nested := strings.Cut(rest, "_")
		key := section
		if nested {
			key = section + "." + field
		}
		data[key] = value
	}
	return Config{data: data}
}
