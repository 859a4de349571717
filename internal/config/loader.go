package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "bifrost.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "bifrost.yml"

// envPrefix namespaces the environment overrides, e.g. BIFROST_DIALECT
// overrides dialect. Variables map to flat top-level keys, so nested
// settings such as llm.api_key cannot be set from the environment.
const envPrefix = "BIFROST_"

// Load reads the config file and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	// BIFROST_DIALECT -> dialect; nested keys stay file-only
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadFromDir finds and loads bifrost.yaml (or .yml) in the directory.
// Returns nil, nil when no config file exists.
func LoadFromDir(dir string) (*Config, error) {
	path := findConfigFile(dir)
	if path == "" {
		return nil, nil
	}
	return Load(path)
}

func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyDefaults fills in default values.
func (c *Config) ApplyDefaults() {
	if c.Dialect == "" {
		c.Dialect = "sqlite"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "standard"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Schema reads the schema file, when configured.
func (c *Config) Schema() (string, error) {
	if c.SchemaFile == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.SchemaFile)
	if err != nil {
		return "", fmt.Errorf("reading schema file: %w", err)
	}
	return string(data), nil
}
