package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configDirName = ".brainroute"

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	Brain           BrainEnvConfig
	Aliases         *ModelAliases
	ConfigDir       string
}

// Load reads API keys from the environment and the router configuration
// from BRAIN_CONFIG_FILE, falling back to ~/.brainroute/brain.{yaml,toml}.
// API keys are never read from files.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	aliases, err := LoadAliasesWithFallback("")
	if err != nil {
		return nil, fmt.Errorf("failed to load model aliases: %w", err)
	}

	lookup := os.LookupEnv
	if v, ok := os.LookupEnv("BRAIN_CONFIG_FILE"); !ok || v == "" {
		if path := findBrainFile(configDir); path != "" {
			lookup = withDefault(os.LookupEnv, "BRAIN_CONFIG_FILE", path)
		}
	}

	return &Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		Brain:           LoadEnvConfigFrom(lookup),
		Aliases:         aliases,
		ConfigDir:       configDir,
	}, nil
}

// Registry builds a mode registry from the loaded configuration.
func (c *Config) Registry() *Registry {
	return NewRegistry(c.Brain, WithAliases(c.Aliases))
}

// HasAdapter returns true if the API key for the given provider is configured.
func (c *Config) HasAdapter(name string) bool {
	return c.APIKey(name) != ""
}

// APIKey returns the configured key for provider.
func (c *Config) APIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openai":
		return c.OpenAIAPIKey
	case "google":
		return c.GoogleAPIKey
	case "deepseek":
		return c.DeepSeekAPIKey
	default:
		return ""
	}
}

func findBrainFile(dir string) string {
	for _, name := range []string{"brain.yaml", "brain.yml", "brain.toml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func withDefault(lookup LookupFunc, key, value string) LookupFunc {
	return func(k string) (string, bool) {
		if k == key {
			return value, true
		}
		return lookup(k)
	}
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
