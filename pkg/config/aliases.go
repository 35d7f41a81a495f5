package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// ModelAliases maps tier aliases to canonical model ids and lists the
// models each provider serves.
type ModelAliases struct {
	Aliases   map[string]string   `yaml:"aliases"`
	Providers map[string][]string `yaml:"providers"`
}

// LoadAliases reads model aliases from a YAML file.
func LoadAliases(path string) (*ModelAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var aliases ModelAliases
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse aliases %s: %w", path, err)
	}
	if aliases.Aliases == nil {
		aliases.Aliases = make(map[string]string)
	}
	if aliases.Providers == nil {
		aliases.Providers = make(map[string][]string)
	}
	return &aliases, nil
}

// LoadAliasesWithFallback loads ~/.brainroute/models.yaml, then defaultPath,
// and finally the built-in table.
func LoadAliasesWithFallback(defaultPath string) (*ModelAliases, error) {
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, configDirName, "models.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return LoadAliases(userPath)
		}
	}
	if defaultPath != "" {
		if _, err := os.Stat(defaultPath); err == nil {
			return LoadAliases(defaultPath)
		}
	}
	return DefaultAliases(), nil
}

// Resolve returns the canonical model for an alias, or the input unchanged.
func (a *ModelAliases) Resolve(modelOrAlias string) string {
	if a == nil || a.Aliases == nil {
		return modelOrAlias
	}
	if canonical, ok := a.Aliases[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a *ModelAliases) IsAlias(name string) bool {
	if a == nil || a.Aliases == nil {
		return false
	}
	_, ok := a.Aliases[name]
	return ok
}

// ValidateModel checks that model is served by provider.
func (a *ModelAliases) ValidateModel(provider, model string) error {
	if a == nil || a.Providers == nil {
		return nil
	}
	models, ok := a.Providers[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	for _, m := range models {
		if m == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not in %s provider list", model, provider)
}

// ListAliases returns a copy of the aliases map.
func (a *ModelAliases) ListAliases() map[string]string {
	if a == nil || a.Aliases == nil {
		return make(map[string]string)
	}
	result := make(map[string]string, len(a.Aliases))
	for k, v := range a.Aliases {
		result[k] = v
	}
	return result
}

// ListProviders returns a sorted list of provider names.
func (a *ModelAliases) ListProviders() []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	providers := make([]string, 0, len(a.Providers))
	for p := range a.Providers {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}

// GetProviderModels returns the models for a given provider.
func (a *ModelAliases) GetProviderModels(provider string) []string {
	if a == nil || a.Providers == nil {
		return nil
	}
	return a.Providers[provider]
}

// GetProviderForModel returns the first provider, in name order, that serves
// model.
func (a *ModelAliases) GetProviderForModel(model string) string {
	for _, provider := range a.ListProviders() {
		for _, m := range a.Providers[provider] {
			if m == model {
				return provider
			}
		}
	}
	return ""
}

// ValidateModeConfigs checks every configured mode model against the
// provider lists. Models without a provider entry are reported too.
func (a *ModelAliases) ValidateModeConfigs(r *Registry) []error {
	if a == nil || r == nil {
		return nil
	}

	var errs []error
	check := func(name string, cfg ModelConfig) {
		if cfg.Provider == "" {
			errs = append(errs, fmt.Errorf("mode %s: no provider serves model %q", name, cfg.Model))
			return
		}
		if err := a.ValidateModel(cfg.Provider, cfg.Model); err != nil {
			errs = append(errs, fmt.Errorf("mode %s: %w", name, err))
		}
	}
	for _, m := range AllModes {
		check(m.String(), r.ModeConfig(m))
	}
	check("PLAN_PRO", r.PlanProConfig())
	return errs
}

// DefaultAliases returns the built-in tier aliases.
func DefaultAliases() *ModelAliases {
	return &ModelAliases{
		Aliases: map[string]string{
			// Tiers
			"nano": "gpt-5-nano",
			"mini": "gpt-5-mini",
			"pro":  "gpt-5",
			"long": "gpt-4.1",
			// Anthropic
			"fast":    "claude-3-5-haiku-latest",
			"quality": "claude-sonnet-4-20250514",
			"deep":    "claude-opus-4-20250514",
			// Google
			"flash":    "gemini-2.5-flash",
			"research": "gemini-2.5-pro",
			// DeepSeek
			"cheap":  "deepseek-chat",
			"reason": "deepseek-reasoner",
		},
		Providers: map[string][]string{
			"openai":    {"gpt-5", "gpt-5-mini", "gpt-5-nano", "gpt-4.1"},
			"anthropic": {"claude-3-5-haiku-latest", "claude-sonnet-4-20250514", "claude-opus-4-20250514"},
			"google":    {"gemini-2.5-flash", "gemini-2.5-pro"},
			"deepseek":  {"deepseek-chat", "deepseek-reasoner"},
		},
	}
}
