package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"nano": "gpt-5-nano",
			"pro":  "gpt-5",
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"resolve tier alias", "nano", "gpt-5-nano"},
		{"resolve another tier", "pro", "gpt-5"},
		{"unknown alias returns input unchanged", "unknown-model", "unknown-model"},
		{"canonical model returns unchanged", "gpt-5-nano", "gpt-5-nano"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, aliases.Resolve(tt.input))
		})
	}
}

func TestResolve_NilAliases(t *testing.T) {
	var aliases *ModelAliases
	assert.Equal(t, "mini", aliases.Resolve("mini"))
	assert.False(t, aliases.IsAlias("mini"))
}

func TestIsAlias(t *testing.T) {
	aliases := &ModelAliases{Aliases: map[string]string{"mini": "gpt-5-mini"}}

	assert.True(t, aliases.IsAlias("mini"), "known alias")
	assert.False(t, aliases.IsAlias("unknown"), "unknown alias")
	assert.False(t, aliases.IsAlias("gpt-5-mini"), "canonical model name")
}

func TestValidateModel(t *testing.T) {
	aliases := &ModelAliases{
		Providers: map[string][]string{
			"openai":    {"gpt-5", "gpt-5-nano"},
			"anthropic": {"claude-sonnet-4-20250514"},
		},
	}

	tests := []struct {
		name      string
		provider  string
		model     string
		wantError bool
	}{
		{"valid model for provider", "openai", "gpt-5-nano", false},
		{"another valid model", "anthropic", "claude-sonnet-4-20250514", false},
		{"model served by another provider", "openai", "claude-sonnet-4-20250514", true},
		{"unknown provider", "unknown", "some-model", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := aliases.ValidateModel(tt.provider, tt.model)
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetProviderForModel(t *testing.T) {
	aliases := &ModelAliases{
		Providers: map[string][]string{
			"openai":    {"gpt-5-mini"},
			"anthropic": {"claude-sonnet-4-20250514"},
		},
	}

	tests := []struct {
		model    string
		expected string
	}{
		{"gpt-5-mini", "openai"},
		{"claude-sonnet-4-20250514", "anthropic"},
		{"unknown-model", ""},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.expected, aliases.GetProviderForModel(tt.model))
		})
	}
}

func TestLoadAliases(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "models.yaml")

	content := `aliases:
  nano: gpt-5-nano
  quality: claude-sonnet-4-20250514

providers:
  openai:
    - gpt-5-nano
  anthropic:
    - claude-sonnet-4-20250514
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	aliases, err := LoadAliases(configPath)
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-nano", aliases.Resolve("nano"))
	assert.Equal(t, "openai", aliases.GetProviderForModel("gpt-5-nano"))
}

func TestLoadAliases_FileNotFound(t *testing.T) {
	_, err := LoadAliases("/nonexistent/path/models.yaml")
	assert.Error(t, err)
}

func TestLoadAliasesWithFallback(t *testing.T) {
	setHomeEnv(t, t.TempDir())

	dir := t.TempDir()
	fallbackPath := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(fallbackPath, []byte("aliases:\n  test-alias: test-model\n"), 0644))

	aliases, err := LoadAliasesWithFallback(fallbackPath)
	require.NoError(t, err)
	assert.Equal(t, "test-model", aliases.Resolve("test-alias"))
}

func TestLoadAliasesWithFallback_UserFileWins(t *testing.T) {
	home := t.TempDir()
	setHomeEnv(t, home)

	userDir := filepath.Join(home, ".brainroute")
	require.NoError(t, os.MkdirAll(userDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "models.yaml"), []byte("aliases:\n  mini: user-mini\n"), 0644))

	aliases, err := LoadAliasesWithFallback("")
	require.NoError(t, err)
	assert.Equal(t, "user-mini", aliases.Resolve("mini"))
}

func TestLoadAliasesWithFallback_NoFile(t *testing.T) {
	setHomeEnv(t, t.TempDir())

	aliases, err := LoadAliasesWithFallback("/nonexistent/path/models.yaml")
	require.NoError(t, err)
	assert.Equal(t, "gpt-5-nano", aliases.Resolve("nano"), "missing files should yield the built-in aliases")
	assert.Equal(t, "any", aliases.Resolve("any"))
}

func TestListAliases(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"nano": "gpt-5-nano",
			"pro":  "gpt-5",
		},
	}

	list := aliases.ListAliases()
	assert.Len(t, list, 2)
	assert.Equal(t, "gpt-5-nano", list["nano"])

	list["new"] = "value"
	assert.NotContains(t, aliases.Aliases, "new", "ListAliases should return a copy")
}

func TestValidateModeConfigs(t *testing.T) {
	aliases := DefaultAliases()

	reg := NewRegistry(DefaultEnvConfig(), WithAliases(aliases))
	assert.Empty(t, aliases.ValidateModeConfigs(reg))

	env := DefaultEnvConfig()
	env.Batch.Model = "nonexistent-model"
	reg = NewRegistry(env, WithAliases(aliases))
	assert.Len(t, aliases.ValidateModeConfigs(reg), 1, "unknown batch model")

	env = DefaultEnvConfig()
	env.Consult.Model = "gpt-5"
	env.Consult.Provider = "anthropic"
	reg = NewRegistry(env, WithAliases(aliases))
	assert.Len(t, aliases.ValidateModeConfigs(reg), 1, "provider mismatch")
}

func TestDefaultAliases(t *testing.T) {
	aliases := DefaultAliases()
	require.NotNil(t, aliases)
	assert.NotEmpty(t, aliases.Providers)

	for alias, want := range map[string]string{
		"nano": "gpt-5-nano",
		"mini": "gpt-5-mini",
		"pro":  "gpt-5",
		"long": "gpt-4.1",
	} {
		assert.Equal(t, want, aliases.Resolve(alias))
		assert.NotEmpty(t, aliases.GetProviderForModel(want), "tier model %q has no provider", want)
	}
}
