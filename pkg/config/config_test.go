package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.Expand.Rounds)
	assert.Equal(t, 3, cfg.Course.LessonSize)
	assert.Equal(t, "graph.json", cfg.GraphPath)
}

func TestLoadJSONWithPartialOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	path := writeConfig(t, "config.json", `{
		"llm": {"provider": "openai", "model": "gpt-4o"},
		"expand": {"rounds": 7}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
	assert.Equal(t, 7, cfg.Expand.Rounds)
	// Untouched fields fall back to defaults.
	assert.Equal(t, 8192, cfg.LLM.MaxTokens)
	assert.Equal(t, "coursegraph.db", cfg.DBPath)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
llm:
  provider: ollama
  model: llama3.2
expand:
  rounds: 2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	assert.Equal(t, 2, cfg.Expand.Rounds)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", `{"llm": {"provider": "acme", "model": "x"}}`},
		{"missing API key", `{"llm": {"provider": "anthropic"}}`},
		{"temperature out of range", `{"llm": {"provider": "ollama", "model": "x", "temperature": 2.5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", "")
			path := writeConfig(t, "config.json", tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	assert.Equal(t, "/abs/graph.json", ResolvePath("/proj", "/abs/graph.json"))
	assert.Equal(t, filepath.Join("/proj", ProjectDirName, "graph.json"), ResolvePath("/proj", "graph.json"))
}

func TestGoogleKeyFallback(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	path := writeConfig(t, "config.json", `{"llm": {"provider": "google", "model": "gemini-2.0-flash"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.LLM.APIKey)
}
