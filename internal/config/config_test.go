package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	s := Default()
	assert.Equal(t, "https://api.deepseek.com/v1", s.APIBaseURL)
	assert.Equal(t, "deepseek-chat", s.Model)
	assert.Equal(t, 16, s.Workers)
	assert.Equal(t, 8*time.Second, s.FetchTimeout.Std())
	assert.Equal(t, 3, s.FetchRetry.MaxAttempts)
	assert.Equal(t, 3, s.ClassifyRetry.MaxAttempts)
	assert.Equal(t, 30*time.Second, s.Cooldown.Std())
	assert.Equal(t, "sorted_bookmarks.html", s.OutputFile)
	assert.Len(t, s.Categories, 10)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "env-key")

	s, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.NoError(t, err)
	assert.Equal(t, "env-key", s.APIKey)
	assert.Equal(t, Default().Workers, s.Workers)
}

func TestLoadYAMLOverrides(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	yaml := `
model: deepseek-reasoner
workers: 4
fetch_timeout: 3s
fetch_retry:
  max_attempts: 5
  base_delay: 500ms
cooldown: 10s
categories:
  - Research
  - Cooking
output_file: organized.html
`
	assert.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	s, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "deepseek-reasoner", s.Model)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 3*time.Second, s.FetchTimeout.Std())
	assert.Equal(t, 5, s.FetchRetry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, s.FetchRetry.BaseDelay.Std())
	assert.Equal(t, 10*time.Second, s.Cooldown.Std())
	assert.Equal(t, []string{"Research", "Cooking"}, s.Categories)
	assert.Equal(t, "organized.html", s.OutputFile)
	// Unset fields keep defaults.
	assert.Equal(t, Default().ClassifyRetry, s.ClassifyRetry)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("workers: [not a number"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadEnvOverridesBaseURL(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "k")
	t.Setenv("API_BASE_URL", "http://localhost:9999/v1")

	s, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/v1", s.APIBaseURL)
}

func TestNormalizeClampsBadValues(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "k")

	path := filepath.Join(t.TempDir(), "settings.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("workers: -3\nmax_tokens: 0\n"), 0644))

	s, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, Default().Workers, s.Workers)
	assert.Equal(t, Default().MaxTokens, s.MaxTokens)
}

func TestValidate(t *testing.T) {
	s := Default()
	assert.Error(t, s.Validate())

	s.APIKey = "k"
	assert.NoError(t, s.Validate())

	s.Model = ""
	assert.Error(t, s.Validate())
}

func TestCategorySet(t *testing.T) {
	s := Default()
	set := s.CategorySet()
	assert.Equal(t, len(s.Categories), set.Len())
	assert.True(t, set.Contains("Programming"))
}
