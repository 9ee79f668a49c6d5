package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/HRui-wh/Bookmark-AI/internal/models"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Duration wraps time.Duration so the YAML file can carry either a Go
// duration string ("8s", "500ms") or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		dur, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(dur)
		return nil
	}
	var n float64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration %v: %w", value.Value, err)
	}
	*d = Duration(time.Duration(n * float64(time.Second)))
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// RetrySettings is the per-stage retry policy: how many attempts a stage
// gets and the base delay the exponential backoff grows from.
type RetrySettings struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
}

// Settings is the full configuration surface consumed by the pipeline.
// Values come from the optional YAML settings file, overridden by flags;
// the API key comes from the environment only.
type Settings struct {
	APIKey     string `yaml:"-"`
	APIBaseURL string `yaml:"api_base_url"`
	Model      string `yaml:"model"`

	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`

	Workers       int           `yaml:"workers"`
	FetchTimeout  Duration      `yaml:"fetch_timeout"`
	FetchRetry    RetrySettings `yaml:"fetch_retry"`
	ClassifyRetry RetrySettings `yaml:"classify_retry"`

	// Cooldown is the shared wait window applied to every pending
	// classify attempt after the upstream service throttles us.
	Cooldown Duration `yaml:"cooldown"`

	// ClassifyRate caps classifier calls per second across all workers.
	// Zero disables pacing.
	ClassifyRate float64 `yaml:"classify_rate"`

	UserAgent  string   `yaml:"user_agent"`
	Categories []string `yaml:"categories"`

	OutputFile  string `yaml:"output_file"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the settings used when no file is present. Network
// defaults follow the original tool: 8s fetch timeout, small retry
// budgets, DeepSeek as the classification backend.
func Default() *Settings {
	return &Settings{
		APIBaseURL:    "https://api.deepseek.com/v1",
		Model:         "deepseek-chat",
		Temperature:   0.3,
		MaxTokens:     1024,
		Workers:       16,
		FetchTimeout:  Duration(8 * time.Second),
		FetchRetry:    RetrySettings{MaxAttempts: 3, BaseDelay: Duration(time.Second)},
		ClassifyRetry: RetrySettings{MaxAttempts: 3, BaseDelay: Duration(time.Second)},
		Cooldown:      Duration(30 * time.Second),
		ClassifyRate:  10,
		UserAgent:     defaultUserAgent,
		Categories:    models.DefaultCategories,
		OutputFile:    "sorted_bookmarks.html",
	}
}

// Load reads settings from path, filling unset fields with defaults and
// the API key from the environment. A missing file is not an error; a
// malformed one is.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading settings file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parsing settings file %s: %w", path, err)
		}
	}

	if s.APIKey == "" {
		s.APIKey = os.Getenv("DEEPSEEK_API_KEY")
	}
	if v := os.Getenv("API_BASE_URL"); v != "" {
		s.APIBaseURL = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		s.MetricsAddr = v
	}

	return s, s.normalize()
}

// normalize clamps nonsensical values back to defaults so a sparse YAML
// file cannot stall the pipeline.
func (s *Settings) normalize() error {
	d := Default()
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	if s.FetchTimeout <= 0 {
		s.FetchTimeout = d.FetchTimeout
	}
	if s.FetchRetry.MaxAttempts <= 0 {
		s.FetchRetry.MaxAttempts = d.FetchRetry.MaxAttempts
	}
	if s.FetchRetry.BaseDelay <= 0 {
		s.FetchRetry.BaseDelay = d.FetchRetry.BaseDelay
	}
	if s.ClassifyRetry.MaxAttempts <= 0 {
		s.ClassifyRetry.MaxAttempts = d.ClassifyRetry.MaxAttempts
	}
	if s.ClassifyRetry.BaseDelay <= 0 {
		s.ClassifyRetry.BaseDelay = d.ClassifyRetry.BaseDelay
	}
	if s.Cooldown <= 0 {
		s.Cooldown = d.Cooldown
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = d.MaxTokens
	}
	if s.UserAgent == "" {
		s.UserAgent = d.UserAgent
	}
	if len(s.Categories) == 0 {
		s.Categories = d.Categories
	}
	if s.OutputFile == "" {
		s.OutputFile = d.OutputFile
	}
	return nil
}

// Validate checks the settings that have no sane fallback.
func (s *Settings) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("missing API key: set DEEPSEEK_API_KEY or use --api-key")
	}
	if s.APIBaseURL == "" {
		return fmt.Errorf("missing API base URL")
	}
	if s.Model == "" {
		return fmt.Errorf("missing model name")
	}
	return nil
}

// CategorySet builds the process-wide category set from configuration.
func (s *Settings) CategorySet() *models.CategorySet {
	return models.NewCategorySet(s.Categories)
}
