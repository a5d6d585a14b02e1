// Package config loads weekreflect settings from a YAML file and the environment.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Afrawles/weekreflect/internal/logging"
)

type Config struct {
	GitHub     GitHubConfig     `koanf:"github"`
	Toggl      TogglConfig      `koanf:"toggl"`
	Notion     NotionConfig     `koanf:"notion"`
	Generative GenerativeConfig `koanf:"generative"`
	Output     OutputConfig     `koanf:"output"`
	History    HistoryConfig    `koanf:"history"`
	Log        logging.Config   `koanf:"log"`
}

type GitHubConfig struct {
	Token        Secret        `koanf:"token"`
	Repos        []string      `koanf:"repos"`
	Author       string        `koanf:"author"`
	IncludeStats bool          `koanf:"include_stats"`
	BaseURL      string        `koanf:"base_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

type TogglConfig struct {
	APIToken    Secret        `koanf:"api_token"`
	WorkspaceID int64         `koanf:"workspace_id"`
	BaseURL     string        `koanf:"base_url"`
	Timeout     time.Duration `koanf:"timeout"`
}

type NotionConfig struct {
	Token        Secret        `koanf:"token"`
	ParentPageID string        `koanf:"parent_page_id"`
	BaseURL      string        `koanf:"base_url"`
	Timeout      time.Duration `koanf:"timeout"`
}

type GenerativeConfig struct {
	// Provider is anthropic, gemini, ollama or none.
	Provider string        `koanf:"provider"`
	APIKey   Secret        `koanf:"api_key"`
	Model    string        `koanf:"model"`
	BaseURL  string        `koanf:"base_url"`
	Timeout  time.Duration `koanf:"timeout"`

	// Provider-specific keys, used when APIKey is empty.
	AnthropicAPIKey Secret `koanf:"anthropic_api_key"`
	GeminiAPIKey    Secret `koanf:"gemini_api_key"`
}

type OutputConfig struct {
	Directory string `koanf:"dir"`
}

type HistoryConfig struct {
	// File stores past Try items. Empty disables history.
	File     string `koanf:"file"`
	Disabled bool   `koanf:"disabled"`
}

const (
	defaultTimeout           = 30 * time.Second
	defaultGenerativeTimeout = 60 * time.Second
	defaultOutputDir         = "reports"
	defaultHistoryFile       = "try_history.yaml"
)

func applyDefaults(cfg *Config) {
	if cfg.GitHub.Timeout == 0 {
		cfg.GitHub.Timeout = defaultTimeout
	}
	if cfg.Toggl.Timeout == 0 {
		cfg.Toggl.Timeout = defaultTimeout
	}
	if cfg.Notion.Timeout == 0 {
		cfg.Notion.Timeout = defaultTimeout
	}
	if cfg.Generative.Timeout == 0 {
		cfg.Generative.Timeout = defaultGenerativeTimeout
	}

	cfg.Generative.Provider = strings.ToLower(strings.TrimSpace(cfg.Generative.Provider))
	if cfg.Generative.Provider == "" {
		cfg.Generative.Provider = "anthropic"
	}
	if !cfg.Generative.APIKey.IsSet() {
		switch cfg.Generative.Provider {
		case "anthropic":
			cfg.Generative.APIKey = cfg.Generative.AnthropicAPIKey
		case "gemini":
			cfg.Generative.APIKey = cfg.Generative.GeminiAPIKey
		}
	}

	if cfg.Output.Directory == "" {
		cfg.Output.Directory = defaultOutputDir
	}
	if cfg.History.File == "" && !cfg.History.Disabled {
		cfg.History.File = cfg.Output.Directory + "/" + defaultHistoryFile
	}
	if cfg.History.Disabled {
		cfg.History.File = ""
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	cfg.GitHub.Repos = cleanList(cfg.GitHub.Repos)
}

// InvalidError lists every required setting that is missing, by the
// environment variable that sets it.
type InvalidError struct {
	MissingFields []string
	Problems      []string
}

func (e *InvalidError) Error() string {
	var parts []string
	if len(e.MissingFields) > 0 {
		parts = append(parts, "missing required settings: "+strings.Join(e.MissingFields, ", "))
	}
	parts = append(parts, e.Problems...)
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Validate checks the settings a run needs. A dry run never publishes, so
// the Notion settings are optional then.
func (c *Config) Validate(dryRun bool) error {
	e := &InvalidError{}
	missing := func(ok bool, name string) {
		if !ok {
			e.MissingFields = append(e.MissingFields, name)
		}
	}

	missing(c.GitHub.Token.IsSet(), "GITHUB_TOKEN")
	missing(len(c.GitHub.Repos) > 0, "GITHUB_REPOS")
	missing(c.Toggl.APIToken.IsSet(), "TOGGL_API_TOKEN")
	if !dryRun {
		missing(c.Notion.Token.IsSet(), "NOTION_TOKEN")
		missing(c.Notion.ParentPageID != "", "NOTION_PARENT_PAGE_ID")
	}

	provider := strings.ToLower(strings.TrimSpace(c.Generative.Provider))
	if provider == "" {
		provider = "anthropic"
	}
	switch provider {
	case "anthropic", "gemini":
		missing(c.Generative.APIKey.IsSet(), "GENERATIVE_API_KEY")
	case "ollama", "none":
	default:
		e.Problems = append(e.Problems, fmt.Sprintf("unknown generative provider %q", c.Generative.Provider))
	}

	for _, repo := range c.GitHub.Repos {
		if owner, name, ok := strings.Cut(repo, "/"); !ok || owner == "" || name == "" {
			e.Problems = append(e.Problems, fmt.Sprintf("repository %q must be owner/name", repo))
		}
	}
	if err := c.Log.Validate(); err != nil {
		e.Problems = append(e.Problems, err.Error())
	}

	if len(e.MissingFields) > 0 || len(e.Problems) > 0 {
		return e
	}
	return nil
}

func cleanList(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// Secret wraps strings that should be redacted in logs and serialization.
// Use Value() to access the actual secret value.
type Secret string

// String always returns a redacted value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

func (s Secret) Value() string {
	return string(s)
}

func (s Secret) IsSet() bool {
	return s != ""
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
