package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownVars = []string{
	"GITHUB_TOKEN", "GITHUB_REPOS", "GITHUB_AUTHOR", "GITHUB_INCLUDE_STATS", "GITHUB_BASE_URL", "GITHUB_TIMEOUT",
	"TOGGL_API_TOKEN", "TOGGL_WORKSPACE_ID", "TOGGL_BASE_URL", "TOGGL_TIMEOUT",
	"NOTION_TOKEN", "NOTION_PARENT_PAGE_ID", "NOTION_BASE_URL", "NOTION_TIMEOUT",
	"GENERATIVE_PROVIDER", "GENERATIVE_API_KEY", "GENERATIVE_MODEL", "GENERATIVE_BASE_URL", "GENERATIVE_TIMEOUT",
	"ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY",
	"OUTPUT_DIR", "HISTORY_FILE", "HISTORY_DISABLED", "LOG_LEVEL", "LOG_FORMAT",
}

// isolate blanks every variable Load reads and points HOME at an empty dir.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range knownVars {
		t.Setenv(name, "")
	}
	t.Setenv("HOME", t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Generative.Provider)
	assert.Equal(t, 30*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Toggl.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Notion.Timeout)
	assert.Equal(t, 60*time.Second, cfg.Generative.Timeout)
	assert.Equal(t, "reports", cfg.Output.Directory)
	assert.Equal(t, "reports/try_history.yaml", cfg.History.File)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
github:
  token: gh-file
  repos: [acme/api, " acme/web "]
  include_stats: true
  timeout: 10s
toggl:
  api_token: toggl-file
  workspace_id: 42
notion:
  token: notion-file
  parent_page_id: page-1
generative:
  provider: Gemini
  gemini_api_key: gem-key
output:
  dir: out
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gh-file", cfg.GitHub.Token.Value())
	assert.Equal(t, []string{"acme/api", "acme/web"}, cfg.GitHub.Repos)
	assert.True(t, cfg.GitHub.IncludeStats)
	assert.Equal(t, 10*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, int64(42), cfg.Toggl.WorkspaceID)
	assert.Equal(t, "page-1", cfg.Notion.ParentPageID)
	assert.Equal(t, "gemini", cfg.Generative.Provider)
	assert.Equal(t, "gem-key", cfg.Generative.APIKey.Value(), "provider key used when api_key is empty")
	assert.Equal(t, "out", cfg.Output.Directory)
	assert.Equal(t, "out/try_history.yaml", cfg.History.File)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate(false))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "github:\n  token: gh-file\n  repos: [acme/api]\n")

	t.Setenv("GITHUB_TOKEN", "gh-env")
	t.Setenv("GITHUB_REPOS", "acme/one, acme/two,,")
	t.Setenv("TOGGL_WORKSPACE_ID", "7")
	t.Setenv("NOTION_PARENT_PAGE_ID", "page-env")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
	t.Setenv("HISTORY_DISABLED", "true")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gh-env", cfg.GitHub.Token.Value())
	assert.Equal(t, []string{"acme/one", "acme/two"}, cfg.GitHub.Repos)
	assert.Equal(t, int64(7), cfg.Toggl.WorkspaceID)
	assert.Equal(t, "page-env", cfg.Notion.ParentPageID)
	assert.Equal(t, "sk-ant-env", cfg.Generative.APIKey.Value())
	assert.Empty(t, cfg.History.File)
}

func TestLoad_GenerativeKeyWinsOverAlias(t *testing.T) {
	isolate(t)
	t.Setenv("GENERATIVE_API_KEY", "explicit")
	t.Setenv("ANTHROPIC_API_KEY", "alias")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Generative.APIKey.Value())
}

func TestLoad_ExplicitPathMustExist(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsOversizedFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "big.yaml")
	require.NoError(t, os.WriteFile(path, make([]byte, maxConfigFileSize+1), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than")
}

func TestValidate(t *testing.T) {
	complete := func() *Config {
		cfg := &Config{
			GitHub:     GitHubConfig{Token: "gh", Repos: []string{"acme/api"}},
			Toggl:      TogglConfig{APIToken: "tg"},
			Notion:     NotionConfig{Token: "nt", ParentPageID: "page"},
			Generative: GenerativeConfig{Provider: "anthropic", APIKey: "key"},
		}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		dryRun  bool
		missing []string
		problem string
	}{
		{name: "complete", mutate: func(*Config) {}},
		{
			name: "sources missing",
			mutate: func(c *Config) {
				c.GitHub.Token = ""
				c.GitHub.Repos = nil
				c.Toggl.APIToken = ""
			},
			missing: []string{"GITHUB_TOKEN", "GITHUB_REPOS", "TOGGL_API_TOKEN"},
		},
		{
			name: "notion missing",
			mutate: func(c *Config) {
				c.Notion = NotionConfig{}
			},
			missing: []string{"NOTION_TOKEN", "NOTION_PARENT_PAGE_ID"},
		},
		{
			name:   "notion optional on dry run",
			mutate: func(c *Config) { c.Notion = NotionConfig{} },
			dryRun: true,
		},
		{
			name:    "generative key required",
			mutate:  func(c *Config) { c.Generative.APIKey = "" },
			missing: []string{"GENERATIVE_API_KEY"},
		},
		{
			name: "ollama needs no key",
			mutate: func(c *Config) {
				c.Generative.Provider = "ollama"
				c.Generative.APIKey = ""
			},
		},
		{
			name: "provider is case-insensitive",
			mutate: func(c *Config) {
				c.Generative.Provider = " Gemini "
				c.Generative.APIKey = ""
			},
			missing: []string{"GENERATIVE_API_KEY"},
		},
		{
			name: "mixed-case ollama needs no key",
			mutate: func(c *Config) {
				c.Generative.Provider = "OLLAMA"
				c.Generative.APIKey = ""
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Generative.Provider = "mystery" },
			problem: `unknown generative provider "mystery"`,
		},
		{
			name:    "bad repository",
			mutate:  func(c *Config) { c.GitHub.Repos = []string{"acme"} },
			problem: `repository "acme" must be owner/name`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := complete()
			tt.mutate(cfg)

			err := cfg.Validate(tt.dryRun)
			if len(tt.missing) == 0 && tt.problem == "" {
				assert.NoError(t, err)
				return
			}

			var invalid *InvalidError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, tt.missing, invalid.MissingFields)
			if tt.problem != "" {
				assert.Contains(t, err.Error(), tt.problem)
			}
			for _, name := range tt.missing {
				assert.Contains(t, err.Error(), name)
			}
		})
	}
}

func TestSecret_Redacts(t *testing.T) {
	s := Secret("ghp_supersecret")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "ghp_supersecret", s.Value())
	assert.Empty(t, Secret("").String())

	b, err := json.Marshal(GitHubConfig{Token: s})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "supersecret")
}
