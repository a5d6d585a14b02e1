package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024

// sections are the top-level keys environment variables may set.
var sections = map[string]bool{
	"github":     true,
	"toggl":      true,
	"notion":     true,
	"generative": true,
	"output":     true,
	"history":    true,
	"log":        true,
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"github.repos": true,
}

// aliases map provider-native variable names onto config keys.
var aliases = map[string]string{
	"ANTHROPIC_API_KEY": "generative.anthropic_api_key",
	"GEMINI_API_KEY":    "generative.gemini_api_key",
	"GOOGLE_API_KEY":    "generative.gemini_api_key",
}

// DefaultPath returns ~/.config/weekreflect/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "weekreflect", "config.yaml"), nil
}

// Load reads configuration from the YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GITHUB_TOKEN, TOGGL_API_TOKEN, NOTION_PARENT_PAGE_ID, ...)
//  2. YAML config file
//  3. Defaults
//
// An empty path uses DefaultPath, which may be absent. An explicit path must
// exist. Environment variables map SECTION_FIELD to section.field:
//
//	GITHUB_TOKEN          -> github.token
//	GITHUB_REPOS          -> github.repos (comma separated)
//	TOGGL_WORKSPACE_ID    -> toggl.workspace_id
//	GENERATIVE_PROVIDER   -> generative.provider
//
// Load does not validate; call Validate once the run mode is known.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is larger than %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// envKey maps an environment variable onto a config key, splitting on the
// first underscore only. Empty variables and those outside the known
// sections are ignored.
func envKey(name, value string) (string, interface{}) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	if key, ok := aliases[name]; ok {
		return key, value
	}

	section, field, ok := strings.Cut(strings.ToLower(name), "_")
	if !ok || !sections[section] || field == "" {
		return "", nil
	}
	key := section + "." + field
	if listKeys[key] {
		return key, cleanList(strings.Split(value, ","))
	}
	return key, value
}
