package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Storage    StorageConfig    `koanf:"storage"`
	Assets     AssetsConfig     `koanf:"assets"`
	Generation GenerationConfig `koanf:"generation"`
	Providers  ProvidersConfig  `koanf:"providers"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// AssetsConfig locates the asset store: files land under Dir and are served
// at PublicBaseURL.
type AssetsConfig struct {
	Dir           string `koanf:"dir"`
	PublicBaseURL string `koanf:"public_base_url"`
}

type GenerationConfig struct {
	// MaxHints caps how many visual-aid hints survive extraction.
	MaxHints int `koanf:"max_hints"`
	// ContextConcepts caps the supporting concepts harvested into image prompts.
	ContextConcepts int `koanf:"context_concepts"`
	// RunTimeoutSeconds bounds one detached generation run end to end.
	RunTimeoutSeconds int `koanf:"run_timeout_seconds"`
}

type ProvidersConfig struct {
	Text  []TextProviderConfig  `koanf:"text"`
	Image []ImageProviderConfig `koanf:"image"`
}

// TextProviderConfig configures one text adapter. Priority orders the
// fallback chain: lower values are tried first.
type TextProviderConfig struct {
	Name     string `koanf:"name"`
	Type     string `koanf:"type"`
	APIKey   string `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
	Priority int    `koanf:"priority"`
}

// ImageProviderConfig configures one image adapter, including its ordered
// backing models and its self-throttle/poll budget.
type ImageProviderConfig struct {
	Name                  string   `koanf:"name"`
	Type                  string   `koanf:"type"`
	APIKey                string   `koanf:"api_key"`
	BaseURL               string   `koanf:"base_url"`
	Models                []string `koanf:"models"`
	Priority              int      `koanf:"priority"`
	MinRequestIntervalMs  int      `koanf:"min_request_interval_ms"`
	PollIntervalMs        int      `koanf:"poll_interval_ms"`
	MaxPollAttempts       int      `koanf:"max_poll_attempts"`
	RequestTimeoutSeconds int      `koanf:"request_timeout_seconds"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load builds the process configuration once at startup: config.yaml if
// present, then FORGE_ environment overrides, then defaults. Provider API
// keys support ${VAR} substitution so secrets stay out of the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = "config.yaml"
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Environment variables can override file config
	if err := k.Load(env.Provider("FORGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "FORGE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "sqlite")
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", "./data/lessonforge.db")
	}
	if !k.Exists("assets.dir") {
		k.Set("assets.dir", "./data/assets")
	}
	if !k.Exists("assets.public_base_url") {
		k.Set("assets.public_base_url", "http://localhost:8080/assets")
	}
	if !k.Exists("generation.max_hints") {
		k.Set("generation.max_hints", 3)
	}
	if !k.Exists("generation.context_concepts") {
		k.Set("generation.context_concepts", 5)
	}
	if !k.Exists("generation.run_timeout_seconds") {
		k.Set("generation.run_timeout_seconds", 600)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	for i := range cfg.Providers.Text {
		cfg.Providers.Text[i].APIKey = substituteEnvVars(cfg.Providers.Text[i].APIKey)
	}
	for i := range cfg.Providers.Image {
		cfg.Providers.Image[i].APIKey = substituteEnvVars(cfg.Providers.Image[i].APIKey)
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
