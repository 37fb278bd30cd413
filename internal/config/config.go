package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Backend names accepted in the config file.
const (
	BackendLMStudio = "lmstudio"
	BackendOpenAI   = "openai"
	BackendGemini   = "gemini"
)

// Config holds application configuration.
type Config struct {
	// Backend selects the model backend: "lmstudio", "openai", or "gemini".
	Backend string `json:"backend"`

	// LMStudioHost and LMStudioPort locate a local LM Studio server
	// (OpenAI-compatible API).
	LMStudioHost string `json:"lmstudio_host"`
	LMStudioPort int    `json:"lmstudio_port"`

	// OpenAIModel is the model identifier for the "openai" backend.
	OpenAIModel string `json:"openai_model,omitempty"`

	// GeminiModel is the model identifier for the "gemini" backend.
	GeminiModel string `json:"gemini_model"`

	// MaxAttempts bounds the number of run/fix cycles per build invocation.
	MaxAttempts int `json:"max_attempts"`

	// RunTimeoutSecs bounds a single script execution.
	RunTimeoutSecs int `json:"run_timeout_secs"`

	// UVPath overrides uv discovery. Empty means look up "uv" in PATH
	// and a few well-known install locations.
	UVPath string `json:"uv_path,omitempty"`

	// ProjectsDir overrides the default <base>/projects location.
	// Relative paths are resolved against the base directory.
	ProjectsDir string `json:"projects_dir,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// Secrets holds credentials for remote backends. They are loaded from the
// process environment (optionally seeded from <base>/.env) and handed to the
// model client explicitly, never read from ambient state elsewhere.
type Secrets struct {
	OpenAIAPIKey string
	GeminiAPIKey string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Backend:        BackendLMStudio,
		LMStudioHost:   "127.0.0.1",
		LMStudioPort:   1234,
		GeminiModel:    "gemini-2.0-flash",
		MaxAttempts:    3,
		RunTimeoutSecs: 120,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.pyforge.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadSecrets reads API keys from the environment, after loading
// baseDir/.env if present. A missing .env file is not an error.
func LoadSecrets(baseDir string) *Secrets {
	_ = godotenv.Load(filepath.Join(baseDir, ".env"))
	return &Secrets{
		OpenAIAPIKey: strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.Backend = overlay.Backend
	if result.Backend == "" {
		result.Backend = base.Backend
	}

	result.LMStudioHost = overlay.LMStudioHost
	if result.LMStudioHost == "" {
		result.LMStudioHost = base.LMStudioHost
	}

	result.LMStudioPort = overlay.LMStudioPort
	if result.LMStudioPort == 0 {
		result.LMStudioPort = base.LMStudioPort
	}

	result.OpenAIModel = overlay.OpenAIModel
	if result.OpenAIModel == "" {
		result.OpenAIModel = base.OpenAIModel
	}

	result.GeminiModel = overlay.GeminiModel
	if result.GeminiModel == "" {
		result.GeminiModel = base.GeminiModel
	}

	result.MaxAttempts = overlay.MaxAttempts
	if result.MaxAttempts == 0 {
		result.MaxAttempts = base.MaxAttempts
	}

	result.RunTimeoutSecs = overlay.RunTimeoutSecs
	if result.RunTimeoutSecs == 0 {
		result.RunTimeoutSecs = base.RunTimeoutSecs
	}

	result.UVPath = overlay.UVPath
	if result.UVPath == "" {
		result.UVPath = base.UVPath
	}

	result.ProjectsDir = overlay.ProjectsDir
	if result.ProjectsDir == "" {
		result.ProjectsDir = base.ProjectsDir
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// ResolveProjectsDir returns the absolute projects directory for baseDir.
func (c *Config) ResolveProjectsDir(baseDir string) string {
	dir := c.ProjectsDir
	if dir == "" {
		dir = "projects"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(baseDir, dir)
	}
	return dir
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
