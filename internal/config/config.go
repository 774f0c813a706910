// Package config provides configuration loading and management for tbench.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// CacheConfig controls where downloaded data lives.
type CacheConfig struct {
	Dir            string `toml:"dir"`              // Root for leaderboard snapshot and run-log caches
	StaleAfterHrs  int    `toml:"stale_after_hrs"`  // Leaderboard snapshot staleness threshold
}

// BenchmarkConfig identifies the benchmark and the target agent under analysis.
type BenchmarkConfig struct {
	GitHubRepo      string `toml:"github_repo"`      // Repo whose CI produces result artifacts
	Workflow        string `toml:"workflow"`         // Workflow file name for nightly runs
	ArtifactPrefix  string `toml:"artifact_prefix"`  // Artifact name prefix to select
	LeaderboardRepo string `toml:"leaderboard_repo"` // HuggingFace dataset with community submissions
	DatasetVersion  string `toml:"dataset_version"`  // Benchmark dataset version (submission path segment)
	TargetAgent     string `toml:"target_agent"`     // Agent name whose results are the analysis target
	SmokeTestModel  string `toml:"smoke_test_model"` // Model excluded from submissions by default
}

// SubmissionConfig controls how merged submission bundles are produced.
type SubmissionConfig struct {
	OutputDir       string   `toml:"output_dir"`
	ExcludePatterns []string `toml:"exclude_patterns"` // Glob patterns never copied into a submission
}

// AgentMetadata describes the submitting agent for metadata.yaml.
type AgentMetadata struct {
	URL            string `toml:"url"`
	DisplayName    string `toml:"display_name"`
	OrgDisplayName string `toml:"org_display_name"`
}

// ModelMetadata describes one model for metadata.yaml and folder naming.
type ModelMetadata struct {
	Name           string `toml:"name"`
	Provider       string `toml:"provider"`
	DisplayName    string `toml:"display_name"`
	OrgDisplayName string `toml:"org_display_name"`
	FolderName     string `toml:"folder_name"` // Used in the submission folder path
}

// Config holds all configuration for tbench.
type Config struct {
	Cache      CacheConfig              `toml:"cache"`
	Benchmark  BenchmarkConfig          `toml:"benchmark"`
	Submission SubmissionConfig         `toml:"submission"`
	Agent      AgentMetadata            `toml:"agent"`
	Models     map[string]ModelMetadata `toml:"models"`
}

// DefaultModels provides built-in metadata for models known to appear in
// nightly runs. User-configured entries take precedence.
var DefaultModels = map[string]ModelMetadata{
	"anthropic/claude-sonnet-4-5": {
		Name:           "claude-sonnet-4-5",
		Provider:       "anthropic",
		DisplayName:    "Claude Sonnet 4.5",
		OrgDisplayName: "Anthropic",
		FolderName:     "Claude-Sonnet-4.5",
	},
	"anthropic/claude-opus-4-5": {
		Name:           "claude-opus-4-5",
		Provider:       "anthropic",
		DisplayName:    "Claude Opus 4.5",
		OrgDisplayName: "Anthropic",
		FolderName:     "Claude-Opus-4.5",
	},
	"openai/gpt-5.2": {
		Name:           "gpt-5.2",
		Provider:       "openai",
		DisplayName:    "GPT-5.2",
		OrgDisplayName: "OpenAI",
		FolderName:     "GPT-5.2",
	},
	"openai/gpt-5-codex": {
		Name:           "gpt-5-codex",
		Provider:       "openai",
		DisplayName:    "GPT-5 Codex",
		OrgDisplayName: "OpenAI",
		FolderName:     "GPT-5-Codex",
	},
}

// Default configuration values.
var Default = Config{
	Cache: CacheConfig{
		Dir:           ".tbench-cache",
		StaleAfterHrs: 24,
	},
	Benchmark: BenchmarkConfig{
		GitHubRepo:      "coder/mux",
		Workflow:        "nightly-terminal-bench.yml",
		ArtifactPrefix:  "terminal-bench-results",
		LeaderboardRepo: "alexgshaw/terminal-bench-2-leaderboard",
		DatasetVersion:  "2.0",
		TargetAgent:     "Mux",
		SmokeTestModel:  "anthropic/claude-sonnet-4-5",
	},
	Submission: SubmissionConfig{
		OutputDir: "leaderboard_submission",
		ExcludePatterns: []string{
			"mux-app.tar.gz",   // Large agent binary, reusable across trials
			"mux-tokens.json",  // Token usage, not needed for the leaderboard
			"*.log",            // Log streams trigger LFS and upload timeouts
		},
	},
	Agent: AgentMetadata{
		URL:            "https://github.com/coder/mux",
		DisplayName:    "Mux",
		OrgDisplayName: "Coder",
	},
}

// configPaths returns the list of paths to search for config files.
func configPaths() []string {
	paths := []string{"./tbench.toml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".tbench.toml"))
		paths = append(paths, filepath.Join(home, ".config", "tbench", "config.toml"))
	}

	return paths
}

// Load loads configuration from a file or discovers it automatically.
// If configFile is empty, it searches standard locations.
// Returns default config if no file is found.
func Load(configFile string) (*Config, error) {
	cfg := Default // Start with defaults

	var path string
	if configFile != "" {
		path = configFile
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	} else {
		for _, p := range configPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return &cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Ensure critical fields aren't zeroed out by partial config
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = Default.Cache.Dir
	}
	if cfg.Cache.StaleAfterHrs <= 0 {
		cfg.Cache.StaleAfterHrs = Default.Cache.StaleAfterHrs
	}
	if cfg.Benchmark.GitHubRepo == "" {
		cfg.Benchmark.GitHubRepo = Default.Benchmark.GitHubRepo
	}
	if cfg.Benchmark.Workflow == "" {
		cfg.Benchmark.Workflow = Default.Benchmark.Workflow
	}
	if cfg.Benchmark.ArtifactPrefix == "" {
		cfg.Benchmark.ArtifactPrefix = Default.Benchmark.ArtifactPrefix
	}
	if cfg.Benchmark.LeaderboardRepo == "" {
		cfg.Benchmark.LeaderboardRepo = Default.Benchmark.LeaderboardRepo
	}
	if cfg.Benchmark.DatasetVersion == "" {
		cfg.Benchmark.DatasetVersion = Default.Benchmark.DatasetVersion
	}
	if cfg.Benchmark.TargetAgent == "" {
		cfg.Benchmark.TargetAgent = Default.Benchmark.TargetAgent
	}
	if cfg.Submission.OutputDir == "" {
		cfg.Submission.OutputDir = Default.Submission.OutputDir
	}
	if len(cfg.Submission.ExcludePatterns) == 0 {
		cfg.Submission.ExcludePatterns = Default.Submission.ExcludePatterns
	}

	return &cfg, nil
}

// ModelMeta returns metadata for a model id like "anthropic/claude-opus-4-5".
// User-configured models take precedence over built-in defaults. Unknown
// models get metadata derived from the id itself; the second return value
// reports whether the model was actually known.
func (c *Config) ModelMeta(id string) (ModelMetadata, bool) {
	if c.Models != nil {
		if m, ok := c.Models[id]; ok {
			return m, true
		}
	}
	if m, ok := DefaultModels[id]; ok {
		return m, true
	}

	provider, name := "unknown", id
	if i := strings.Index(id, "/"); i >= 0 {
		provider, name = id[:i], id[i+1:]
	} else if i := strings.Index(id, ":"); i >= 0 {
		provider, name = id[:i], id[i+1:]
	}
	return ModelMetadata{
		Name:           name,
		Provider:       provider,
		DisplayName:    name,
		OrgDisplayName: titleCase(provider),
		FolderName:     titleCase(name),
	}, false
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
