package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Benchmark.DatasetVersion != "2.0" {
		t.Fatalf("dataset version = %q, want 2.0", cfg.Benchmark.DatasetVersion)
	}
	if cfg.Cache.StaleAfterHrs != 24 {
		t.Fatalf("stale threshold = %d, want 24", cfg.Cache.StaleAfterHrs)
	}
	if len(cfg.Submission.ExcludePatterns) == 0 {
		t.Fatal("default exclude patterns missing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadPartialConfigBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tbench.toml")
	content := `
[benchmark]
target_agent = "OtherAgent"

[cache]
dir = "/tmp/custom-cache"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Benchmark.TargetAgent != "OtherAgent" {
		t.Fatalf("target agent = %q, want override", cfg.Benchmark.TargetAgent)
	}
	if cfg.Cache.Dir != "/tmp/custom-cache" {
		t.Fatalf("cache dir = %q, want override", cfg.Cache.Dir)
	}
	// Unset fields fall back to defaults.
	if cfg.Benchmark.LeaderboardRepo != Default.Benchmark.LeaderboardRepo {
		t.Fatalf("leaderboard repo = %q, want default", cfg.Benchmark.LeaderboardRepo)
	}
	if cfg.Cache.StaleAfterHrs != Default.Cache.StaleAfterHrs {
		t.Fatalf("stale threshold = %d, want default", cfg.Cache.StaleAfterHrs)
	}
}

func TestModelMeta(t *testing.T) {
	cfg := Default

	m, known := cfg.ModelMeta("anthropic/claude-opus-4-5")
	if !known {
		t.Fatal("built-in model should be known")
	}
	if m.FolderName != "Claude-Opus-4.5" {
		t.Fatalf("folder name = %q", m.FolderName)
	}

	m, known = cfg.ModelMeta("acme/wizard-9")
	if known {
		t.Fatal("unknown model reported as known")
	}
	if m.Provider != "acme" || m.Name != "wizard-9" {
		t.Fatalf("derived metadata = %+v", m)
	}
	if m.OrgDisplayName != "Acme" {
		t.Fatalf("org display = %q", m.OrgDisplayName)
	}

	m, _ = cfg.ModelMeta("acme:wizard-9")
	if m.Provider != "acme" || m.Name != "wizard-9" {
		t.Fatalf("colon-form identity not parsed: %+v", m)
	}
}

func TestModelMetaUserOverride(t *testing.T) {
	cfg := Default
	cfg.Models = map[string]ModelMetadata{
		"anthropic/claude-opus-4-5": {Name: "custom", FolderName: "Custom"},
	}
	m, known := cfg.ModelMeta("anthropic/claude-opus-4-5")
	if !known || m.FolderName != "Custom" {
		t.Fatalf("user override not honored: %+v known=%v", m, known)
	}
}
