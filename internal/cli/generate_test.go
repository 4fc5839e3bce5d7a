package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// captureGenerate swaps the runner for one that records the resolved config.
// Tests using it must not run in parallel.
func captureGenerate(t *testing.T) **GenerateConfig {
	t.Helper()
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })
	return &captured
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"family", "RESOURCEMODEL_OUTFMT", "RESOURCEMODEL_MAX_REF_HOPS"} {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unsetenv %s: %v", k, err)
		}
	}
}

func execute(args ...string) error {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	return root.Execute()
}

func TestGenerateConfigFromFlags(t *testing.T) {
	clearEnv(t)
	captured := captureGenerate(t)

	err := execute(
		"--verbose",
		"generate",
		"-b", "./family",
		"-l", "widget,gadget, widget",
		"--outfmt", "YAML",
		"--outdir", "./build",
		"--family", "platform",
		"--max-ref-hops", "9",
		"--dry-run",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.BaseDir != "./family" {
		t.Errorf("basedir mismatch: got %q", cfg.BaseDir)
	}
	if want := []string{"widget", "gadget"}; !equalStringSlices(cfg.Resources, want) {
		t.Errorf("resources mismatch: got %v", cfg.Resources)
	}
	if cfg.OutFormat != "yaml" {
		t.Errorf("outfmt mismatch: got %q", cfg.OutFormat)
	}
	if cfg.OutDir != "./build" {
		t.Errorf("outdir mismatch: got %q", cfg.OutDir)
	}
	if cfg.Family != "platform" {
		t.Errorf("family mismatch: got %q", cfg.Family)
	}
	if cfg.MaxRefHops != 9 {
		t.Errorf("max ref hops mismatch: got %d", cfg.MaxRefHops)
	}
	if !cfg.DryRun {
		t.Errorf("expected dry-run true")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true")
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("family", "fromenv")
	t.Setenv("RESOURCEMODEL_OUTFMT", "yaml")
	captured := captureGenerate(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`basedir: from-config
lones:
  - cfgres
outdir: out-config
outfmt: json
dryRun: true
verbose: true
maxRefHops: 12
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := execute(
		"--config", configPath,
		"generate",
		"-l", "flagres",
		"--dry-run=false",
	)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	cfg := *captured
	if cfg == nil {
		t.Fatalf("expected config to be captured")
	}
	if cfg.BaseDir != "from-config" {
		t.Errorf("basedir: want from-config got %q", cfg.BaseDir)
	}
	if want := []string{"flagres"}; !equalStringSlices(cfg.Resources, want) {
		t.Errorf("resources: want %v got %v", want, cfg.Resources)
	}
	if cfg.OutFormat != "json" {
		t.Errorf("outfmt: config file should override env, got %q", cfg.OutFormat)
	}
	if cfg.Family != "fromenv" {
		t.Errorf("family: want fromenv got %q", cfg.Family)
	}
	if cfg.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !cfg.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if cfg.MaxRefHops != 12 {
		t.Errorf("max ref hops: want 12 got %d", cfg.MaxRefHops)
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", cfg.ConfigPath)
	}
}

func TestGenerateConfigFamilyFromFile(t *testing.T) {
	clearEnv(t)
	captured := captureGenerate(t)

	base := t.TempDir()
	if err := os.MkdirAll(filepath.Join(base, "etc"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "etc", "family"), []byte("storage\n"), 0o600); err != nil {
		t.Fatalf("write family: %v", err)
	}

	if err := execute("generate", "-b", base, "-l", "widget"); err != nil {
		t.Fatalf("execute: %v", err)
	}
	cfg := *captured
	if cfg.Family != "storage" {
		t.Errorf("family: want storage got %q", cfg.Family)
	}
	if cfg.OutFormat != "json" || cfg.MaxRefHops != 64 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestGenerateConfigUsageErrors(t *testing.T) {
	clearEnv(t)
	captureGenerate(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no basedir", []string{"generate", "-l", "widget", "--family", "f"}, "--basedir is required"},
		{"no resources", []string{"generate", "-b", "base", "--family", "f"}, "--lones is required"},
		{"infile without outdir", []string{"generate", "-b", "base", "--infile", "x.yaml", "--family", "f"}, "--infile requires --outdir"},
		{"bad format", []string{"generate", "-b", "base", "-l", "w", "--outfmt", "xml", "--family", "f"}, "--outfmt"},
		{"bad hops", []string{"generate", "-b", "base", "-l", "w", "--max-ref-hops", "0", "--family", "f"}, "--max-ref-hops"},
		{"no family", []string{"generate", "-b", t.TempDir(), "-l", "w"}, "set family name"},
	}
	for _, tc := range cases {
		err := execute(tc.args...)
		if err == nil {
			t.Errorf("%s: expected an error", tc.name)
			continue
		}
		if !errors.Is(err, ErrUsage) {
			t.Errorf("%s: expected usage error, got %v", tc.name, err)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: unexpected error message: %v", tc.name, err)
		}
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	clearEnv(t)

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	err := execute("--config", configPath, "generate", "-b", "base", "-l", "w")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestGenerateConfigBadEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RESOURCEMODEL_MAX_REF_HOPS", "lots")

	err := execute("generate", "-b", "base", "-l", "w", "--family", "f")
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
