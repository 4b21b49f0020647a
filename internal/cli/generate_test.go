package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// The generateRunner swap is package state, so these tests do not run in parallel.

func TestGenerateConfigFromFlags(t *testing.T) {
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	root.SetArgs([]string{
		"--verbose",
		"generate",
		"--input", "spec.yaml",
		"--out", "./build",
		"--package", "pets",
		"--base-url", "http://localhost:8080",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "GET,post",
		"--paths", "^/pets",
		"--timeout", "3s",
		"--retries", "4",
		"--validate",
		"--dry-run",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	if captured.Input != "spec.yaml" {
		t.Errorf("input mismatch: got %q", captured.Input)
	}
	if captured.Out != "./build" {
		t.Errorf("out mismatch: got %q", captured.Out)
	}
	if captured.Package != "pets" {
		t.Errorf("package mismatch: got %q", captured.Package)
	}
	if captured.BaseURL != "http://localhost:8080" {
		t.Errorf("base url mismatch: got %q", captured.BaseURL)
	}
	if want := []string{"foo", "bar"}; !equalStringSlices(captured.IncludeTags, want) {
		t.Errorf("include tags mismatch: got %v", captured.IncludeTags)
	}
	if want := []string{"baz"}; !equalStringSlices(captured.ExcludeTags, want) {
		t.Errorf("exclude tags mismatch: got %v", captured.ExcludeTags)
	}
	if want := []string{"GET", "post"}; !equalStringSlices(captured.Methods, want) {
		t.Errorf("methods mismatch: got %v", captured.Methods)
	}
	if want := []string{"^/pets"}; !equalStringSlices(captured.PathPatterns, want) {
		t.Errorf("paths mismatch: got %v", captured.PathPatterns)
	}
	if captured.Timeout != 3*time.Second || captured.Retries != 4 {
		t.Errorf("fetch settings mismatch: %v / %d", captured.Timeout, captured.Retries)
	}
	if !captured.Validate || !captured.DryRun || !captured.Force || !captured.Verbose {
		t.Errorf("expected every boolean flag set: %+v", captured)
	}
}

func TestGenerateConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
package: cfgpkg
base_url: https://cfg.example.com
includeTags:
  - cfgFoo
excludeTags: cfgBar
timeout: 30s
dryRun: true
force: false
verbose: true
`) + "\n"

	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	})

	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if captured == nil {
		t.Fatalf("expected config to be captured")
	}

	if captured.Input != "flag-spec.yaml" {
		t.Errorf("input: want %q got %q", "flag-spec.yaml", captured.Input)
	}
	if captured.Out != "from-config" {
		t.Errorf("out: want from-config got %q", captured.Out)
	}
	if captured.Package != "cfgpkg" {
		t.Errorf("package mismatch: got %q", captured.Package)
	}
	if captured.BaseURL != "https://cfg.example.com" {
		t.Errorf("base url mismatch: got %q", captured.BaseURL)
	}
	if want := []string{"flagTag"}; !equalStringSlices(captured.IncludeTags, want) {
		t.Errorf("include tags: want %v got %v", want, captured.IncludeTags)
	}
	if want := []string{"cfgBar"}; !equalStringSlices(captured.ExcludeTags, want) {
		t.Errorf("exclude tags: want %v got %v", want, captured.ExcludeTags)
	}
	if captured.Timeout != 30*time.Second {
		t.Errorf("timeout from config: got %v", captured.Timeout)
	}
	if captured.DryRun {
		t.Errorf("expected dry-run false after flag override")
	}
	if !captured.Force {
		t.Errorf("expected force true after flag override")
	}
	if !captured.Verbose {
		t.Errorf("expected verbose true from config file")
	}
	if captured.ConfigPath != configPath {
		t.Errorf("config path mismatch: got %q", captured.ConfigPath)
	}
}

func TestGenerateConfigPathPatternsKeepCommas(t *testing.T) {
	var captured *GenerateConfig
	generateRunner = func(ctx context.Context, cfg *GenerateConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { generateRunner = runGenerate })

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"generate", "--input", "spec.yaml", "--paths", "^/a{1,2}$", "--paths", "^/b"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := []string{"^/a{1,2}$", "^/b"}; !equalStringSlices(captured.PathPatterns, want) {
		t.Errorf("flag paths: want %v got %v", want, captured.PathPatterns)
	}

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("input: spec.yaml\npaths: '^/c{1,3}'\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	root = NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", configPath, "generate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if want := []string{"^/c{1,3}"}; !equalStringSlices(captured.PathPatterns, want) {
		t.Errorf("config paths: want %v got %v", want, captured.PathPatterns)
	}
}

func TestGenerateConfigUnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("lang: go\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	root.SetArgs([]string{
		"--config", configPath,
		"generate",
		"--input", "spec.yaml",
	})

	err := root.Execute()
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

func TestGenerateConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing input", []string{"generate"}, "--input is required"},
		{"tag overlap", []string{"generate", "--input", "a.yaml", "--include-tags", "x", "--exclude-tags", "x"}, "overlap: x"},
		{"bad method", []string{"generate", "--input", "a.yaml", "--methods", "fetch"}, `unsupported --methods value "fetch"`},
		{"zero retries", []string{"generate", "--input", "a.yaml", "--retries", "0"}, "--retries must be at least 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := NewRootCmd()
			root.SetOut(io.Discard)
			root.SetErr(io.Discard)
			root.SetArgs(tc.args)

			err := root.Execute()
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected usage error, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestDescribeError(t *testing.T) {
	t.Parallel()
	err := spec.AttachSource(
		spec.Errorf(spec.InvalidReference, "reference does not resolve").
			WithPointer("#/components/schemas/Nope").
			WithHint("define the schema"),
		"file://api.yaml")

	got := describeError(err)
	if !errors.Is(got, ErrUsage) {
		t.Fatalf("expected usage error, got %T", got)
	}
	for _, want := range []string{
		"InvalidReference: reference does not resolve",
		"Source: file://api.yaml",
		"Pointer: #/components/schemas/Nope",
		"Hint: define the schema",
	} {
		if !strings.Contains(got.Error(), want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}

	plain := errors.New("boom")
	if describeError(plain) != plain {
		t.Errorf("non-diagnostic errors should pass through")
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
