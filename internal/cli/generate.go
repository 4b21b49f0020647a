package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	goemitter "github.com/mark3labs/swagger2client/internal/emitter/goemitter"
	"github.com/mark3labs/swagger2client/internal/generate"
	"github.com/mark3labs/swagger2client/internal/resource"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// GenerateConfig captures all inputs that influence the generate command after
// merging defaults, config file values, and CLI overrides.
type GenerateConfig struct {
	Input        string
	Out          string
	Package      string
	BaseURL      string
	Root         string
	Validate     bool
	Timeout      time.Duration
	Retries      int
	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	PathPatterns []string
	ConfigPath   string
	DryRun       bool
	Force        bool
	Verbose      bool
}

func defaultGenerateConfig() GenerateConfig {
	return GenerateConfig{Timeout: 10 * time.Second, Retries: 1}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a Go client package from an OpenAPI/Swagger document",
		Long: "Generate a Go HTTP client package from a Swagger 2.0 or OpenAPI 3.0 document. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  swagger2client generate --input spec.yaml --out ./petstore
  swagger2client generate --input https://petstore.swagger.io/v2/swagger.json --base-url http://localhost:8080
  swagger2client --config swagger2client.yaml generate --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Document URI (file://, http://, https://) or a local path")
	flags.String("out", "", "Output directory (defaults to the package name)")
	flags.String("package", "", "Go package name (derived from the document title when omitted)")
	flags.String("base-url", "", "Override the base URL declared by the document")
	flags.String("root", "", "Directory relative file:// paths resolve against")
	flags.Bool("validate", false, "Run structural validation before generating")
	flags.Duration("timeout", 10*time.Second, "Timeout for each HTTP request when fetching the document")
	flags.Int("retries", 1, "Attempts for transient HTTP failures")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags")
	flags.StringSlice("methods", nil, "Only include these HTTP methods")
	flags.StringArray("paths", nil, "Only include paths matching this regular expression (repeatable)")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	cfg := defaultGenerateConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	configPath = strings.TrimSpace(configPath)
	if configPath != "" {
		cfg.ConfigPath = configPath
		if err := applyGenerateConfigFromFile(&cfg, configPath); err != nil {
			return nil, err
		}
	}

	if err := applyGenerateFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	strs := map[string]*string{
		"input":    &cfg.Input,
		"out":      &cfg.Out,
		"package":  &cfg.Package,
		"base-url": &cfg.BaseURL,
		"root":     &cfg.Root,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(value)
	}

	lists := map[string]*[]string{
		"include-tags": &cfg.IncludeTags,
		"exclude-tags": &cfg.ExcludeTags,
		"methods":      &cfg.Methods,
	}
	for name, dst := range lists {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetStringSlice(name)
		if err != nil {
			return err
		}
		*dst = sanitizeTags(value)
	}

	// Patterns may contain commas ("^/a{1,2}"), so each --paths is one regexp.
	if flags.Changed("paths") {
		value, err := flags.GetStringArray("paths")
		if err != nil {
			return err
		}
		cfg.PathPatterns = sanitizeTags(value)
	}

	bools := map[string]*bool{
		"validate": &cfg.Validate,
		"dry-run":  &cfg.DryRun,
		"force":    &cfg.Force,
		"verbose":  &cfg.Verbose,
	}
	for name, dst := range bools {
		if !flags.Changed(name) {
			continue
		}
		value, err := flags.GetBool(name)
		if err != nil {
			return err
		}
		*dst = value
	}

	if flags.Changed("timeout") {
		value, err := flags.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = value
	}
	if flags.Changed("retries") {
		value, err := flags.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Package = strings.TrimSpace(c.Package)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.Root = strings.TrimSpace(c.Root)
	c.IncludeTags = sanitizeTags(c.IncludeTags)
	c.ExcludeTags = sanitizeTags(c.ExcludeTags)
	c.Methods = sanitizeTags(c.Methods)
	c.PathPatterns = sanitizeTags(c.PathPatterns)
}

func (c *GenerateConfig) validate() error {
	if c.Input == "" {
		return newUsageError("generate: --input is required (set via flag or config file)")
	}

	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("generate: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}

	for _, m := range c.Methods {
		switch spec.HttpMethod(strings.ToLower(m)) {
		case spec.GET, spec.PUT, spec.POST, spec.DELETE, spec.OPTIONS, spec.HEAD, spec.PATCH, spec.TRACE:
		default:
			return newUsageError(fmt.Sprintf("generate: unsupported --methods value %q", m))
		}
	}

	if c.Timeout <= 0 {
		return newUsageError("generate: --timeout must be positive")
	}
	if c.Retries < 1 {
		return newUsageError("generate: --retries must be at least 1")
	}

	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	logger := newLogger(cfg.Verbose)

	// 1) Read, parse, normalize, assemble and render
	res, err := generate.Run(ctx, generate.Options{
		Input:        resource.FileURI(cfg.Input),
		Root:         cfg.Root,
		BaseURL:      cfg.BaseURL,
		Package:      cfg.Package,
		Validate:     cfg.Validate,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.Retries,
		IncludeTags:  cfg.IncludeTags,
		ExcludeTags:  cfg.ExcludeTags,
		Methods:      cfg.Methods,
		PathPatterns: cfg.PathPatterns,
		Logger:       logger,
	})
	if err != nil {
		return describeError(err)
	}

	// 2) Derive the output directory from the package name when omitted
	outDir := cfg.Out
	if outDir == "" {
		outDir = res.Artifact.Package
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	// 3) Write or plan
	emitted, err := goemitter.Emit(ctx, res.Files, goemitter.Options{
		OutDir: outDir,
		Force:  cfg.Force,
		DryRun: cfg.DryRun,
		Logger: logger,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	paths := make([]string, 0, len(emitted.Planned))
	for _, p := range emitted.Planned {
		paths = append(paths, p.RelPath)
	}
	if cfg.DryRun {
		printPlan(absOut, len(paths), paths)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Generated package %s (%d methods, %d models) in %s\n",
		res.Artifact.Package, len(res.Artifact.Methods), len(res.Artifact.Models), absOut)
	return nil
}

// describeError turns a pipeline error into a usage error listing its
// source, pointer and hint on separate lines.
func describeError(err error) error {
	var se *spec.Error
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("%s: %s", se.Kind, se.Error())
	if se.Source != "" {
		msg = fmt.Sprintf("%s\nSource: %s", msg, se.Source)
	}
	if se.Pointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.Pointer)
	}
	if se.Hint != "" {
		msg = fmt.Sprintf("%s\nHint: %s", msg, se.Hint)
	}
	return newUsageError(msg)
}

func printPlan(outDir string, count int, relPaths []string) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, count)
	for _, p := range relPaths {
		fmt.Fprintf(os.Stdout, "- %s\n", p)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func sanitizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	result := make([]string, 0, len(tags))
	for _, tag := range tags {
		trimmed := strings.TrimSpace(tag)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}

	for key, value := range raw {
		if err := applyConfigField(cfg, normalizeKey(key), value); err != nil {
			if errors.Is(err, errUnknownField) {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}

	return nil
}

var errUnknownField = errors.New("unknown field")

func applyConfigField(cfg *GenerateConfig, key string, value any) error {
	var err error
	switch key {
	case "input":
		cfg.Input, err = valueAsString(value)
	case "out":
		cfg.Out, err = valueAsString(value)
	case "package", "packagename":
		cfg.Package, err = valueAsString(value)
	case "baseurl":
		cfg.BaseURL, err = valueAsString(value)
	case "root":
		cfg.Root, err = valueAsString(value)
	case "validate":
		cfg.Validate, err = valueAsBool(value)
	case "timeout":
		cfg.Timeout, err = valueAsDuration(value)
	case "retries":
		cfg.Retries, err = valueAsInt(value)
	case "includetags":
		cfg.IncludeTags, err = valueAsStringSlice(value)
	case "excludetags":
		cfg.ExcludeTags, err = valueAsStringSlice(value)
	case "methods":
		cfg.Methods, err = valueAsStringSlice(value)
	case "paths", "pathpatterns":
		cfg.PathPatterns, err = valueAsPatterns(value)
	case "dryrun":
		cfg.DryRun, err = valueAsBool(value)
	case "force":
		cfg.Force, err = valueAsBool(value)
	case "verbose":
		cfg.Verbose, err = valueAsBool(value)
	default:
		return errUnknownField
	}
	return err
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

// valueAsPatterns accepts one regexp or a list of them. Unlike other list
// fields a string is never split on commas.
func valueAsPatterns(v any) ([]string, error) {
	if str, ok := v.(string); ok {
		if strings.TrimSpace(str) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(str)}, nil
	}
	return valueAsStringSlice(v)
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", val)
		}
		return d, nil
	case int:
		return time.Duration(val) * time.Second, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", v)
	}
}

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case string:
		var n int
		if _, err := fmt.Sscanf(strings.TrimSpace(val), "%d", &n); err != nil {
			return 0, fmt.Errorf("invalid integer %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}
