package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/morganstanley/resource-model/internal/config"
	"github.com/morganstanley/resource-model/internal/generator"
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/spec"
	"github.com/morganstanley/resource-model/internal/staging"
	"github.com/morganstanley/resource-model/internal/writer"
)

// ErrResourcesFailed is returned when at least one resource of a batch
// could not be generated.
var ErrResourcesFailed = errors.New("resources failed")

// GenerateConfig captures all inputs that influence the generate command after
// merging the environment, config file values, and CLI overrides.
type GenerateConfig struct {
	BaseDir    string
	Resources  []string
	OutFormat  string
	OutDir     string
	InFile     string
	Family     string
	ConfigPath string
	DryRun     bool
	Verbose    bool
	MaxRefHops int

	stdout io.Writer
	stderr io.Writer
}

func defaultGenerateConfig(e *config.Env) GenerateConfig {
	return GenerateConfig{OutFormat: e.OutFormat, MaxRefHops: e.MaxRefHops}
}

var generateRunner = runGenerate

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate OpenAPI documents for a list of resources",
		Long: "Generate one OpenAPI 3.0 document per resource definition found under " +
			"{basedir}/apischemas/rschemas, or for a single --infile. " +
			"Options can be provided via flags, config files, or the environment.",
		Example: strings.TrimSpace(`  resourcemodel generate -b ./family -l widget,gadget
  resourcemodel generate -b ./family --infile ./widget.yaml --outdir ./out --outfmt yaml
  resourcemodel --config config.yaml generate --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveGenerateConfig(cmd)
			if err != nil {
				return err
			}
			cfg.stdout = cmd.OutOrStdout()
			cfg.stderr = cmd.ErrOrStderr()
			return generateRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringP("basedir", "b", "", "Base directory of the resource family")
	flags.StringSliceP("lones", "l", nil, "Comma separated resource names")
	flags.String("outfmt", "", "Output format (json|yaml); defaults to json")
	flags.String("outdir", "", "Output directory; defaults to {basedir}/apischemas/openapi")
	flags.String("infile", "", "Full path of a single resource file (requires --outdir)")
	flags.String("family", "", "Family name; overrides the family env var and etc/family")
	flags.Bool("dry-run", false, "Validate and report planned outputs without writing files")
	flags.Int("max-ref-hops", 0, "Maximum $ref hops followed per lookup")

	return cmd
}

func resolveGenerateConfig(cmd *cobra.Command) (*GenerateConfig, error) {
	env, err := config.FromEnv()
	if err != nil {
		return nil, usagef("generate: %v", err)
	}
	cfg := defaultGenerateConfig(env)

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

	family, err := config.ResolveFamily(cfg.Family, env, cfg.BaseDir)
	if errors.Is(err, config.ErrNoFamily) {
		return nil, newUsageError("generate: " + err.Error())
	}
	if err != nil {
		return nil, err
	}
	cfg.Family = family

	return &cfg, nil
}

func applyGenerateFlagOverrides(flags *pflag.FlagSet, cfg *GenerateConfig) error {
	for _, s := range []struct {
		name string
		dst  *string
	}{
		{"basedir", &cfg.BaseDir},
		{"outfmt", &cfg.OutFormat},
		{"outdir", &cfg.OutDir},
		{"infile", &cfg.InFile},
		{"family", &cfg.Family},
	} {
		if !flags.Changed(s.name) {
			continue
		}
		value, err := flags.GetString(s.name)
		if err != nil {
			return err
		}
		*s.dst = strings.TrimSpace(value)
	}
	if flags.Changed("lones") {
		value, err := flags.GetStringSlice("lones")
		if err != nil {
			return err
		}
		cfg.Resources = sanitizeNames(value)
	}
	if flags.Changed("dry-run") {
		value, err := flags.GetBool("dry-run")
		if err != nil {
			return err
		}
		cfg.DryRun = value
	}
	if flags.Changed("verbose") {
		value, err := flags.GetBool("verbose")
		if err != nil {
			return err
		}
		cfg.Verbose = value
	}
	if flags.Changed("max-ref-hops") {
		value, err := flags.GetInt("max-ref-hops")
		if err != nil {
			return err
		}
		cfg.MaxRefHops = value
	}

	return nil
}

func (c *GenerateConfig) normalize() {
	c.BaseDir = strings.TrimSpace(c.BaseDir)
	c.OutFormat = strings.ToLower(strings.TrimSpace(c.OutFormat))
	c.OutDir = strings.TrimSpace(c.OutDir)
	c.InFile = strings.TrimSpace(c.InFile)
	c.Family = strings.TrimSpace(c.Family)
	c.Resources = sanitizeNames(c.Resources)
}

func (c *GenerateConfig) validate() error {
	if c.BaseDir == "" {
		return newUsageError("generate: --basedir is required (set via flag or config file)")
	}
	if c.InFile == "" && len(c.Resources) == 0 {
		return newUsageError("generate: --lones is required unless --infile is given")
	}
	if c.InFile != "" && c.OutDir == "" {
		return newUsageError("generate: --infile requires --outdir")
	}
	if _, err := writer.ParseFormat(c.OutFormat); err != nil {
		return usagef("generate: --outfmt: %v", err)
	}
	if c.MaxRefHops <= 0 {
		return usagef("generate: --max-ref-hops must be positive, got %d", c.MaxRefHops)
	}
	return nil
}

func runGenerate(ctx context.Context, cfg *GenerateConfig) error {
	stdout, stderr := cfg.stdout, cfg.stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := newLogger(stderr, cfg.Verbose)
	format, err := writer.ParseFormat(cfg.OutFormat)
	if err != nil {
		return newUsageError(err.Error())
	}

	outDir := cfg.OutDir
	if outDir == "" {
		outDir = filepath.Join(cfg.BaseDir, "apischemas", "openapi")
	}
	if !cfg.DryRun {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return wrapOutputError(err, outDir)
		}
		if _, err := staging.Stage(ctx, staging.SourceDir(cfg.BaseDir, cfg.InFile), outDir, logger); err != nil {
			return wrapOutputError(err, outDir)
		}
	}

	inputs := resourceFiles(cfg)
	opts := writer.Options{OutDir: outDir, Format: format, DryRun: cfg.DryRun, Logger: logger}
	var planned []string
	failed := 0
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := logger.With("resource", in.name)
		if _, err := os.Stat(in.path); errors.Is(err, os.ErrNotExist) {
			log.Error("resource does not exist", "file", in.path)
			failed++
			continue
		}
		p, err := generateOne(ctx, in.path, cfg, opts, log)
		if err != nil {
			log.Error("resource failed", "error", err)
			failed++
			continue
		}
		planned = append(planned, filepath.Base(p.Path))
	}

	if cfg.DryRun {
		printPlan(stdout, outDir, planned)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d %w", failed, len(inputs), ErrResourcesFailed)
	}
	return nil
}

type resourceFile struct {
	name string
	path string
}

func resourceFiles(cfg *GenerateConfig) []resourceFile {
	if cfg.InFile != "" {
		return []resourceFile{{name: filepath.Base(cfg.InFile), path: cfg.InFile}}
	}
	dir := filepath.Join(cfg.BaseDir, "apischemas", "rschemas")
	out := make([]resourceFile, 0, len(cfg.Resources))
	for _, name := range cfg.Resources {
		out = append(out, resourceFile{name: name, path: filepath.Join(dir, name)})
	}
	return out
}

// generateOne runs a single resource file through load, generation and
// write. Any returned error means no document was written.
func generateOne(ctx context.Context, path string, cfg *GenerateConfig, opts writer.Options, logger *slog.Logger) (*writer.Planned, error) {
	def, err := spec.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	res := resolver.New(filepath.Dir(path), def.Raw,
		resolver.WithMaxHops(cfg.MaxRefHops),
		resolver.WithLogger(logger))
	result, err := generator.Generate(ctx, def, res,
		generator.WithFamily(cfg.Family),
		generator.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if result.Failed() {
		return nil, fmt.Errorf("%d defects in %s: %w", len(result.Errors), path, writer.ErrNotWritten)
	}
	return writer.Write(ctx, result, opts)
}

func printPlan(w io.Writer, outDir string, names []string) {
	fmt.Fprintf(w, "Planned writes to %s (%d files):\n", outDir, len(names))
	for _, n := range names {
		fmt.Fprintf(w, "- %s\n", n)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") {
		return usagef("output error for %s: %s\nHint: choose a different --outdir.", outDir, msg)
	}
	return err
}

func sanitizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	result := make([]string, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
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

func applyGenerateConfigFromFile(cfg *GenerateConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return usagef("read config file %q: %v", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return usagef("parse config file %q: %v", path, err)
	}

	for key, value := range raw {
		var err error
		switch normalizeKey(key) {
		case "basedir":
			cfg.BaseDir, err = valueAsString(value)
		case "lones":
			var list []string
			list, err = valueAsStringSlice(value)
			cfg.Resources = sanitizeNames(list)
		case "outfmt":
			cfg.OutFormat, err = valueAsString(value)
		case "outdir":
			cfg.OutDir, err = valueAsString(value)
		case "infile":
			cfg.InFile, err = valueAsString(value)
		case "family":
			cfg.Family, err = valueAsString(value)
		case "dryrun":
			cfg.DryRun, err = valueAsBool(value)
		case "verbose":
			cfg.Verbose, err = valueAsBool(value)
		case "maxrefhops":
			cfg.MaxRefHops, err = valueAsInt(value)
		default:
			return usagef("config file %q: unknown field %q", path, key)
		}
		if err != nil {
			return usagef("config field %q: %v", key, err)
		}
	}

	return nil
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

func valueAsInt(v any) (int, error) {
	switch val := v.(type) {
	case int:
		return val, nil
	case nil:
		return 0, nil
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
