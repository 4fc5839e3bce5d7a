package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/morganstanley/resource-model/internal/writer"
)

// InitConfig captures the options for the init command.
type InitConfig struct {
	OutputPath string
	Force      bool

	stdout io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample resourcemodel configuration file",
		Long:  "Scaffold a commented resourcemodel configuration file that documents available options.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return err
			}
			force, err := cmd.Flags().GetBool("force")
			if err != nil {
				return err
			}
			cfg := &InitConfig{
				OutputPath: out,
				Force:      force,
				stdout:     cmd.OutOrStdout(),
			}
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().String("out", "resourcemodel.yaml", "Where to write the sample config file")
	cmd.Flags().Bool("force", false, "Overwrite the target file if it already exists")

	return cmd
}

func runInit(ctx context.Context, cfg *InitConfig) error {
	_ = ctx

	out := strings.TrimSpace(cfg.OutputPath)
	if out == "" {
		out = "resourcemodel.yaml"
	}
	absPath, err := filepath.Abs(out)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}

	if st, err := os.Stat(absPath); err == nil && !cfg.Force {
		if st.Mode().IsRegular() {
			return usagef("init: %q already exists (use --force to overwrite)", absPath)
		}
	}

	content := strings.TrimSpace(sampleConfigYAML) + "\n"
	if err := writer.WriteFile(absPath, []byte(content)); err != nil {
		return usagef("init: %v\nHint: choose a different --out or check directory permissions.", err)
	}
	stdout := cfg.stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	fmt.Fprintf(stdout, "Wrote sample config to %s\n", absPath)
	return nil
}

// sampleConfigYAML is a commented example config documenting available options.
const sampleConfigYAML = `# resourcemodel configuration (YAML)
# All fields are optional. Command-line flags override config values.

# Base directory of the resource family. Resource definitions are read from
# {basedir}/apischemas/rschemas and the family from {basedir}/etc/family.
# basedir: ./family

# Resources to generate (comma-separated or list).
# lones: [widget, gadget]

# Output format (json|yaml). Defaults to json, or $RESOURCEMODEL_OUTFMT.
# outfmt: json

# Output directory. Defaults to {basedir}/apischemas/openapi.
# outdir: ./openapi

# Generate a single resource file instead of lones. Requires outdir.
# infile: ./widget.yaml

# Family name. Takes precedence over $family and etc/family.
# family: platform

# Maximum $ref hops per lookup. Defaults to 64, or $RESOURCEMODEL_MAX_REF_HOPS.
# maxRefHops: 64

# Validate and report planned outputs without writing files.
# dryRun: false

# Enable debug logging.
# verbose: false
`
