// Package staging copies the shared schema fragments that resource
// definitions reference into the output tree, so the $refs left in
// published documents resolve next to them.
package staging

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/writer"
)

// DirName is the fragment directory name on both sides.
const DirName = "common"

// FragmentError reports a fragment that could not be decoded or written.
type FragmentError struct {
	Path  string
	Cause error
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment %s: %v", e.Path, e.Cause)
}

func (e *FragmentError) Unwrap() error { return e.Cause }

// SourceDir returns the fragment directory for a run: next to inFile when
// one is given, else {baseDir}/apischemas/rschemas/common.
func SourceDir(baseDir, inFile string) string {
	if inFile != "" {
		return filepath.Join(filepath.Dir(inFile), DirName)
	}
	return filepath.Join(baseDir, "apischemas", "rschemas", DirName)
}

// Stage re-encodes every file under src as sorted, indented JSON into
// {outDir}/common, keeping relative paths and names. A missing src is not
// an error. It returns the staged paths in lexical order.
func Stage(ctx context.Context, src, outDir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := os.Stat(src)
	if os.IsNotExist(err) {
		logger.Debug("no shared fragments", "dir", src)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", src, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", src)
	}
	dst := filepath.Join(outDir, DirName)

	var staged []string
	err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if err := stageFile(path, out); err != nil {
			return err
		}
		staged = append(staged, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("staged shared fragments", "from", src, "to", dst, "files", len(staged))
	return staged, nil
}

func stageFile(path, out string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &FragmentError{Path: path, Cause: err}
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return &FragmentError{Path: path, Cause: err}
	}
	encoded, err := writer.EncodeJSON(maputil.Normalize(v))
	if err != nil {
		return &FragmentError{Path: path, Cause: err}
	}
	if err := writer.WriteFile(out, encoded); err != nil {
		return &FragmentError{Path: out, Cause: err}
	}
	return nil
}
