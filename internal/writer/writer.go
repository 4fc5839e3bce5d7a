// Package writer re-validates generated documents and writes them to disk.
package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/morganstanley/resource-model/internal/generator"
	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/validate"
)

// Format selects the output encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// ParseFormat accepts "json" or "yaml" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case JSON, YAML:
		return f, nil
	case "":
		return JSON, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (want json or yaml)", s)
	}
}

// ErrNotWritten is returned by Write for a document that carries defects.
var ErrNotWritten = errors.New("document has errors and was not written")

// Options controls where and how a document is written.
type Options struct {
	OutDir string // required
	Format Format // defaults to JSON
	DryRun bool   // validate and plan, don't write
	Logger *slog.Logger
}

// Planned describes the file Write produced or would produce.
type Planned struct {
	Path string
	Size int
}

// Validate meta-validates every component schema against Draft-4 and then
// loads and validates the document structure as OpenAPI 3.0. Only Draft-4
// judges schemas. Failures are appended to res.Errors. It reports whether
// the result is still clean.
func Validate(ctx context.Context, res *generator.Result) bool {
	if res == nil || res.Document == nil {
		return false
	}
	schemas := res.Document.Components.Schemas
	for _, name := range maputil.SortedKeys(schemas) {
		if err := validate.CheckSchema(schemas[name]); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("components.schemas.%s: %w", name, err))
		}
	}
	tree, err := res.Document.Tree()
	if err != nil {
		res.Errors = append(res.Errors, err)
		return false
	}
	stubSchemas(tree)
	raw, err := json.Marshal(tree)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("marshal document: %w", err))
		return false
	}
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("load openapi document: %w", err))
		return false
	}
	if err := doc.Validate(ctx); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("openapi document: %w", err))
	}
	return !res.Failed()
}

// stubSchemas empties every schema in tree, keeping local references, so
// the OpenAPI pass sees paths, parameters and responses only. Draft-4
// forms such as type arrays or "null" have no OpenAPI 3.0 equivalent.
func stubSchemas(tree map[string]any) {
	comps, _ := tree["components"].(map[string]any)
	if schemas, ok := comps["schemas"].(map[string]any); ok {
		for name := range schemas {
			schemas[name] = map[string]any{}
		}
	}
	if params, ok := comps["parameters"].(map[string]any); ok {
		for _, p := range params {
			stubSchemaField(p)
		}
	}
	if resps, ok := comps["responses"].(map[string]any); ok {
		for _, r := range resps {
			stubContent(r)
		}
	}
	paths, _ := tree["paths"].(map[string]any)
	for _, item := range paths {
		ops, _ := item.(map[string]any)
		for _, op := range ops {
			o, ok := op.(map[string]any)
			if !ok {
				continue
			}
			params, _ := o["parameters"].([]any)
			for _, p := range params {
				stubSchemaField(p)
			}
			stubContent(o["requestBody"])
			resps, _ := o["responses"].(map[string]any)
			for _, r := range resps {
				stubContent(r)
			}
		}
	}
}

func stubContent(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	content, _ := m["content"].(map[string]any)
	for _, media := range content {
		stubSchemaField(media)
	}
}

func stubSchemaField(v any) {
	m, ok := v.(map[string]any)
	if !ok {
		return
	}
	s, ok := m["schema"]
	if !ok {
		return
	}
	if ref, ok := s.(map[string]any); ok && len(ref) == 1 {
		if target, ok := ref["$ref"].(string); ok && strings.HasPrefix(target, "#/") {
			return
		}
	}
	m["schema"] = map[string]any{}
}

// Encode serializes doc with sorted mapping keys. JSON is indented by four
// spaces without HTML escaping; YAML by two.
func Encode(doc *generator.Document, f Format) ([]byte, error) {
	tree, err := doc.Tree()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	switch f {
	case JSON, "":
		return EncodeJSON(tree)
	case YAML:
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
	return buf.Bytes(), nil
}

// EncodeJSON renders v the way documents and staged fragments are written:
// sorted keys, four-space indent, no HTML escaping, trailing newline.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// Write validates res and writes its document to {OutDir}/{MimeType}. A
// result with errors, recorded earlier or found here, is never written.
func Write(ctx context.Context, res *generator.Result, opts Options) (*Planned, error) {
	if res == nil || res.Document == nil {
		return nil, fmt.Errorf("writer: nil result")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("writer: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !res.Failed() {
		n := len(res.Errors)
		Validate(ctx, res)
		for _, err := range res.Errors[n:] {
			logger.Error("document failed validation", "mimetype", res.MimeType, "error", err)
		}
	}
	if res.Failed() {
		return nil, fmt.Errorf("%s: %w", res.MimeType, ErrNotWritten)
	}
	data, err := Encode(res.Document, opts.Format)
	if err != nil {
		return nil, err
	}
	p := &Planned{Path: filepath.Join(opts.OutDir, res.MimeType), Size: len(data)}
	if opts.DryRun {
		logger.Info("would write document", "path", p.Path, "bytes", p.Size)
		return p, nil
	}
	if err := WriteFile(p.Path, data); err != nil {
		return nil, err
	}
	logger.Info("wrote document", "path", p.Path, "bytes", p.Size)
	return p, nil
}

// WriteFile replaces path atomically by writing a sibling temp file and
// renaming it into place. Parent directories are created.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("write temp %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close temp %s: %w", path, err)
	}
	if err := os.Chmod(name, 0o644); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(name, path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
