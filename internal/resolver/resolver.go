// Package resolver follows $ref chains in resource definitions.
//
// References are resolved relative to the document that contains them: a
// fragment-only reference ("#/definitions/x") points into the same document,
// a file reference ("common/types.yaml#/size") is resolved against the
// directory of the referring file, and top-level files against the base
// directory. Absolute pointers and pointers leaving the base directory are
// rejected. Every walk is bounded by a hop limit and a visited set, so a
// cyclic schema is reported instead of recursing forever.
package resolver

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/morganstanley/resource-model/internal/maputil"
	"gopkg.in/yaml.v3"
)

// DefaultMaxHops bounds the length of a $ref chain and the nesting of
// inlined references.
const DefaultMaxHops = 64

// DefinitionsPrefix is where the resource's local definitions live in the
// generated document.
const DefinitionsPrefix = "#/components/schemas/definitions-"

var terminalKeys = []string{"enum", "allOf", "anyOf", "oneOf", "not", "type"}

// IsTerminal reports whether m is a concrete schema rather than a pointer.
func IsTerminal(m map[string]any) bool {
	for _, k := range terminalKeys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// Node is a resolved schema together with the document it came from.
// Scope is empty for the resource definition and otherwise the slash
// separated path of an external file relative to the base directory.
type Node struct {
	Schema map[string]any
	Scope  string
}

// Resolver dereferences $ref pointers. It caches external documents and is
// not safe for concurrent use.
type Resolver struct {
	baseDir string
	root    map[string]any
	maxHops int
	logger  *slog.Logger
	docs    map[string]map[string]any
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxHops overrides DefaultMaxHops. Values below one are ignored.
func WithMaxHops(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxHops = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a resolver for the resource document root whose external
// references live under baseDir.
func New(baseDir string, root map[string]any, opts ...Option) *Resolver {
	r := &Resolver{
		baseDir: baseDir,
		root:    root,
		maxHops: DefaultMaxHops,
		logger:  slog.Default(),
		docs:    make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve follows node's $ref chain until it reaches a schema carrying one
// of the terminal keywords and returns a deep copy of that schema.
func (r *Resolver) Resolve(node any, scope string) (*Node, error) {
	cur, ok := node.(map[string]any)
	if !ok {
		return nil, &ReferenceError{Scope: scope, Message: fmt.Sprintf("invalid definition: expected a mapping, got %T", node)}
	}
	visited := make(map[string]bool)
	for hops := 0; ; hops++ {
		if IsTerminal(cur) {
			return &Node{Schema: maputil.CopyMap(cur), Scope: scope}, nil
		}
		ref, ok := cur["$ref"].(string)
		if !ok {
			return nil, &ReferenceError{Scope: scope, Message: "invalid definition: no type, enum, combinator or $ref"}
		}
		if hops >= r.maxHops {
			return nil, &ReferenceError{Ref: ref, Scope: scope, IsCircular: true,
				Message: fmt.Sprintf("chain exceeds %d hops", r.maxHops)}
		}
		next, nextScope, key, err := r.deref(ref, scope)
		if err != nil {
			return nil, err
		}
		if visited[key] {
			return nil, &ReferenceError{Ref: ref, Scope: scope, IsCircular: true}
		}
		visited[key] = true
		r.logger.Debug("followed $ref", "ref", ref, "scope", scope, "target", key)
		cur, scope = next, nextScope
	}
}

// Inline returns a copy of schema in which every $ref has been replaced by
// the schema it points to, except references to the resource's own
// definitions, which are rewritten to point at their component entries.
func (r *Resolver) Inline(schema any, scope string) (any, error) {
	return r.inline(schema, scope, nil)
}

func (r *Resolver) inline(v any, scope string, stack []string) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := val["$ref"].(string); ok {
			if scope == "" {
				if name, ok := definitionName(ref); ok {
					defs, _ := r.root["definitions"].(map[string]any)
					if _, exists := defs[name]; !exists {
						return nil, &ReferenceError{Ref: ref, Message: "definition not found"}
					}
					out := maputil.CopyMap(val)
					out["$ref"] = DefinitionsPrefix + name
					return out, nil
				}
			}
			if len(stack) >= r.maxHops {
				return nil, &ReferenceError{Ref: ref, Scope: scope, IsCircular: true,
					Message: fmt.Sprintf("nesting exceeds %d levels", r.maxHops)}
			}
			target, nextScope, key, err := r.deref(ref, scope)
			if err != nil {
				return nil, err
			}
			if slices.Contains(stack, key) {
				return nil, &ReferenceError{Ref: ref, Scope: scope, IsCircular: true}
			}
			return r.inline(target, nextScope, append(stack[:len(stack):len(stack)], key))
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			x, err := r.inline(elem, scope, stack)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			x, err := r.inline(elem, scope, stack)
			if err != nil {
				return nil, err
			}
			out[i] = x
		}
		return out, nil
	default:
		return v, nil
	}
}

// definitionName extracts X from "#/definitions/X".
func definitionName(ref string) (string, bool) {
	rest, ok := strings.CutPrefix(ref, "#/definitions/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return unescapePointer(rest), true
}

// deref performs a single hop. It returns the target mapping, the scope the
// target lives in and a canonical key identifying the target.
func (r *Resolver) deref(ref, scope string) (map[string]any, string, string, error) {
	if strings.HasPrefix(ref, "/") || strings.HasPrefix(ref, "..") {
		return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, IsPathTraversal: true}
	}
	if strings.Contains(ref, "://") {
		return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, Message: "remote references are not supported"}
	}
	file, frag, _ := strings.Cut(ref, "#")
	target := scope
	if file != "" {
		target = path.Clean(path.Join(path.Dir(scope), file))
		if target == ".." || strings.HasPrefix(target, "../") || path.IsAbs(target) {
			return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, IsPathTraversal: true}
		}
	}
	doc, err := r.document(target)
	if err != nil {
		return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, Cause: err}
	}
	node, err := walkPointer(doc, frag)
	if err != nil {
		return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, Cause: err}
	}
	m, ok := node.(map[string]any)
	if !ok {
		return nil, "", "", &ReferenceError{Ref: ref, Scope: scope, Message: fmt.Sprintf("target is %T, not a mapping", node)}
	}
	return m, target, target + "#" + frag, nil
}

func (r *Resolver) document(scope string) (map[string]any, error) {
	if scope == "" {
		if r.root == nil {
			return nil, fmt.Errorf("no resource document")
		}
		return r.root, nil
	}
	if doc, ok := r.docs[scope]; ok {
		return doc, nil
	}
	absBase, err := filepath.Abs(r.baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}
	absPath := filepath.Join(absBase, filepath.FromSlash(scope))
	if rel, err := filepath.Rel(absBase, absPath); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, &ReferenceError{Ref: scope, IsPathTraversal: true}
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", absPath, err)
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", absPath, err)
	}
	doc, ok := maputil.Normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s: top level is not a mapping", absPath)
	}
	r.docs[scope] = doc
	r.logger.Debug("loaded external schema", "file", absPath)
	return doc, nil
}

func walkPointer(doc map[string]any, frag string) (any, error) {
	if frag == "" || frag == "/" {
		return doc, nil
	}
	if !strings.HasPrefix(frag, "/") {
		return nil, fmt.Errorf("unsupported fragment %q", frag)
	}
	parts := strings.Split(frag[1:], "/")
	var current any = doc
	for i, part := range parts {
		part = unescapePointer(part)
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, fmt.Errorf("pointer #/%s not found", strings.Join(parts[:i+1], "/"))
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("invalid index %q at #/%s", part, strings.Join(parts[:i], "/"))
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse %T at #/%s", v, strings.Join(parts[:i], "/"))
		}
	}
	return current, nil
}

// unescapePointer applies RFC 6901 token unescaping.
func unescapePointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
