package spec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/morganstanley/resource-model/internal/maputil"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes fatal loader errors.
type ErrorCode string

const (
	InputError   ErrorCode = "InputError"
	ParseError   ErrorCode = "ParseError"
	FieldError   ErrorCode = "FieldError"
	VersionError ErrorCode = "VersionError"
)

// ResourceError is a fatal problem with a resource file. No output is
// produced for a resource that fails with one.
type ResourceError struct {
	Code     ErrorCode
	Message  string
	Location string // file path
	Field    string // top-level field, when the error is about one
	Cause    error
}

func (e *ResourceError) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s in schema file %s", e.Message, e.Location)
}

func (e *ResourceError) Unwrap() error { return e.Cause }

var (
	versionRe = regexp.MustCompile(`^[0-9]+(\.[0-9]+)*$`)
	nameRe    = regexp.MustCompile(`^[A-Za-z0-9._]+$`)
)

// Load reads and decodes the resource definition at path.
func Load(ctx context.Context, path string) (*ResourceDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ResourceError{Code: InputError, Message: fmt.Sprintf("load cancelled: %v", err), Location: path, Cause: err}
	}
	if strings.TrimSpace(path) == "" {
		return nil, &ResourceError{Code: InputError, Message: "resource: path is empty"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ResourceError{Code: InputError, Message: fmt.Sprintf("resolve path: %v", err), Location: path, Cause: err}
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ResourceError{Code: InputError, Message: fmt.Sprintf("read file: %v", err), Location: abs, Cause: err}
	}
	return Decode(raw, abs)
}

// Decode parses a YAML or JSON resource definition and applies the
// mandatory top-level checks. location is only used in error messages.
func Decode(data []byte, location string) (*ResourceDefinition, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &ResourceError{Code: ParseError, Message: fmt.Sprintf("yaml error: %v", err), Location: location, Cause: err}
	}
	var doc any
	if err := node.Decode(&doc); err != nil {
		return nil, &ResourceError{Code: ParseError, Message: fmt.Sprintf("yaml error: %v", err), Location: location, Cause: err}
	}
	root, ok := maputil.Normalize(doc).(map[string]any)
	if !ok {
		return nil, &ResourceError{Code: ParseError, Message: fmt.Sprintf("top level must be a mapping, got %T", doc), Location: location}
	}
	if v, ok := versionText(&node); ok {
		root["version"] = v
	}
	return FromMap(root, location)
}

// versionText returns the top-level version scalar as written, so that
// `version: 1.0` stays "1.0" instead of passing through a float.
func versionText(doc *yaml.Node) (string, bool) {
	if doc.Kind == yaml.DocumentNode && len(doc.Content) == 1 {
		doc = doc.Content[0]
	}
	if doc.Kind != yaml.MappingNode {
		return "", false
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		k, v := doc.Content[i], doc.Content[i+1]
		if k.Value == "version" && v.Kind == yaml.ScalarNode && v.Tag != "!!null" {
			return v.Value, true
		}
	}
	return "", false
}

// FromMap builds a ResourceDefinition from an already decoded document.
func FromMap(root map[string]any, location string) (*ResourceDefinition, error) {
	def := &ResourceDefinition{Raw: root, Location: location}
	def.RPCOnly, _ = root["rpconly"].(bool)

	mandatory := []string{"name", "description", "version"}
	if !def.RPCOnly {
		mandatory = append(mandatory, "key")
	}
	for _, k := range mandatory {
		if _, ok := root[k]; !ok {
			return nil, &ResourceError{Code: FieldError, Field: k, Location: location,
				Message: fmt.Sprintf("Mandatory field missing: %s", k)}
		}
	}

	name, ok := root["name"].(string)
	if !ok || !nameRe.MatchString(name) {
		return nil, &ResourceError{Code: FieldError, Field: "name", Location: location,
			Message: fmt.Sprintf("name %v must be a string of letters, digits, '.' or '_'", root["name"])}
	}
	def.Name = name
	def.Description = scalarString(root["description"])
	def.Version = scalarString(root["version"])
	if !versionRe.MatchString(def.Version) {
		return nil, &ResourceError{Code: VersionError, Field: "version", Location: location,
			Message: fmt.Sprintf("unsupported version %q: expected dotted numeric components", def.Version)}
	}
	def.Key = root["key"]

	if t, ok := root["type"]; ok {
		if t != "object" {
			return nil, &ResourceError{Code: FieldError, Field: "type", Location: location,
				Message: "Base type should be object"}
		}
		def.Type = "object"
		if _, ok := root["properties"]; !ok {
			return nil, &ResourceError{Code: FieldError, Field: "properties", Location: location,
				Message: "Missing field: properties"}
		}
	}
	if p, ok := root["properties"]; ok {
		props, ok := p.(map[string]any)
		if !ok {
			return nil, &ResourceError{Code: FieldError, Field: "properties", Location: location,
				Message: fmt.Sprintf("properties must be a mapping, got %T", p)}
		}
		def.Properties = props
	}
	if r, ok := root["required"]; ok {
		req, ok := maputil.StringSlice(r)
		if !ok {
			return nil, &ResourceError{Code: FieldError, Field: "required", Location: location,
				Message: "required must be a list of property names"}
		}
		def.Required = req
	}
	if d, ok := root["definitions"]; ok {
		defs, ok := d.(map[string]any)
		if !ok {
			return nil, &ResourceError{Code: FieldError, Field: "definitions", Location: location,
				Message: fmt.Sprintf("definitions must be a mapping, got %T", d)}
		}
		def.Definitions = defs
	}
	def.Search, def.HasSearch = root["search"]
	def.RPC, def.HasRPC = root["rpc"]
	return def, nil
}

// scalarString renders a scalar from an already decoded document.
func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
