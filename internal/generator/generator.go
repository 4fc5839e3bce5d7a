// Package generator turns a resource definition into an OpenAPI 3.0
// document: CRUD paths for the resource and every nested property, rpc
// verbs, and the shared schema, parameter and response components.
//
// Generation is best effort. Defects in individual properties are logged
// and collected in Result.Errors while the walk continues, so one run
// reports everything that is wrong with a definition. A Result with errors
// must not be written.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/spec"
	"github.com/morganstanley/resource-model/internal/validate"
)

// Resolver follows and inlines $ref pointers.
type Resolver interface {
	validate.Resolver
	Inline(schema any, scope string) (any, error)
}

// Result is the outcome of generating one resource.
type Result struct {
	Document *Document
	// MimeType names the output artifact: vnd.ms.{family}.{name}.v{version}.
	MimeType string
	// Errors holds every recoverable defect found. The document is only
	// fit for writing when it is empty.
	Errors []error
}

// Failed reports whether any defect was recorded.
func (r *Result) Failed() bool { return len(r.Errors) > 0 }

// Err joins the recorded defects, or returns nil.
func (r *Result) Err() error { return errors.Join(r.Errors...) }

const schemasPrefix = "#/components/schemas/"

func schemaRef(name string) map[string]any {
	return map[string]any{"$ref": schemasPrefix + name}
}

type generator struct {
	def    *spec.ResourceDefinition
	res    Resolver
	logger *slog.Logger
	doc    *Document
	errs   []error

	ver    string
	jsonCT string
	yamlCT string

	// operationId -> "METHOD path" of its first use
	opIDs map[string]string
}

// Generate builds the document for def. Recoverable defects are returned
// in Result.Errors; an error is returned only when generation cannot start.
func Generate(ctx context.Context, def *spec.ResourceDefinition, res Resolver, opts ...Option) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("generator: nil resource definition")
	}
	if res == nil {
		return nil, fmt.Errorf("generator: nil resolver")
	}
	s := Settings{Logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	if strings.TrimSpace(s.Family) == "" {
		return nil, fmt.Errorf("generator: family is required")
	}
	mime := def.MimeType(s.Family)
	g := &generator{
		def:    def,
		res:    res,
		logger: s.Logger.With("resource", def.Name, "file", def.Location),
		ver:    def.VersionSuffix(),
		jsonCT: "application/" + mime + "+json",
		yamlCT: "application/" + mime + "+yaml",
		opIDs:  make(map[string]string),
	}
	g.doc = &Document{
		OpenAPI: "3.0.0",
		Info: Info{
			Title:       def.Name,
			Description: "openapi spec for this resource",
			Version:     def.Version,
		},
		Servers: []Server{{URL: "/" + s.Family, Description: s.Family}},
		Tags:    []Tag{{Name: def.Name, Description: def.Description}},
		Paths:   make(map[string]*PathItem),
		Components: Components{
			Schemas: make(map[string]any),
		},
	}

	g.addDefinitions()
	g.doc.Components.Responses = g.responseComponents(def.RPCOnly)
	if !def.RPCOnly {
		g.doc.Components.Parameters = make(map[string]Parameter)
		search, ok := g.addParameters()
		if ok {
			g.addCollectionPaths(search)
			g.addPrimaryKeyPaths()
			if def.HasBody() && def.Properties != nil {
				g.walk(def.Properties, walkCtx{
					prefix:   "/" + def.Name + "/{primary_key}",
					opid:     def.Name + "_pk",
					params:   []Parameter{primaryKeyParam()},
					required: def.Required,
				})
			}
		}
	}
	g.addRPCVerbs()

	if len(g.errs) == 0 {
		g.logger.Debug("generated document", "paths", len(g.doc.Paths), "schemas", len(g.doc.Components.Schemas))
	}
	return &Result{Document: g.doc, MimeType: mime, Errors: g.errs}, nil
}

// fail records a recoverable defect.
func (g *generator) fail(property string, err error) {
	attrs := []any{"error", err}
	if property != "" {
		attrs = append(attrs, "property", property)
	}
	var refErr *resolver.ReferenceError
	if errors.As(err, &refErr) && refErr.Ref != "" {
		attrs = append(attrs, "ref", refErr.Ref)
	}
	g.logger.Error("resource definition defect", attrs...)
	if property != "" {
		err = fmt.Errorf("%s: %w", property, err)
	}
	g.errs = append(g.errs, err)
}

func (g *generator) content(schema any) map[string]MediaType {
	return map[string]MediaType{
		g.jsonCT: {Schema: schema},
		g.yamlCT: {Schema: schema},
	}
}

func (g *generator) body(schema any, required bool) *RequestBody {
	return &RequestBody{Required: required, Content: g.content(schema)}
}

// emit inlines and compat-converts a resolved schema for the document.
func (g *generator) emit(node *resolver.Node) (map[string]any, error) {
	inlined, err := g.res.Inline(node.Schema, node.Scope)
	if err != nil {
		return nil, err
	}
	m, ok := inlined.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema is %T, not a mapping", inlined)
	}
	return compatMap(m), nil
}

// addSchema inserts a component schema. Re-adding identical content is a
// no-op; different content under an existing name is a defect because
// every reference to the name would silently change meaning.
func (g *generator) addSchema(name string, schema map[string]any) bool {
	if prev, ok := g.doc.Components.Schemas[name]; ok {
		if reflect.DeepEqual(prev, schema) {
			return true
		}
		g.fail(name, fmt.Errorf("component schema %q is already defined with different content", name))
		return false
	}
	g.doc.Components.Schemas[name] = schema
	return true
}

// addSchemaFrom emits node under name.
func (g *generator) addSchemaFrom(name string, node *resolver.Node) bool {
	schema, err := g.emit(node)
	if err != nil {
		g.fail(name, err)
		return false
	}
	return g.addSchema(name, schema)
}

// addParam registers a component parameter; the first registration wins.
func (g *generator) addParam(name string, p Parameter) {
	if _, ok := g.doc.Components.Parameters[name]; !ok {
		g.doc.Components.Parameters[name] = p
	}
}

var templateVar = regexp.MustCompile(`\{([^{}]+)\}`)

// addOperation inserts op at path/method after checking that the path and
// operationId are unused and that the path parameters match the template.
func (g *generator) addOperation(path, method string, op *Operation) {
	where := strings.ToUpper(method) + " " + path
	item := g.doc.Paths[path]
	if item == nil {
		item = &PathItem{}
	}
	slot := item.slot(method)
	if *slot != nil {
		g.fail("", fmt.Errorf("%s is generated twice", where))
		return
	}
	if prev, ok := g.opIDs[op.OperationID]; ok {
		g.fail("", fmt.Errorf("operationId %s of %s already used by %s", op.OperationID, where, prev))
		return
	}
	if err := checkPathParams(path, op.Parameters); err != nil {
		g.fail("", fmt.Errorf("%s: %w", where, err))
		return
	}
	op.Tags = []string{g.def.Name}
	if op.Parameters == nil {
		op.Parameters = []Parameter{}
	}
	*slot = op
	g.doc.Paths[path] = item
	g.opIDs[op.OperationID] = where
}

func checkPathParams(path string, params []Parameter) error {
	inTemplate := make(map[string]bool)
	for _, m := range templateVar.FindAllStringSubmatch(path, -1) {
		if inTemplate[m[1]] {
			return fmt.Errorf("path parameter %s appears twice in the template", m[1])
		}
		inTemplate[m[1]] = true
	}
	seen := make(map[string]bool)
	for _, p := range params {
		id := p.In + ":" + p.Name
		if seen[id] {
			return fmt.Errorf("parameter %s in %s is declared twice", p.Name, p.In)
		}
		seen[id] = true
		if p.In == "path" && !inTemplate[p.Name] {
			return fmt.Errorf("path parameter %s is not in the template", p.Name)
		}
	}
	for name := range inTemplate {
		if !seen["path:"+name] {
			return fmt.Errorf("path parameter %s is not declared", name)
		}
	}
	return nil
}

// addDefinitions copies the resource's local definitions into
// components.schemas as definitions-{name}.
func (g *generator) addDefinitions() {
	for _, name := range maputil.SortedKeys(g.def.Definitions) {
		raw, ok := g.def.Definitions[name].(map[string]any)
		if !ok {
			g.fail("definitions-"+name, fmt.Errorf("definition must be a mapping, got %T", g.def.Definitions[name]))
			continue
		}
		schema, err := g.emit(&resolver.Node{Schema: raw})
		if err != nil {
			g.fail("definitions-"+name, err)
			continue
		}
		if err := validate.CheckSchema(schema); err != nil {
			g.fail("definitions-"+name, err)
			continue
		}
		g.addSchema("definitions-"+name, schema)
	}
}
