package generator

import (
	"fmt"
	"slices"

	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/validate"
)

// walkCtx is the position of a property in the resource tree.
type walkCtx struct {
	prefix string
	opid   string
	// path parameters every operation below prefix needs
	params   []Parameter
	required []string
	// scope of the document the properties were read from
	scope string
	// mapMember is set for the members of a mutablehash. The map owns
	// {prefix}/{member} through its per-key PUT, so members do not emit
	// their own replace operation there.
	mapMember bool
}

func (c walkCtx) withParams(extra ...Parameter) []Parameter {
	out := make([]Parameter, 0, len(c.params)+len(extra))
	out = append(out, c.params...)
	return append(out, extra...)
}

func hasParam(params []Parameter, name string) bool {
	return slices.ContainsFunc(params, func(p Parameter) bool { return p.Name == name })
}

func (g *generator) addCollectionPaths(search []Parameter) {
	name := g.def.Name
	root := maputil.CopyMap(g.def.Raw)
	delete(root, "name")
	for _, k := range resourceKeywords {
		delete(root, k)
	}
	if !g.addSchemaFrom(name, &resolver.Node{Schema: root}) {
		return
	}

	params := []Parameter{limitParam(), cursorParam()}
	params = append(params, search...)
	g.addOperation("/"+name, "get", &Operation{
		Description: "Get all the resources",
		OperationID: name + "_get_all_" + g.ver,
		Parameters:  params,
		Responses:   collectionResponses.materialize(),
	})

	create := &Operation{
		Description: "create a " + name,
		OperationID: name + "_post_" + g.ver,
		Responses:   createResponses.materialize(),
	}
	if g.def.HasBody() {
		create.RequestBody = g.body(schemaRef(name), g.def.BodyRequired())
		create.RequestBody.Description = create.Description
	}
	g.addOperation("/"+name, "post", create)
}

func (g *generator) addPrimaryKeyPaths() {
	name := g.def.Name
	key, ok := g.def.Key.(map[string]any)
	if !ok {
		g.fail("key", fmt.Errorf("key must be a schema mapping, got %T", g.def.Key))
		return
	}
	if !g.addSchemaFrom("primary_key", &resolver.Node{Schema: key}) {
		return
	}
	path := "/" + name + "/{primary_key}"

	g.addOperation(path, "delete", &Operation{
		Description: "delete a " + name,
		OperationID: name + "_pk_delete_" + g.ver,
		Parameters:  []Parameter{primaryKeyParam()},
		Responses:   deletionResponses.materialize(),
	})
	g.addOperation(path, "get", &Operation{
		Description: "get a " + name,
		OperationID: name + "_pk_get_" + g.ver,
		Parameters:  []Parameter{primaryKeyParam()},
		Responses:   itemResponses.materialize(),
	})
	put := &Operation{
		Description: "create a " + name,
		OperationID: name + "_pk_put_" + g.ver,
		Parameters:  []Parameter{primaryKeyParam()},
		Responses:   mutatingResponses.materialize(),
	}
	if g.def.HasBody() {
		put.RequestBody = g.body(schemaRef(name), g.def.BodyRequired())
	}
	g.addOperation(path, "put", put)
}

// walk generates paths for every property in props, in name order.
func (g *generator) walk(props map[string]any, c walkCtx) {
	for _, name := range maputil.SortedKeys(props) {
		g.property(name, props[name], c)
	}
}

func (g *generator) property(name string, raw any, c walkCtx) {
	if err := validate.CheckName(name); err != nil {
		g.fail(name, err)
		return
	}
	if validate.Ambiguous(name) {
		g.logger.Warn("use explicit property names to avoid ambiguity", "property", name)
	}
	node, err := g.res.Resolve(raw, c.scope)
	if err != nil {
		g.fail(name, err)
		return
	}
	prop, err := Classify(g.res, name, node)
	if err != nil {
		g.fail(name, err)
		return
	}

	path := c.prefix + "/" + name
	opid := c.opid + "_" + name
	required := slices.Contains(c.required, name)

	switch p := prop.(type) {
	case *Scalar:
		g.replace(name, p.Node, path, opid, required, c)
	case *Combinator:
		g.replace(name, p.Node, path, opid, required, c)
	case *Object:
		if !g.replace(name, p.Node, path, opid, required, c) {
			return
		}
		g.walk(p.Properties, walkCtx{
			prefix:   path,
			opid:     opid,
			params:   c.params,
			required: p.Required,
			scope:    p.Scope,
		})
	case *Array:
		g.array(name, p, path, opid, required, c)
	case *PropertyList:
		g.propertyList(name, p, path, opid, required, c)
	case *MutableMap:
		g.mutableMap(name, p, path, opid, required, c)
	}
}

func (g *generator) describe(verb, name string) string {
	switch verb {
	case "insert":
		return fmt.Sprintf("insert %s to a %s", name, g.def.Name)
	case "delete":
		return fmt.Sprintf("delete %s from a %s", name, g.def.Name)
	default:
		return fmt.Sprintf("replace %s in a %s", name, g.def.Name)
	}
}

// replace emits the schema for a terminal or object property and the PUT
// that replaces it.
func (g *generator) replace(name string, node *resolver.Node, path, opid string, required bool, c walkCtx) bool {
	if !g.addSchemaFrom(name, node) {
		return false
	}
	if c.mapMember {
		return true
	}
	g.addOperation(path, "put", &Operation{
		Description: g.describe("replace", name),
		OperationID: opid + "_put_" + g.ver,
		Parameters:  c.withParams(),
		RequestBody: g.body(schemaRef(name), required),
		Responses:   mutatingResponses.materialize(),
	})
	return true
}

// short is the three-letter abbreviation used in element operationIds.
func short(name string) string {
	r := []rune(name)
	if len(r) > 3 {
		r = r[:3]
	}
	return string(r)
}

func arrayOf(schema any) map[string]any {
	return map[string]any{"type": "array", "items": schema}
}

// array: the item schema becomes component {name}; elements are added and
// removed at {path}/{name}, the whole list is replaced at {path}.
func (g *generator) array(name string, p *Array, path, opid string, required bool, c walkCtx) {
	if !g.addSchemaFrom(name, p.Items) {
		return
	}
	param := Parameter{Name: name, In: "path", Required: true, Schema: schemaRef(name)}
	g.addParam(name, param)
	keyed := path + "/{" + name + "}"

	g.addOperation(keyed, "put", &Operation{
		Description: g.describe("insert", name),
		OperationID: opid + "_" + short(name) + "_put_" + g.ver,
		Parameters:  c.withParams(param),
		Responses:   mutatingResponses.materialize(),
	})
	g.addOperation(keyed, "delete", &Operation{
		Description: g.describe("delete", name),
		OperationID: opid + "_" + short(name) + "_delete_" + g.ver,
		Parameters:  c.withParams(param),
		Responses:   deletionResponses.materialize(),
	})
	if c.mapMember {
		return
	}
	g.addOperation(path, "put", &Operation{
		Description: g.describe("replace", name),
		OperationID: opid + "_put_" + g.ver,
		Parameters:  c.withParams(),
		RequestBody: g.body(arrayOf(schemaRef(name)), required),
		Responses:   mutatingResponses.materialize(),
	})
}

// propertyList splits the key fields out of the item schema. Elements are
// addressed by one path segment per key field; the remaining item fields
// are walked below that keyed path.
func (g *generator) propertyList(name string, p *PropertyList, path, opid string, required bool, c walkCtx) {
	item, err := g.emit(p.Item)
	if err != nil {
		g.fail(name, err)
		return
	}
	if !g.addSchema(name, item) {
		return
	}
	itemProps, _ := item["properties"].(map[string]any)

	keySchema := map[string]any{
		"type":       "object",
		"required":   toAnySlice(p.Key),
		"properties": map[string]any{},
	}
	value := maputil.CopyMap(item)
	valueProps, _ := value["properties"].(map[string]any)
	var keyParams []Parameter
	keyed := path
	for _, k := range p.Key {
		ks, _ := itemProps[k].(map[string]any)
		if !g.addSchema(k, ks) {
			return
		}
		keySchema["properties"].(map[string]any)[k] = schemaRef(k)
		delete(valueProps, k)
		// An enclosing list may already bind the same key name.
		pname := k
		if hasParam(c.params, pname) {
			pname = name + "_" + k
		}
		param := Parameter{
			Name:     pname,
			In:       "path",
			Required: true,
			Style:    "simple",
			Explode:  boolPtr(true),
			Schema:   schemaRef(k),
		}
		g.addParam(pname, param)
		keyParams = append(keyParams, param)
		keyed += "/{" + pname + "}"
	}
	if req, ok := maputil.StringSlice(value["required"]); ok {
		req = slices.DeleteFunc(req, func(s string) bool { return slices.Contains(p.Key, s) })
		if len(req) == 0 {
			delete(value, "required")
		} else {
			value["required"] = toAnySlice(req)
		}
	}
	if !g.addSchema(name+"_keys", keySchema) || !g.addSchema(name+"_value", value) {
		return
	}

	_, valueRequired := value["required"]
	insert := g.body(schemaRef(name+"_value"), valueRequired)
	g.addOperation(keyed, "put", &Operation{
		Description: g.describe("insert", name),
		OperationID: opid + "_" + short(name) + "_put_" + g.ver,
		Parameters:  c.withParams(keyParams...),
		RequestBody: insert,
		Responses:   mutatingResponses.materialize(),
	})
	g.addOperation(keyed, "delete", &Operation{
		Description: g.describe("delete", name),
		OperationID: opid + "_" + short(name) + "_delete_" + g.ver,
		Parameters:  c.withParams(keyParams...),
		Responses:   deletionResponses.materialize(),
	})
	if !c.mapMember {
		g.addOperation(path, "put", &Operation{
			Description: g.describe("replace", name),
			OperationID: opid + "_put_" + g.ver,
			Parameters:  c.withParams(),
			RequestBody: g.body(arrayOf(schemaRef(name)), required),
			Responses:   mutatingResponses.materialize(),
		})
	}

	rest := maputil.CopyMap(p.Item.Schema["properties"].(map[string]any))
	for _, k := range p.Key {
		delete(rest, k)
	}
	req, _ := maputil.StringSlice(p.Item.Schema["required"])
	g.walk(rest, walkCtx{
		prefix:   keyed,
		opid:     opid,
		params:   c.withParams(keyParams...),
		required: req,
		scope:    p.Item.Scope,
	})
}

// mutableMap emits one PUT per permitted member, a DELETE keyed by the
// member name and a bulk replace, then walks the members below the map.
func (g *generator) mutableMap(name string, p *MutableMap, path, opid string, required bool, c walkCtx) {
	if !g.addSchemaFrom(name, p.Node) {
		return
	}
	members := maputil.SortedKeys(p.Properties)
	if !g.addSchema(name+"_keys", map[string]any{"type": "string", "enum": toAnySlice(members)}) {
		return
	}
	param := Parameter{Name: name, In: "path", Required: true, Schema: schemaRef(name + "_keys")}
	g.addParam(name, param)

	for _, k := range members {
		body := any(schemaRef(k))
		if node, err := g.res.Resolve(p.Properties[k], p.Scope); err == nil {
			// list members are emitted as their item schema
			if t := node.Schema["type"]; t == "array" || t == "propertylist" {
				body = arrayOf(schemaRef(k))
			}
		}
		g.addOperation(path+"/"+k, "put", &Operation{
			Description: g.describe("insert", name),
			OperationID: opid + "_" + k + "_put_" + g.ver,
			Parameters:  c.withParams(),
			RequestBody: g.body(body, true),
			Responses:   mutatingResponses.materialize(),
		})
	}
	g.addOperation(path+"/{"+name+"}", "delete", &Operation{
		Description: g.describe("delete", name),
		OperationID: opid + "_delete_" + g.ver,
		Parameters:  c.withParams(param),
		Responses:   deletionResponses.materialize(),
	})
	if !c.mapMember {
		g.addOperation(path, "put", &Operation{
			Description: g.describe("replace", name),
			OperationID: opid + "_put_" + g.ver,
			Parameters:  c.withParams(),
			RequestBody: g.body(schemaRef(name), required),
			Responses:   mutatingResponses.materialize(),
		})
	}

	g.walk(p.Properties, walkCtx{
		prefix:    path,
		opid:      opid,
		params:    c.params,
		required:  p.Required,
		scope:     p.Scope,
		mapMember: true,
	})
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
