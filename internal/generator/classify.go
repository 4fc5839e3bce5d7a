package generator

import (
	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/validate"
)

// Property is a resolved property node. The concrete type decides which
// paths are generated for it.
type Property interface {
	resolved() *resolver.Node
}

// Scalar is a string, number, integer, boolean or enum property.
type Scalar struct{ *resolver.Node }

// Combinator is an untyped oneOf/allOf/anyOf/not schema, emitted as is.
type Combinator struct{ *resolver.Node }

type Object struct {
	*resolver.Node
	Properties map[string]any
	Required   []string
}

type Array struct {
	*resolver.Node
	Items *resolver.Node
}

// PropertyList is a list of objects identified by the Key fields.
type PropertyList struct {
	*resolver.Node
	Key  []string
	Item *resolver.Node
}

// MutableMap is an object whose members can be set and removed one at a time.
type MutableMap struct {
	*resolver.Node
	Properties map[string]any
	Required   []string
}

func (p *Scalar) resolved() *resolver.Node       { return p.Node }
func (p *Combinator) resolved() *resolver.Node   { return p.Node }
func (p *Object) resolved() *resolver.Node       { return p.Node }
func (p *Array) resolved() *resolver.Node        { return p.Node }
func (p *PropertyList) resolved() *resolver.Node { return p.Node }
func (p *MutableMap) resolved() *resolver.Node   { return p.Node }

var scalarTypes = map[string]bool{"string": true, "number": true, "integer": true, "boolean": true}

// Classify validates a resolved node and returns its kind. An untyped node
// with a combinator keyword is a Combinator even if it also carries enum;
// a typed node is dispatched on its type.
func Classify(res validate.Resolver, name string, node *resolver.Node) (Property, error) {
	kind, err := validate.CheckType(name, node.Schema)
	if err != nil {
		return nil, err
	}
	if _, typed := node.Schema["type"]; !typed {
		for _, k := range validate.CombinatorKeywords {
			if _, ok := node.Schema[k]; ok {
				return &Combinator{node}, nil
			}
		}
	}
	if _, ok := node.Schema["enum"]; ok || scalarTypes[kind] {
		if kind == "enum" {
			// "type: enum" is resource shorthand; the enum list carries the type.
			delete(node.Schema, "type")
		}
		return &Scalar{node}, nil
	}
	switch kind {
	case "object", "mutablehash":
		if err := validate.CheckObject(name, node.Schema); err != nil {
			return nil, err
		}
		props := node.Schema["properties"].(map[string]any)
		req, _ := maputil.StringSlice(node.Schema["required"])
		if kind == "object" {
			return &Object{Node: node, Properties: props, Required: req}, nil
		}
		return &MutableMap{Node: node, Properties: props, Required: req}, nil
	case "array":
		items, err := validate.CheckArray(res, name, node.Schema, node.Scope)
		if err != nil {
			return nil, err
		}
		return &Array{Node: node, Items: items}, nil
	case "propertylist":
		item, keys, err := validate.CheckPropertyList(res, name, node.Schema, node.Scope)
		if err != nil {
			return nil, err
		}
		return &PropertyList{Node: node, Key: keys, Item: item}, nil
	}
	// "type: enum" without an enum list
	return nil, &validate.PropertyError{Property: name, Message: "type enum needs an enum list", Kind: validate.ErrInvalidProperty}
}
