// Package validate holds the naming and structural rules a resource
// definition must follow before paths can be generated from it.
//
// Every check returns an error describing the defect instead of stopping
// the run; callers log it, remember that the document failed and move on
// to the next property so one pass reports everything that is wrong.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/morganstanley/resource-model/internal/maputil"
	"github.com/morganstanley/resource-model/internal/resolver"
)

// Resolver follows $ref chains to a concrete schema.
type Resolver interface {
	Resolve(node any, scope string) (*resolver.Node, error)
}

var (
	yamlBool = map[string]bool{"on": true, "off": true, "true": true, "false": true, "yes": true, "no": true}

	reservedNames = map[string]bool{
		"key": true, "version": true, "rpc": true, "search": true, "definitions": true,
		"pk": true, "body": true,
		"on": true, "off": true, "true": true, "false": true, "yes": true, "no": true,
	}

	ambiguousNames = map[string]bool{"name": true, "type": true}

	// Types a property may declare after resolution.
	propertyTypes = map[string]bool{
		"number": true, "string": true, "integer": true, "boolean": true, "enum": true,
		"object": true, "array": true, "mutablehash": true, "propertylist": true,
		"oneOf": true, "allOf": true, "anyOf": true, "not": true,
	}

	// Array items are restricted to scalars, objects and plain arrays.
	arrayItemTypes = map[string]bool{
		"integer": true, "number": true, "string": true, "boolean": true,
		"enum": true, "object": true, "array": true,
	}
)

// CombinatorKeywords are checked in this order.
var CombinatorKeywords = []string{"oneOf", "allOf", "anyOf", "not"}

// CheckName rejects reserved and YAML boolean-like names regardless of
// case, and names containing a hyphen.
func CheckName(name string) error {
	lower := strings.ToLower(name)
	var errs []error
	switch {
	case yamlBool[lower]:
		errs = append(errs, propertyErr(name, "do not name a property with a YAML boolean literal (on, off, true, false, yes, no)"))
	case reservedNames[lower]:
		errs = append(errs, propertyErr(name, "reserved keyword used"))
	}
	if strings.Contains(name, "-") {
		errs = append(errs, propertyErr(name, "hyphen not allowed"))
	}
	if name == "" {
		errs = append(errs, propertyErr(name, "empty property name"))
	}
	return errors.Join(errs...)
}

// Ambiguous reports names that are accepted but deserve a warning.
func Ambiguous(name string) bool {
	return ambiguousNames[strings.ToLower(name)]
}

// CheckType returns the declared kind of a resolved schema: its type, or
// "enum" or the combinator keyword when no type is given.
func CheckType(name string, schema map[string]any) (string, error) {
	var kind string
	if t, ok := schema["type"]; ok {
		s, ok := t.(string)
		if !ok {
			return "", propertyErr(name, "type must be a string, got %v", t)
		}
		kind = s
	} else if _, ok := schema["enum"]; ok {
		kind = "enum"
	} else {
		for _, k := range CombinatorKeywords {
			if _, ok := schema[k]; ok {
				kind = k
				break
			}
		}
	}
	if kind == "" {
		return "", propertyErr(name, "missing type field")
	}
	if !propertyTypes[kind] {
		return "", propertyErr(name, "unsupported type %s", kind)
	}
	return kind, nil
}

// CheckObject requires a properties mapping on object and mutablehash nodes.
func CheckObject(name string, schema map[string]any) error {
	p, ok := schema["properties"]
	if !ok {
		return propertyErr(name, "missing field properties")
	}
	if _, ok := p.(map[string]any); !ok {
		return propertyErr(name, "properties must be a mapping, got %T", p)
	}
	return nil
}

// CheckArray requires items resolving to an allowed item type and returns
// the resolved item schema.
func CheckArray(res Resolver, name string, schema map[string]any, scope string) (*resolver.Node, error) {
	items, ok := schema["items"]
	if !ok {
		return nil, propertyErr(name, "items field missing for array")
	}
	item, err := res.Resolve(items, scope)
	if err != nil {
		return nil, &PropertyError{Property: name, Message: "cannot resolve items", Kind: ErrInvalidProperty, Cause: err}
	}
	itemType := ""
	if t, ok := item.Schema["type"].(string); ok {
		itemType = t
	} else if _, ok := item.Schema["enum"]; ok {
		itemType = "enum"
	}
	if !arrayItemTypes[itemType] {
		shown := itemType
		if shown == "" {
			shown = fmt.Sprint(item.Schema["type"])
		}
		return nil, propertyErr(name, "only basic types allowed for items in array type, %s not allowed", shown)
	}
	return item, nil
}

// CheckPropertyList requires a non-empty key list and items resolving to an
// object that defines every key field. It returns the resolved item and
// the key fields in declaration order.
func CheckPropertyList(res Resolver, name string, schema map[string]any, scope string) (*resolver.Node, []string, error) {
	var errs []error
	keys, hasKey := maputil.StringSlice(schema["key"])
	switch {
	case schema["key"] == nil:
		errs = append(errs, propertyErr(name, "missing key field in propertylist"))
	case !hasKey || len(keys) == 0:
		errs = append(errs, propertyErr(name, "key must be a non-empty list of property names"))
	}
	items, ok := schema["items"]
	if !ok {
		errs = append(errs, propertyErr(name, "missing items field"))
		return nil, nil, errors.Join(errs...)
	}
	item, err := res.Resolve(items, scope)
	if err != nil {
		errs = append(errs, &PropertyError{Property: name, Message: "cannot resolve items", Kind: ErrInvalidProperty, Cause: err})
		return nil, nil, errors.Join(errs...)
	}
	if item.Schema["type"] != "object" {
		errs = append(errs, propertyErr(name, "only object type allowed for items in propertylist"))
		return nil, nil, errors.Join(errs...)
	}
	if err := CheckObject(name, item.Schema); err != nil {
		errs = append(errs, err)
		return nil, nil, errors.Join(errs...)
	}
	props := item.Schema["properties"].(map[string]any)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := props[k]; !ok {
			errs = append(errs, propertyErr(name, "key %s is not defined in the item properties", k))
		}
		if seen[k] {
			errs = append(errs, propertyErr(name, "key %s listed twice", k))
		}
		seen[k] = true
	}
	if len(errs) > 0 {
		return nil, nil, errors.Join(errs...)
	}
	return item, keys, nil
}
