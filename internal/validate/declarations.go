package validate

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/morganstanley/resource-model/internal/maputil"
)

// SearchParam is one declared search query parameter.
type SearchParam struct {
	Name string
	// Param is the declaration with in/style/explode filled in, ready to
	// be used as a query parameter object.
	Param map[string]any
}

// RPCVerb is one declared rpc verb. Request is nil when the verb takes no body.
type RPCVerb struct {
	Verb     string
	Request  map[string]any
	Response map[string]any
}

var verbRe = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// CheckSearch validates the search declaration: a list of mappings, each
// with a name other than pk or body and a Draft-4 valid schema.
func CheckSearch(search any) ([]SearchParam, error) {
	list, ok := search.([]any)
	if !ok {
		return nil, declarationErr("search", "search field should be a list")
	}
	var (
		out  []SearchParam
		errs []error
		seen = make(map[string]bool)
	)
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			errs = append(errs, declarationErr("search", "entry %d must be a mapping", i))
			continue
		}
		name, ok := m["name"].(string)
		if !ok || name == "" {
			errs = append(errs, declarationErr("search", "name field missing in entry %d", i))
			continue
		}
		if name == "pk" || name == "body" {
			errs = append(errs, declarationErr(name, "reserved keyword in search"))
			continue
		}
		if seen[name] {
			errs = append(errs, declarationErr(name, "search parameter declared twice"))
			continue
		}
		seen[name] = true
		schema, ok := m["schema"]
		if !ok {
			errs = append(errs, declarationErr(name, "schema field missing in search"))
			continue
		}
		if err := CheckSchema(schema); err != nil {
			errs = append(errs, &PropertyError{Property: name, Message: "invalid search schema", Kind: ErrInvalidSchema, Cause: err})
			continue
		}
		param := maputil.CopyMap(m)
		param["in"] = "query"
		param["style"] = "form"
		param["explode"] = false
		out = append(out, SearchParam{Name: name, Param: param})
	}
	return out, errors.Join(errs...)
}

// CheckRPC validates the rpc declaration: a list of mappings from verb to
// {request, response}. Valid verbs are returned even when others fail.
func CheckRPC(rpc any) ([]RPCVerb, error) {
	list, ok := rpc.([]any)
	if !ok {
		return nil, declarationErr("rpc", "rpc field should be a list")
	}
	var (
		out  []RPCVerb
		errs []error
		seen = make(map[string]bool)
	)
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok || len(m) == 0 {
			errs = append(errs, declarationErr("rpc", "entry %d must be a mapping of verb to definition", i))
			continue
		}
		for _, verb := range maputil.SortedKeys(m) {
			v, err := checkVerb(verb, m[verb])
			if err == nil && seen[verb] {
				err = declarationErr(verb, "rpc verb declared twice")
			}
			if err != nil {
				errs = append(errs, err)
				continue
			}
			seen[verb] = true
			out = append(out, v)
		}
	}
	return out, errors.Join(errs...)
}

func checkVerb(verb string, val any) (RPCVerb, error) {
	if !verbRe.MatchString(verb) {
		return RPCVerb{}, declarationErr(verb, "rpc verb must be a single path segment of letters, digits, '.', '_', '~' or '-'")
	}
	def, ok := val.(map[string]any)
	if !ok {
		return RPCVerb{}, declarationErr(verb, "rpc definition must be a mapping, got %T", val)
	}
	var errs []error
	resp, ok := def["response"].(map[string]any)
	if !ok || len(resp) == 0 {
		errs = append(errs, declarationErr(verb, "missing response field in rpc section"))
	}
	var req map[string]any
	if r, present := def["request"]; present && r != nil {
		m, ok := r.(map[string]any)
		if !ok || len(m) == 0 {
			errs = append(errs, declarationErr(verb, "request in rpc section must be a non-empty schema, got %s", describe(r)))
		}
		req = m
	}
	if len(errs) > 0 {
		return RPCVerb{}, errors.Join(errs...)
	}
	return RPCVerb{Verb: verb, Request: req, Response: resp}, nil
}

func describe(v any) string {
	if maputil.Empty(v) {
		return "an empty value"
	}
	return fmt.Sprintf("%T", v)
}
