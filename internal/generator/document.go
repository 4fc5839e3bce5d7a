package generator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the OpenAPI 3.0 document built for one resource. Schemas are
// kept as generic JSON-Schema values; everything else is typed.
type Document struct {
	OpenAPI    string               `json:"openapi"`
	Info       Info                 `json:"info"`
	Servers    []Server             `json:"servers"`
	Tags       []Tag                `json:"tags"`
	Paths      map[string]*PathItem `json:"paths"`
	Components Components           `json:"components"`
}

type Info struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type Server struct {
	URL         string `json:"url"`
	Description string `json:"description"`
}

type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PathItem holds the operations generated for one URL template.
type PathItem struct {
	Get    *Operation `json:"get,omitempty"`
	Put    *Operation `json:"put,omitempty"`
	Post   *Operation `json:"post,omitempty"`
	Delete *Operation `json:"delete,omitempty"`
}

func (p *PathItem) slot(method string) **Operation {
	switch method {
	case "get":
		return &p.Get
	case "put":
		return &p.Put
	case "post":
		return &p.Post
	case "delete":
		return &p.Delete
	}
	panic(fmt.Sprintf("generator: unsupported method %q", method))
}

// Methods returns the methods that carry an operation, in a fixed order.
func (p *PathItem) Methods() []string {
	var out []string
	for _, m := range []string{"delete", "get", "post", "put"} {
		if *p.slot(m) != nil {
			out = append(out, m)
		}
	}
	return out
}

// Operation returns the operation for method, or nil.
func (p *PathItem) Operation(method string) *Operation {
	return *p.slot(strings.ToLower(method))
}

type Operation struct {
	Tags        []string            `json:"tags"`
	Description string              `json:"description"`
	OperationID string              `json:"operationId"`
	Parameters  []Parameter         `json:"parameters"`
	RequestBody *RequestBody        `json:"requestBody,omitempty"`
	Responses   map[string]Response `json:"responses"`
}

// Parameter is an inline parameter object. Extra carries any additional
// fields declared by the resource (search parameters may set description
// or required).
type Parameter struct {
	Name     string
	In       string
	Required bool
	Style    string
	Explode  *bool
	Schema   any
	Extra    map[string]any
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Extra)+6)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["name"] = p.Name
	m["in"] = p.In
	m["required"] = p.Required
	if p.Style != "" {
		m["style"] = p.Style
	}
	if p.Explode != nil {
		m["explode"] = *p.Explode
	}
	if p.Schema != nil {
		m["schema"] = p.Schema
	}
	return json.Marshal(m)
}

type RequestBody struct {
	Description string               `json:"description,omitempty"`
	Required    bool                 `json:"required"`
	Content     map[string]MediaType `json:"content"`
}

type MediaType struct {
	Schema any `json:"schema"`
}

// Response is either a reference to a response component or a literal
// response.
type Response struct {
	Ref         string
	Description string
	Content     map[string]MediaType
}

func (r Response) MarshalJSON() ([]byte, error) {
	if r.Ref != "" {
		return json.Marshal(map[string]string{"$ref": r.Ref})
	}
	m := map[string]any{"description": r.Description}
	if len(r.Content) > 0 {
		m["content"] = r.Content
	}
	return json.Marshal(m)
}

type Components struct {
	Schemas    map[string]any       `json:"schemas"`
	Parameters map[string]Parameter `json:"parameters,omitempty"`
	Responses  map[string]Response  `json:"responses,omitempty"`
}

// Tree renders the document as nested map[string]any / []any values with
// int64 and float64 numbers. Encoders that sort mapping keys produce
// byte-identical output for identical documents.
func (d *Document) Tree() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return numbers(tree).(map[string]any), nil
}

func numbers(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			val[k] = numbers(elem)
		}
		return val
	case []any:
		for i, elem := range val {
			val[i] = numbers(elem)
		}
		return val
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	default:
		return v
	}
}
