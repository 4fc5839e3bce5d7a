package generator

const responsesPrefix = "#/components/responses/"

// responseSet maps status codes to response component names. The sets are
// shared and never mutated; materialize hands out a fresh map for each
// operation.
type responseSet map[string]string

func (s responseSet) with(code, component string) responseSet {
	out := make(responseSet, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[code] = component
	return out
}

func (s responseSet) materialize() map[string]Response {
	out := make(map[string]Response, len(s)+1)
	for code, name := range s {
		out[code] = Response{Ref: responsesPrefix + name}
	}
	return out
}

var (
	errorResponses = responseSet{
		"400": "BadRequest",
		"401": "UnAuthorized",
		"404": "NotFound",
		"405": "MethodNotAllowed",
		"406": "NotAcceptable",
		"429": "TooManyRequest",
		"500": "InternalServerError",
		"503": "ServiceUnavailable",
	}

	// insert and replace
	mutatingResponses = errorResponses.with("200", "Ok").with("201", "Created").with("202", "Accepted")

	deletionResponses = errorResponses.with("204", "NoContent")

	createResponses = mutatingResponses.with("102", "Processing")

	collectionResponses = errorResponses.with("200", "Ok_all")

	itemResponses = errorResponses.with("200", "Ok")

	// rpc operations add a literal 200 carrying the verb's response schema
	rpcResponses = errorResponses.with("202", "Accepted").with("102", "Processing")
)

// statusOnly are the response components that do not depend on the
// resource schema.
var statusOnly = map[string]string{
	"Accepted":            "Accepted",
	"Processing":          "Processing",
	"NoContent":           "No Content",
	"SeeOther":            "See other",
	"BadRequest":          "Bad Request",
	"UnAuthorized":        "Unauthorized",
	"NotFound":            "Not Found",
	"MethodNotAllowed":    "Method Not Allowed",
	"NotAcceptable":       "Not Acceptable",
	"Conflict":            "Conflict",
	"TooManyRequest":      "Too Many Requests",
	"InternalServerError": "Internal Server Error",
	"ServiceUnavailable":  "Service Unavailable",
}

// responseComponents builds components.responses. rpc-only resources have
// no resource schema, so they get the status-only subset.
func (g *generator) responseComponents(rpcOnly bool) map[string]Response {
	out := make(map[string]Response, len(statusOnly)+3)
	for name, desc := range statusOnly {
		out[name] = Response{Description: desc}
	}
	if rpcOnly {
		return out
	}
	out["Ok"] = Response{Description: "OK", Content: g.content(schemaRef(g.def.Name))}
	out["Created"] = Response{Description: "Created", Content: g.content(schemaRef(g.def.Name))}
	out["Ok_all"] = Response{Description: "OK", Content: g.content(pagedCollection())}
	return out
}

func pagedCollection() map[string]any {
	href := func() map[string]any {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{"href": map[string]any{"type": "string"}},
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"_elem": map[string]any{
				"type":  "array",
				"items": schemaRef("primary_key"),
			},
			"_links": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"_self": href(),
					"_prev": href(),
					"_next": href(),
				},
				"required": []any{"_self"},
			},
		},
		"additionalProperties": true,
	}
}
