package generator

// Keywords that only mean something in a resource definition.
var resourceKeywords = []string{"key", "version", "rpc", "search", "definitions", "rpconly"}

// compat returns a JSON-Schema compatible copy of a resource schema:
// propertylist becomes array, mutablehash becomes object, and the
// resource-only keywords are removed at every level.
func compat(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = compat(elem)
		}
		for _, k := range resourceKeywords {
			delete(out, k)
		}
		switch out["type"] {
		case "propertylist":
			out["type"] = "array"
		case "mutablehash":
			out["type"] = "object"
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = compat(elem)
		}
		return out
	default:
		return v
	}
}

// compatMap is compat for a schema already known to be a mapping.
func compatMap(m map[string]any) map[string]any {
	return compat(m).(map[string]any)
}
