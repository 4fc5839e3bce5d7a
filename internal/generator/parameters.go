package generator

import (
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/validate"
)

const (
	defaultLimit = 20
	maxLimit     = 30
)

func boolPtr(b bool) *bool { return &b }

func primaryKeyParam() Parameter {
	return Parameter{Name: "primary_key", In: "path", Required: true, Schema: schemaRef("primary_key")}
}

func limitParam() Parameter {
	return Parameter{
		Name:    "_limit",
		In:      "query",
		Style:   "form",
		Explode: boolPtr(false),
		Schema: map[string]any{
			"type":    "integer",
			"minimum": 1,
			"maximum": maxLimit,
			"default": defaultLimit,
		},
	}
}

func cursorParam() Parameter {
	return Parameter{
		Name:    "_cursor",
		In:      "query",
		Style:   "form",
		Explode: boolPtr(false),
		Schema:  map[string]any{"type": "string"},
	}
}

// addParameters fills components.parameters and returns the search
// parameters. It reports false when the search declaration is invalid, in
// which case no CRUD paths are generated.
func (g *generator) addParameters() ([]Parameter, bool) {
	g.addParam("PrimaryKeyParm", primaryKeyParam())
	g.addParam("Pagination_limit", limitParam())
	g.addParam("Pagination_cursor", cursorParam())
	if !g.def.HasSearch {
		return nil, true
	}
	declared, err := validate.CheckSearch(g.def.Search)
	if err != nil {
		g.fail("search", err)
		return nil, false
	}
	var out []Parameter
	ok := true
	for _, sp := range declared {
		raw, _ := sp.Param["schema"].(map[string]any)
		schema, err := g.emit(&resolver.Node{Schema: raw})
		if err != nil {
			g.fail(sp.Name, err)
			ok = false
			continue
		}
		p := Parameter{
			Name:    sp.Name,
			In:      "query",
			Style:   "form",
			Explode: boolPtr(false),
			Schema:  schema,
			Extra:   make(map[string]any),
		}
		for k, v := range sp.Param {
			switch k {
			case "name", "in", "style", "explode", "schema":
			case "required":
				p.Required, _ = v.(bool)
			default:
				p.Extra[k] = v
			}
		}
		g.addParam(sp.Name, p)
		out = append(out, p)
	}
	return out, ok
}
