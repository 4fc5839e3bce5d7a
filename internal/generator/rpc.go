package generator

import (
	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/morganstanley/resource-model/internal/validate"
)

// addRPCVerbs emits POST /{name}:{verb} for every declared verb.
func (g *generator) addRPCVerbs() {
	if !g.def.HasRPC {
		return
	}
	verbs, err := validate.CheckRPC(g.def.RPC)
	if err != nil {
		g.fail("rpc", err)
	}
	for _, v := range verbs {
		g.addRPCVerb(v)
	}
}

func (g *generator) addRPCVerb(v validate.RPCVerb) {
	op := &Operation{
		Description: "rpc operation: " + v.Verb,
		OperationID: "rpc_" + v.Verb + "_" + g.ver,
		Responses:   rpcResponses.materialize(),
	}
	if v.Request != nil {
		req, ok := g.rpcSchema(v.Verb, v.Request)
		if !ok {
			return
		}
		_, hasRequired := req["required"]
		op.RequestBody = g.body(req, hasRequired)
	}
	resp, ok := g.rpcSchema(v.Verb, v.Response)
	if !ok {
		return
	}
	op.Responses["200"] = Response{Description: "OK", Content: g.content(resp)}
	g.addOperation("/"+g.def.Name+":"+v.Verb, "post", op)
}

func (g *generator) rpcSchema(verb string, schema map[string]any) (map[string]any, bool) {
	out, err := g.emit(&resolver.Node{Schema: schema})
	if err != nil {
		g.fail(verb, err)
		return nil, false
	}
	if err := validate.CheckSchema(out); err != nil {
		g.fail(verb, err)
		return nil, false
	}
	return out, true
}
