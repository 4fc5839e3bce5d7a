package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp/syntax"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const draft4URL = "http://json-schema.org/draft-04/schema#"

var draft4Meta = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	c.Formats["regex"] = isECMARegex
	return c.Compile(draft4URL)
})

// isECMARegex accepts patterns RE2 compiles, plus those that only fail on
// ECMA-262 constructs RE2 lacks (lookaround, backreferences).
func isECMARegex(v any) bool {
	s, ok := v.(string)
	if !ok {
		return true
	}
	_, err := syntax.Parse(s, syntax.Perl)
	if err == nil {
		return true
	}
	var serr *syntax.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code {
	case syntax.ErrInvalidPerlOp, syntax.ErrInvalidEscape, syntax.ErrInvalidNamedCapture:
		return true
	}
	return false
}

// CheckSchema meta-validates v against JSON-Schema Draft-4.
func CheckSchema(v any) error {
	meta, err := draft4Meta()
	if err != nil {
		return fmt.Errorf("compile draft-04 meta-schema: %w", err)
	}
	doc, err := jsonValue(v)
	if err != nil {
		return &PropertyError{Message: "schema is not representable as JSON", Kind: ErrInvalidSchema, Cause: err}
	}
	if err := meta.Validate(doc); err != nil {
		return &PropertyError{Message: "schema error", Kind: ErrInvalidSchema, Cause: err}
	}
	return nil
}

// jsonValue converts decoded YAML into the value types encoding/json
// produces, keeping numbers exact.
func jsonValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
