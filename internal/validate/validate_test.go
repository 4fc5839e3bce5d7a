package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/morganstanley/resource-model/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckName_ReservedRegardlessOfCase(t *testing.T) {
	t.Parallel()

	reserved := []string{"key", "version", "rpc", "search", "definitions", "pk", "body",
		"on", "off", "true", "false", "yes", "no"}
	for _, name := range reserved {
		for _, variant := range []string{name, strings.ToUpper(name), strings.ToUpper(name[:1]) + name[1:]} {
			err := CheckName(variant)
			require.Error(t, err, variant)
			assert.ErrorIs(t, err, ErrInvalidProperty, variant)
		}
	}
}

func TestCheckName_Hyphen(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"a-b", "-", "disk-size", "x-"} {
		assert.ErrorIs(t, CheckName(name), ErrInvalidProperty, name)
	}
	assert.NoError(t, CheckName("disk_size"))
	assert.NoError(t, CheckName("keys"))
}

func TestAmbiguous(t *testing.T) {
	t.Parallel()
	assert.True(t, Ambiguous("Name"))
	assert.True(t, Ambiguous("type"))
	assert.False(t, Ambiguous("color"))
	assert.NoError(t, CheckName("name"), "ambiguous names are only warned about")
}

func TestCheckType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  map[string]any
		want    string
		wantErr bool
	}{
		{"string", map[string]any{"type": "string"}, "string", false},
		{"enum", map[string]any{"enum": []any{"a"}}, "enum", false},
		{"oneOf", map[string]any{"oneOf": []any{}}, "oneOf", false},
		{"not", map[string]any{"not": map[string]any{}}, "not", false},
		{"typed combinator", map[string]any{"type": "object", "allOf": []any{}}, "object", false},
		{"mutablehash", map[string]any{"type": "mutablehash"}, "mutablehash", false},
		{"unsupported", map[string]any{"type": "null"}, "", true},
		{"missing", map[string]any{"description": "d"}, "", true},
		{"non string type", map[string]any{"type": []any{"string"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CheckType("p", tt.schema)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProperty)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckObject(t *testing.T) {
	t.Parallel()
	assert.NoError(t, CheckObject("o", map[string]any{"type": "object", "properties": map[string]any{}}))
	assert.ErrorIs(t, CheckObject("o", map[string]any{"type": "object"}), ErrInvalidProperty)
	assert.ErrorIs(t, CheckObject("o", map[string]any{"properties": []any{}}), ErrInvalidProperty)
}

func TestCheckArray_ItemTypeAllowList(t *testing.T) {
	t.Parallel()

	res := resolver.New(t.TempDir(), map[string]any{})
	tests := []struct {
		item map[string]any
		ok   bool
	}{
		{map[string]any{"type": "integer"}, true},
		{map[string]any{"type": "number"}, true},
		{map[string]any{"type": "string"}, true},
		{map[string]any{"type": "boolean"}, true},
		{map[string]any{"enum": []any{"a", "b"}}, true},
		{map[string]any{"type": "object", "properties": map[string]any{}}, true},
		{map[string]any{"type": "array", "items": map[string]any{"type": "string"}}, true},
		{map[string]any{"type": "mutablehash", "properties": map[string]any{}}, false},
		{map[string]any{"type": "propertylist"}, false},
		{map[string]any{"oneOf": []any{}}, false},
		{map[string]any{"type": "null"}, false},
	}
	for _, tt := range tests {
		item, err := CheckArray(res, "list", map[string]any{"type": "array", "items": tt.item}, "")
		if tt.ok {
			require.NoError(t, err, "%v", tt.item)
			assert.Equal(t, tt.item, item.Schema)
		} else {
			assert.ErrorIs(t, err, ErrInvalidProperty, "%v", tt.item)
		}
	}

	_, err := CheckArray(res, "list", map[string]any{"type": "array"}, "")
	assert.ErrorContains(t, err, "items field missing")
}

func TestCheckArray_ReferencedMutableHashItems(t *testing.T) {
	t.Parallel()

	root := map[string]any{"definitions": map[string]any{
		"bag": map[string]any{"type": "mutablehash", "properties": map[string]any{"a": map[string]any{"type": "string"}}},
	}}
	res := resolver.New(t.TempDir(), root)
	_, err := CheckArray(res, "bags", map[string]any{"type": "array", "items": map[string]any{"$ref": "#/definitions/bag"}}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutablehash not allowed")
}

func TestCheckArray_UnresolvableItems(t *testing.T) {
	t.Parallel()

	res := resolver.New(t.TempDir(), map[string]any{})
	_, err := CheckArray(res, "l", map[string]any{"type": "array", "items": map[string]any{"$ref": "../x.yaml"}}, "")
	assert.ErrorIs(t, err, ErrInvalidProperty)
	assert.ErrorIs(t, err, resolver.ErrPathTraversal)
}

func TestCheckPropertyList(t *testing.T) {
	t.Parallel()

	res := resolver.New(t.TempDir(), map[string]any{})
	good := map[string]any{
		"type": "propertylist",
		"key":  []any{"id"},
		"items": map[string]any{"type": "object", "properties": map[string]any{
			"id":    map[string]any{"type": "string"},
			"value": map[string]any{"type": "integer"},
		}},
	}
	item, keys, err := CheckPropertyList(res, "items", good, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, keys)
	assert.Equal(t, "object", item.Schema["type"])

	bad := []map[string]any{
		{"type": "propertylist", "items": good["items"]},
		{"type": "propertylist", "key": []any{}, "items": good["items"]},
		{"type": "propertylist", "key": []any{"id"}},
		{"type": "propertylist", "key": []any{"id"}, "items": map[string]any{"type": "string"}},
		{"type": "propertylist", "key": []any{"missing"}, "items": good["items"]},
		{"type": "propertylist", "key": []any{"id"}, "items": map[string]any{"type": "object"}},
	}
	for i, schema := range bad {
		_, _, err := CheckPropertyList(res, "items", schema, "")
		assert.ErrorIs(t, err, ErrInvalidProperty, "case %d", i)
	}
}

func TestCheckSchema(t *testing.T) {
	t.Parallel()

	assert.NoError(t, CheckSchema(map[string]any{"type": "integer", "minimum": 1, "maximum": 30}))
	assert.NoError(t, CheckSchema(map[string]any{"$ref": "#/components/schemas/x"}))

	err := CheckSchema(map[string]any{"type": "mutablehash"})
	assert.ErrorIs(t, err, ErrInvalidSchema)
	assert.ErrorIs(t, CheckSchema(map[string]any{"type": "object", "required": []any{}}), ErrInvalidSchema)
	assert.ErrorIs(t, CheckSchema(map[string]any{"minimum": "one"}), ErrInvalidSchema)
}

func TestCheckSchema_ECMAPatterns(t *testing.T) {
	t.Parallel()

	for _, pattern := range []string{`^(?!tmp).*$`, `^(?=a)\w+$`, `^(a)\1$`, `^[a-z]+$`} {
		assert.NoError(t, CheckSchema(map[string]any{"type": "string", "pattern": pattern}), pattern)
	}
	assert.ErrorIs(t, CheckSchema(map[string]any{"type": "string", "pattern": "(unclosed"}), ErrInvalidSchema)
	assert.NoError(t, CheckSchema(map[string]any{"oneOf": []any{
		map[string]any{"type": "string"}, map[string]any{"type": "null"},
	}}))
}

func TestCheckSearch(t *testing.T) {
	t.Parallel()

	params, err := CheckSearch([]any{
		map[string]any{"name": "owner", "schema": map[string]any{"type": "string"}, "description": "by owner"},
	})
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, "owner", params[0].Name)
	assert.Equal(t, map[string]any{
		"name": "owner", "schema": map[string]any{"type": "string"}, "description": "by owner",
		"in": "query", "style": "form", "explode": false,
	}, params[0].Param)

	cases := map[string]any{
		"not a list":     map[string]any{"name": "x"},
		"missing name":   []any{map[string]any{"schema": map[string]any{"type": "string"}}},
		"reserved pk":    []any{map[string]any{"name": "pk", "schema": map[string]any{"type": "string"}}},
		"reserved body":  []any{map[string]any{"name": "body", "schema": map[string]any{"type": "string"}}},
		"missing schema": []any{map[string]any{"name": "x"}},
		"bad schema":     []any{map[string]any{"name": "x", "schema": map[string]any{"type": 5}}},
		"duplicate": []any{
			map[string]any{"name": "x", "schema": map[string]any{"type": "string"}},
			map[string]any{"name": "x", "schema": map[string]any{"type": "string"}},
		},
	}
	for name, search := range cases {
		_, err := CheckSearch(search)
		assert.Error(t, err, name)
	}
}

func TestCheckRPC(t *testing.T) {
	t.Parallel()

	verbs, err := CheckRPC([]any{
		map[string]any{"activate": map[string]any{"request": nil, "response": map[string]any{"type": "boolean"}}},
		map[string]any{"resize": map[string]any{
			"request":  map[string]any{"type": "object", "properties": map[string]any{"size": map[string]any{"type": "integer"}}},
			"response": map[string]any{"type": "string"},
		}},
		map[string]any{"stop": map[string]any{"response": map[string]any{"type": "string"}}},
	})
	require.NoError(t, err)
	require.Len(t, verbs, 3)
	assert.Equal(t, "activate", verbs[0].Verb)
	assert.Nil(t, verbs[0].Request)
	assert.NotNil(t, verbs[1].Request)
	assert.Nil(t, verbs[2].Request)
}

func TestCheckRPC_Errors(t *testing.T) {
	t.Parallel()

	verbs, err := CheckRPC([]any{
		map[string]any{"ok": map[string]any{"response": map[string]any{"type": "string"}}},
		map[string]any{"noresp": map[string]any{"request": map[string]any{"type": "string"}}},
		map[string]any{"emptyreq": map[string]any{"request": map[string]any{}, "response": map[string]any{"type": "string"}}},
		map[string]any{"bad/verb": map[string]any{"response": map[string]any{"type": "string"}}},
		"scalar",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
	require.Len(t, verbs, 1, "valid verbs survive their siblings' errors")
	assert.Equal(t, "ok", verbs[0].Verb)

	var pe *PropertyError
	require.True(t, errors.As(err, &pe))

	_, err = CheckRPC(map[string]any{"x": nil})
	assert.ErrorIs(t, err, ErrInvalidDeclaration)
}
