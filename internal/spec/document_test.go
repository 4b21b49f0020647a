package spec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_DetectsGrammar(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(`{"swagger": "2.0", "info": {"title": "t", "version": "1"}, "paths": {}}`))
	require.NoError(t, err)
	assert.Equal(t, GrammarSwagger2, doc.Grammar)
	assert.Equal(t, "2.0", doc.Version)

	doc, err = Parse([]byte("openapi: 3.0.3\ninfo: {title: t, version: '1'}\npaths: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, GrammarOpenAPI3, doc.Grammar)
	assert.Equal(t, "openapi 3.0", doc.Grammar.String())
}

func TestParse_Rejects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		src  string
		want error
	}{
		{"empty", "  \n", ErrInvalidInput},
		{"malformed", "{ not: [valid", ErrInvalidInput},
		{"array root", "- a\n- b\n", ErrInvalidInput},
		{"no version", "info: {title: t}\n", ErrInvalidInput},
		{"openapi 3.1", "openapi: 3.1.0\ninfo: {title: t, version: '1'}\n", ErrUnimplementedFeature},
		{"swagger 1.2", "swagger: '1.2'\n", ErrUnimplementedFeature},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.src))
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestDocument_JSONKeepsNumericKeys(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `openapi: 3.0.0
info: { title: t, version: 1.0 }
paths:
  /x:
    get:
      responses:
        200: { description: ok }
`)
	data, err := doc.JSON()
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	responses := out["paths"].(map[string]any)["/x"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)
	assert.Contains(t, responses, "200")
}

func TestPairsKeepDeclaredOrder(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, `openapi: 3.0.0
info: { title: t, version: "1" }
paths:
  /z: {}
  /a: {}
  /m: {}
`)
	var keys []string
	for _, p := range pairs(lookup(doc.Root, "paths")) {
		keys = append(keys, p.Key)
	}
	assert.Equal(t, []string{"/z", "/a", "/m"}, keys)
}

func TestError_Formatting(t *testing.T) {
	t.Parallel()

	err := Errorf(InvalidReference, "reference %q does not resolve", "#/a").WithPointer("#/a")
	assert.Equal(t, `reference "#/a" does not resolve`, err.Error())

	err = Errorf(InvalidInput, "bad schema").WithPointer("#/b").WithCause(errors.New("boom"))
	assert.Equal(t, "bad schema (at #/b): boom", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.False(t, errors.Is(err, ErrInvalidReference))

	wrapped := AttachSource(errors.New("plain"), "file:///x.json")
	var se *Error
	require.True(t, errors.As(wrapped, &se))
	assert.Equal(t, "file:///x.json", se.Source)
	assert.Equal(t, InvalidInput, se.Kind)

	assert.Nil(t, AttachSource(nil, "x"))
}
