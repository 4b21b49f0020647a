package spec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refDoc = `openapi: 3.0.0
info: { title: t, version: "1" }
paths:
  /pets/{id}:
    get:
      responses:
        "200": { description: ok }
components:
  schemas:
    a/b:
      type: string
    "m~n":
      type: integer
    List:
      type: array
      items:
        - type: string
        - type: boolean
`

func mustParse(t *testing.T, src string) *Document {
	t.Helper()
	doc, err := Parse([]byte(src))
	require.NoError(t, err)
	return doc
}

func TestParseReference(t *testing.T) {
	t.Parallel()

	ref, err := ParseReference("#/components/schemas/Pet")
	require.NoError(t, err)
	assert.Equal(t, []string{"components", "schemas", "Pet"}, ref.Segments)
	assert.Equal(t, "Pet", ref.Last())
	assert.Equal(t, "#/components/schemas/Pet", ref.String())

	ref, err = ParseReference("#/paths/~1pets~1%7Bid%7D/a~0b")
	require.NoError(t, err)
	assert.Equal(t, []string{"paths", "/pets/{id}", "a~b"}, ref.Segments)
	assert.Equal(t, "#/paths/~1pets~1{id}/a~0b", ref.Canonical())

	for _, spelling := range []string{"#/definitions/P%65t", "#/definitions/Pet"} {
		alias, err := ParseReference(spelling)
		require.NoError(t, err)
		assert.Equal(t, "#/definitions/Pet", alias.Canonical(), spelling)
	}

	root, err := ParseReference("#")
	require.NoError(t, err)
	assert.Empty(t, root.Segments)
	assert.Equal(t, "", root.Last())
}

func TestParseReference_Rejects(t *testing.T) {
	t.Parallel()

	for _, ptr := range []string{"other.yaml#/Pet", "https://example.com/spec.json#/Pet", "Pet"} {
		_, err := ParseReference(ptr)
		assert.True(t, errors.Is(err, ErrUnsupportedReference), ptr)
		assert.True(t, errors.Is(err, ErrUnimplementedFeature), ptr)
	}

	_, err := ParseReference("#components")
	assert.True(t, errors.Is(err, ErrInvalidReference))
}

func TestJoinEscapesSegments(t *testing.T) {
	t.Parallel()
	ptr := Join("#", "paths", "/pets/{id}", "a~b")
	assert.Equal(t, "#/paths/~1pets~1{id}/a~0b", ptr)

	ref, err := ParseReference(ptr)
	require.NoError(t, err)
	assert.Equal(t, []string{"paths", "/pets/{id}", "a~b"}, ref.Segments)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()
	doc := mustParse(t, refDoc)
	r := NewResolver(doc)

	n, err := r.Resolve("#/components/schemas/a~1b")
	require.NoError(t, err)
	assert.Equal(t, "string", scalar(n, "type"))

	n, err = r.Resolve("#/components/schemas/m~0n")
	require.NoError(t, err)
	assert.Equal(t, "integer", scalar(n, "type"))

	n, err = r.Resolve("#/components/schemas/List/items/1")
	require.NoError(t, err)
	assert.Equal(t, "boolean", scalar(n, "type"))

	n, err = r.Resolve("#/paths/~1pets~1{id}/get")
	require.NoError(t, err)
	assert.NotNil(t, lookup(n, "responses"))

	n, err = r.Resolve("#")
	require.NoError(t, err)
	assert.Same(t, doc.Root, n)
}

func TestResolver_Deterministic(t *testing.T) {
	t.Parallel()
	r := NewResolver(mustParse(t, refDoc))
	a, err := r.Resolve("#/components/schemas/List")
	require.NoError(t, err)
	b, err := r.Resolve("#/components/schemas/List")
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestResolver_Failures(t *testing.T) {
	t.Parallel()
	r := NewResolver(mustParse(t, refDoc))

	for _, ptr := range []string{
		"#/components/schemas/Missing",
		"#/components/schemas/List/items/7",
		"#/components/schemas/List/items/x",
		"#/info/title/deeper",
	} {
		_, err := r.Resolve(ptr)
		var se *Error
		require.True(t, errors.As(err, &se), ptr)
		assert.Equal(t, InvalidReference, se.Kind, ptr)
		assert.Equal(t, ptr, se.Pointer, ptr)
	}

	_, err := r.Resolve("remote.json#/Pet")
	assert.True(t, errors.Is(err, ErrUnsupportedReference))
}
