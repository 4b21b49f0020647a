package generate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2client/internal/spec"
)

const swaggerDoc = `{
  "swagger": "2.0",
  "info": {"title": "Pet Store", "version": "2.0"},
  "host": "petstore.example.com",
  "basePath": "/v2",
  "schemes": ["https"],
  "paths": {
    "/pet/{petId}": {
      "get": {
        "operationId": "getPetById",
        "tags": ["pet"],
        "produces": ["application/json"],
        "parameters": [{"name": "petId", "in": "path", "required": true, "type": "integer", "format": "int64"}],
        "responses": {"200": {"description": "ok", "schema": {"$ref": "#/definitions/Pet"}}}
      }
    },
    "/store/inventory": {
      "get": {
        "operationId": "getInventory",
        "tags": ["store"],
        "responses": {"200": {"description": "ok", "schema": {"type": "object", "additionalProperties": {"type": "integer", "format": "int32"}}}}
      }
    }
  },
  "definitions": {
    "Pet": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "id": {"type": "integer", "format": "int64"},
        "name": {"type": "string"},
        "category": {"$ref": "#/definitions/Category"}
      }
    },
    "Category": {
      "type": "object",
      "properties": {"id": {"type": "integer"}, "name": {"type": "string"}}
    }
  }
}`

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

func TestRun_FileSwagger2(t *testing.T) {
	t.Parallel()
	root := writeDoc(t, "petstore.json", swaggerDoc)

	res, err := Run(context.Background(), Options{Input: "file://petstore.json", Root: root})
	require.NoError(t, err)
	assert.Equal(t, "https://petstore.example.com/v2", res.API.BaseURL)
	assert.Equal(t, "petstore", res.Artifact.Package)
	require.Len(t, res.Artifact.Methods, 2)
	assert.Equal(t, "GetPetById", res.Artifact.Methods[0].Name)
	assert.Equal(t, "map[string]int32", res.Artifact.Methods[1].Result)

	names := make([]string, 0, len(res.Files))
	for _, f := range res.Files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"doc.go", "client.go", "transport.go", "models.go"}, names)
}

func TestRun_OptionsReachThePipeline(t *testing.T) {
	t.Parallel()
	root := writeDoc(t, "petstore.json", swaggerDoc)

	res, err := Run(context.Background(), Options{
		Input:       "file://petstore.json",
		Root:        root,
		BaseURL:     "http://localhost:8080",
		Package:     "store",
		IncludeTags: []string{"store"},
		Methods:     []string{"GET", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", res.Artifact.BaseURL)
	assert.Equal(t, "store", res.Artifact.Package)
	require.Len(t, res.Artifact.Methods, 1)
	assert.Equal(t, "GetInventory", res.Artifact.Methods[0].Name)
}

func TestRun_HTTP(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(swaggerDoc))
	}))
	defer srv.Close()

	res, err := Run(context.Background(), Options{Input: srv.URL + "/swagger.json"})
	require.NoError(t, err)
	assert.Len(t, res.Artifact.Models, 2)
}

func TestRun_ErrorsCarrySource(t *testing.T) {
	t.Parallel()
	root := writeDoc(t, "broken.yaml", "openapi: 3.0.0\ninfo: {title: B, version: '1'}\nservers: [{url: https://x.test}]\npaths:\n  /a:\n    get:\n      responses:\n        '200':\n          description: ok\n          content:\n            application/json:\n              schema: {$ref: '#/components/schemas/Nope'}\n")

	cases := []struct {
		name   string
		opts   Options
		target error
	}{
		{"empty input", Options{}, spec.ErrInvalidInput},
		{"no scheme", Options{Input: "broken.yaml"}, spec.ErrInvalidInput},
		{"bad protocol", Options{Input: "s3://bucket/spec.yaml"}, spec.ErrUnsupportedProtocol},
		{"missing file", Options{Input: "file://absent.yaml", Root: root}, spec.ErrResourceLoadFailed},
		{"dangling reference", Options{Input: "file://broken.yaml", Root: root}, spec.ErrInvalidReference},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Run(context.Background(), tc.opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.target), "got %v", err)
			var se *spec.Error
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.opts.Input, se.Source)
		})
	}
}
