package codegen

import (
	"bytes"
	"errors"
	"go/parser"
	"go/token"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/swagger2client/internal/spec"
)

const petstore = `openapi: 3.0.0
info:
  title: Pet Store
  version: "1.0"
  description: Sells pets.
servers:
  - url: https://api.example.com/v1
  - url: https://sandbox.example.com/v1
    description: sandbox
paths:
  /pets:
    get:
      operationId: listPets
      summary: List all pets
      parameters:
        - in: query
          name: limit
          schema: {type: integer, format: int32}
        - in: query
          name: tags
          schema: {type: array, items: {type: string}}
        - in: header
          name: X-Trace
          required: true
          schema: {type: string}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items: {$ref: '#/components/schemas/Pet'}
    post:
      operationId: createPet
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: '#/components/schemas/Pet'}
      responses:
        "201": {description: created}
  /pets/{petId}:
    get:
      operationId: getPet
      deprecated: true
      parameters:
        - in: path
          name: petId
          required: true
          schema: {type: integer}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: '#/components/schemas/Pet'}
        default:
          description: error
  /pets/{petId}/photo:
    put:
      parameters:
        - in: path
          name: petId
          required: true
          schema: {type: integer}
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              required: [file]
              properties:
                file: {type: string, format: binary}
                caption: {type: string}
      responses:
        "204": {description: stored}
components:
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id: {type: integer}
        name: {type: string}
        owner: {$ref: '#/components/schemas/Owner'}
        kind: {$ref: '#/components/schemas/Kind'}
    Owner:
      type: object
      properties:
        name: {type: string}
    Kind:
      oneOf:
        - type: string
        - type: integer
`

func assemble(t *testing.T, src string, opts ...AssembleOption) *Artifact {
	t.Helper()
	doc, err := spec.Parse([]byte(src))
	require.NoError(t, err)
	api, err := spec.Normalize(doc)
	require.NoError(t, err)
	art, err := Assemble(api, spec.NewResolver(doc), opts...)
	require.NoError(t, err)
	return art
}

func methodNamed(t *testing.T, art *Artifact, name string) Method {
	t.Helper()
	for _, m := range art.Methods {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("method %s not found", name)
	return Method{}
}

func TestAssemble_Petstore(t *testing.T) {
	t.Parallel()
	var logs bytes.Buffer
	art := assemble(t, petstore, WithAssembleLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	assert.Equal(t, "petstore", art.Package)
	assert.Equal(t, []string{"# Pet Store (Version 1.0)", "Sells pets."}, art.Doc)
	assert.Equal(t, "https://api.example.com/v1", art.BaseURL)
	assert.Equal(t, []ServerDecl{{Name: "SandboxServer", URL: "https://sandbox.example.com/v1", Description: "sandbox"}}, art.Servers)
	assert.Contains(t, logs.String(), "assembled client")

	var names []string
	for _, m := range art.Models {
		names = append(names, m.Identifier)
	}
	assert.ElementsMatch(t, []string{"Pet", "Owner", "Kind"}, names)

	list := methodNamed(t, art, "ListPets")
	assert.Equal(t, "GET", list.HTTPMethod)
	assert.Equal(t, "[]Pet", list.Result)
	assert.False(t, list.ResultPointer)
	require.NotNil(t, list.Params)
	assert.Equal(t, "ListPetsParams", list.Params.Type)
	assert.Equal(t, []Param{
		{Name: "Limit", WireName: "limit", In: "query", Type: "*int32"},
		{Name: "Tags", WireName: "tags", In: "query", Type: "[]string", CollectionFormat: "multi"},
		{Name: "XTrace", WireName: "X-Trace", In: "header", Type: "string", Required: true},
	}, list.Params.Fields)
	assert.Equal(t, []string{"ListPets: List all pets"}, list.Doc)

	create := methodNamed(t, art, "CreatePet")
	require.NotNil(t, create.Body)
	assert.Equal(t, JSONBody, create.Body.Kind)
	assert.Equal(t, "Pet", create.Body.Type)
	assert.Empty(t, create.Result)

	get := methodNamed(t, art, "GetPet")
	assert.Equal(t, "Pet", get.Result)
	assert.True(t, get.ResultPointer)
	require.Len(t, get.PathParams, 1)
	assert.Equal(t, Param{Name: "petId", WireName: "petId", In: "path", Type: "int64", Required: true}, get.PathParams[0])
	assert.Contains(t, get.Doc, "Deprecated: This operation is deprecated.")

	photo := methodNamed(t, art, "PutPetsPetIdPhoto")
	require.NotNil(t, photo.Body)
	assert.Equal(t, MultipartBody, photo.Body.Kind)
	assert.Equal(t, "PutPetsPetIdPhotoForm", photo.Body.Type)
	require.Len(t, photo.Body.Fields, 2)
	assert.Equal(t, "[]byte", photo.Body.Fields[0].Type)
	assert.Equal(t, "*string", photo.Body.Fields[1].Type)
	assert.Len(t, art.Params, 2)
}

func TestAssemble_PackageOverride(t *testing.T) {
	t.Parallel()
	art := assemble(t, petstore, WithPackage("pets"))
	assert.Equal(t, "pets", art.Package)
}

func TestAssemble_DuplicateOperationIDs(t *testing.T) {
	t.Parallel()
	art := assemble(t, `openapi: 3.0.0
info: {title: Dup, version: "1"}
servers: [{url: https://x.test}]
paths:
  /a:
    get:
      operationId: fetch
      responses: {"200": {description: ok}}
  /b:
    get:
      operationId: fetch
      responses: {"200": {description: ok}}
`)
	require.Len(t, art.Methods, 2)
	assert.Equal(t, "Fetch", art.Methods[0].Name)
	assert.Equal(t, "Fetch2", art.Methods[1].Name)
}

func TestAssemble_PropagatesSchemaErrors(t *testing.T) {
	t.Parallel()
	doc, err := spec.Parse([]byte(`openapi: 3.0.0
info: {title: Bad, version: "1"}
servers: [{url: https://x.test}]
paths: {}
components:
  schemas:
    Odd:
      not: {type: string}
`))
	require.NoError(t, err)
	api, err := spec.Normalize(doc)
	require.NoError(t, err)
	_, err = Assemble(api, spec.NewResolver(doc))
	assert.True(t, errors.Is(err, spec.ErrUnimplementedFeature), "got %v", err)
}

func TestRender_Petstore(t *testing.T) {
	t.Parallel()
	files, err := Render(assemble(t, petstore))
	require.NoError(t, err)

	contents := make(map[string]string, len(files))
	fset := token.NewFileSet()
	for _, f := range files {
		_, err := parser.ParseFile(fset, f.Name, f.Content, parser.AllErrors)
		require.NoError(t, err, "%s:\n%s", f.Name, f.Content)
		assert.True(t, strings.HasPrefix(string(f.Content), "// Code generated by swagger2client. DO NOT EDIT."), f.Name)
		contents[f.Name] = string(f.Content)
	}
	require.Len(t, contents, 4)

	doc := contents["doc.go"]
	assert.Contains(t, doc, "// # Pet Store (Version 1.0)")
	assert.Contains(t, doc, "package petstore")

	client := contents["client.go"]
	for _, want := range []string{
		`var DefaultServer = Server{URL: "https://api.example.com/v1"}`,
		`var SandboxServer = Server{URL: "https://sandbox.example.com/v1"}`,
		"func (c *Client) ListPets(ctx context.Context, params *ListPetsParams) (out []Pet, err error) {",
		"func (c *Client) CreatePet(ctx context.Context, body Pet) (err error) {",
		"func (c *Client) GetPet(ctx context.Context, petId int64) (out *Pet, err error) {",
		`path := "/pets/" + url.PathEscape(formatParam(petId))`,
		`header.Add("X-Trace", formatParam(params.XTrace))`,
		`query.Add("limit", formatParam(*params.Limit))`,
		"for _, v := range params.Tags {",
		"payload, contentType, err = encodeForm(fields, true)",
		`fields = append(fields, formField{name: "file", value: body.File, file: true})`,
	} {
		assert.Contains(t, client, want)
	}

	models := contents["models.go"]
	for _, want := range []string{
		"type Pet struct {",
		"type ListPetsParams struct {",
		"func (u Kind) MarshalJSON() ([]byte, error) {",
		"func (u *Kind) UnmarshalJSON(data []byte) error {",
	} {
		assert.Contains(t, models, want)
	}
	assert.Contains(t, contents["transport.go"], "func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {")
}

func TestRender_NoModels(t *testing.T) {
	t.Parallel()
	files, err := Render(assemble(t, `openapi: 3.0.0
info: {title: Ping, version: "1"}
servers: [{url: https://x.test}]
paths:
  /ping:
    get:
      responses: {"204": {description: ok}}
`))
	require.NoError(t, err)
	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"doc.go", "client.go", "transport.go"}, names)
	assert.Contains(t, string(files[1].Content), "func (c *Client) GetPing(ctx context.Context) (err error) {")
}

func TestRender_ParamSerialization(t *testing.T) {
	t.Parallel()
	files, err := Render(assemble(t, `openapi: 3.0.0
info: {title: Search, version: "1"}
servers: [{url: https://x.test}]
paths:
  /search:
    get:
      operationId: search
      parameters:
        - {name: ids, in: query, explode: false, schema: {type: array, items: {type: integer}}}
        - {name: tags, in: query, schema: {type: array, items: {type: string}}}
        - {name: path, in: query, style: pipeDelimited, explode: false, schema: {type: array, items: {type: string}}}
        - {name: X-Flags, in: header, schema: {type: array, items: {type: string}}}
        - {name: session, in: cookie, schema: {type: string}}
        - {name: theme, in: cookie, schema: {type: string}}
      responses: {"204": {description: ok}}
`))
	require.NoError(t, err)
	client := string(files[1].Content)
	for _, want := range []string{
		`query.Add("ids", joinParam(params.Ids, ","))`,
		"for _, v := range params.Tags {",
		`query.Add("path", joinParam(params.Path, "|"))`,
		`header.Add("X-Flags", joinParam(params.XFlags, ","))`,
		"var cookies []string",
		`cookies = append(cookies, "session="`,
		`cookies = append(cookies, "theme="`,
		`header.Set("Cookie", strings.Join(cookies, "; "))`,
	} {
		assert.Contains(t, client, want)
	}
	assert.NotContains(t, client, `header.Add("Cookie"`)
	assert.Contains(t, string(files[2].Content), "func joinParam[T any](values []T, sep string) string {")
}
