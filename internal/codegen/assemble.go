package codegen

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/naming"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Artifact is everything the renderer needs to emit one client package.
type Artifact struct {
	Package string
	// Doc holds the package documentation paragraphs.
	Doc     []string
	BaseURL string
	// Servers are the named alternates of the default server.
	Servers []ServerDecl
	Methods []Method
	// Params are the parameter and form structs of the methods.
	Params []*Model
	Models []*Model
}

// ServerDecl is one named server variable.
type ServerDecl struct {
	Name        string
	URL         string
	Description string
}

// Method is one client method, i.e. one operation.
type Method struct {
	Name string
	// Doc holds the doc comment paragraphs.
	Doc        []string
	HTTPMethod string
	Path       string
	PathParams []Param
	// Params is the optional struct of query, header and cookie parameters.
	Params *ParamSet
	Body   *Body
	// Result is the Go type of the success payload; empty when the operation
	// returns nothing.
	Result string
	// ResultJSON is false for raw []byte results.
	ResultJSON bool
	// ResultPointer returns models by pointer.
	ResultPointer bool
}

// ParamSet is the generated struct holding non-path parameters.
type ParamSet struct {
	Type   string
	Fields []Param
}

// HasCookies reports whether any parameter travels in the Cookie header.
func (s *ParamSet) HasCookies() bool {
	for _, p := range s.Fields {
		if p.In == "cookie" {
			return true
		}
	}
	return false
}

// Param is one operation parameter.
type Param struct {
	// Name is the Go identifier: a field name in ParamSet, a parameter name
	// for path parameters.
	Name     string
	WireName string
	In       string
	Type     string
	Required bool
	Doc      string
	// CollectionFormat is set for slice-typed query, header and cookie
	// parameters: csv, ssv, tsv, pipes or multi.
	CollectionFormat string
}

// BodyKind selects how a request body is encoded.
type BodyKind int

const (
	JSONBody BodyKind = iota
	FormBody
	MultipartBody
	RawBody
)

// Body describes the request payload of a method.
type Body struct {
	Kind        BodyKind
	Type        string
	ContentType string
	Required    bool
	// Fields are set for form bodies, in declared order.
	Fields []Param
}

// AssembleOption configures Assemble.
type AssembleOption func(*assembleConfig)

type assembleConfig struct {
	pkg    string
	logger *slog.Logger
}

// WithPackage sets the package name; it defaults to one derived from the
// document title.
func WithPackage(name string) AssembleOption {
	return func(c *assembleConfig) { c.pkg = strings.TrimSpace(name) }
}

// WithAssembleLogger sets the logger used for progress output.
func WithAssembleLogger(l *slog.Logger) AssembleOption {
	return func(c *assembleConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Assemble generates every named schema and every operation of api and
// combines them with the document metadata into an Artifact.
func Assemble(api *spec.API, res *spec.Resolver, opts ...AssembleOption) (*Artifact, error) {
	if api == nil || res == nil {
		return nil, spec.Errorf(spec.InvalidInput, "nothing to assemble")
	}
	cfg := &assembleConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}

	reg := NewRegistry()
	b := NewBuilder(res, reg, WithLogger(cfg.logger))
	a := &Assembler{b: b, reg: reg, methods: make(map[string]int)}

	art := &Artifact{
		Package: cfg.pkg,
		Doc:     packageDoc(api.Metadata),
		BaseURL: api.BaseURL,
	}
	if art.Package == "" {
		art.Package = naming.PackageName(api.Metadata.Title)
	}

	for _, ptr := range api.Schemas {
		ref, err := spec.ParseReference(ptr)
		if err != nil {
			return nil, err
		}
		if _, err := b.Build(spec.SchemaOrRef{Ref: &ref, Location: ptr}, ""); err != nil {
			return nil, err
		}
	}

	for i, s := range api.Servers {
		name := naming.TypeName(s.Description, "")
		if name == "" {
			name = "Alternate" + strconv.Itoa(i+1)
		}
		art.Servers = append(art.Servers, ServerDecl{
			Name:        reg.Claim(name+"Server", "server:"+s.URL, ""),
			URL:         s.URL,
			Description: s.Description,
		})
	}

	for _, op := range api.Operations {
		m, err := a.method(op)
		if err != nil {
			return nil, err
		}
		cfg.logger.Debug("assembled method", "name", m.Name, "method", m.HTTPMethod, "path", m.Path)
		art.Methods = append(art.Methods, m)
	}
	art.Params = a.params
	art.Models = reg.Models()
	cfg.logger.Info("assembled client", "package", art.Package, "methods", len(art.Methods), "models", len(art.Models))
	return art, nil
}

// Assembler turns operations into methods. It shares one Builder across all
// operations of a run.
type Assembler struct {
	b       *Builder
	reg     *Registry
	methods map[string]int
	params  []*Model
}

func (a *Assembler) method(op spec.Operation) (Method, error) {
	raw := op.OperationID
	if raw == "" {
		raw = naming.OperationName(string(op.Method), op.Path)
	}
	name := unique(naming.TypeName(raw, "Call"), a.methods)

	m := Method{
		Name:       name,
		Doc:        methodDoc(name, op),
		HTTPMethod: strings.ToUpper(string(op.Method)),
		Path:       op.Path,
	}
	if m.HTTPMethod == "" {
		m.HTTPMethod = http.MethodGet
	}

	var set []Param
	used := make(map[string]int)
	for _, local := range methodLocals {
		used[local] = 1
	}
	for _, p := range op.Parameters {
		d, err := a.b.Build(p.Schema, name+naming.FieldName(p.Name))
		if err != nil {
			return Method{}, err
		}
		param := Param{WireName: p.Name, In: p.In, Type: typeOf(d), Required: p.Required, Doc: p.Description}
		if p.In == "path" {
			param.Name = unique(naming.ParamName(p.Name), used)
			m.PathParams = append(m.PathParams, param)
			continue
		}
		if kindOf(param.Type) == sliceValue {
			param.CollectionFormat = p.CollectionFormat
		}
		if !p.Required && !nilable(param.Type) {
			param.Type = "*" + param.Type
		}
		set = append(set, param)
	}
	if len(set) > 0 {
		fields := make(map[string]int, len(set))
		for i := range set {
			set[i].Name = unique(naming.FieldName(set[i].WireName), fields)
		}
		typ := a.reg.Claim(name+"Params", "params:"+op.Location, "")
		m.Params = &ParamSet{Type: typ, Fields: set}
		a.params = append(a.params, paramsModel(typ, "holds the query, header and cookie parameters of "+name+".", set))
	}

	if op.RequestBody != nil {
		body, err := a.body(name, op)
		if err != nil {
			return Method{}, err
		}
		m.Body = body
	}

	if r := successResponse(op.Responses); r != nil && r.Schema != nil {
		if isJSON(r.ContentType) {
			d, err := a.b.Build(*r.Schema, name+"Response")
			if err != nil {
				return Method{}, err
			}
			m.Result, m.ResultJSON, m.ResultPointer = typeOf(d), true, isModelTyped(d)
		} else {
			m.Result = "[]byte"
		}
	}
	return m, nil
}

// methodLocals are identifiers the generated method bodies declare or use.
var methodLocals = []string{
	"c", "ctx", "params", "body", "out", "err", "path", "query", "header",
	"payload", "contentType", "data", "fields", "v",
	"bytes", "context", "fmt", "http", "json", "strings", "time", "url",
	"formatParam", "encodeForm", "formField",
}

func (a *Assembler) body(name string, op spec.Operation) (*Body, error) {
	rb := op.RequestBody
	body := &Body{ContentType: rb.ContentType, Required: rb.Required}
	switch {
	case rb.IsForm():
		body.Kind = FormBody
		if strings.HasPrefix(strings.ToLower(rb.ContentType), "multipart/") {
			body.Kind = MultipartBody
		}
		fields := make(map[string]int, len(rb.Form))
		for _, f := range rb.Form {
			d, err := a.b.Build(f.Schema, name+naming.FieldName(f.Name))
			if err != nil {
				return nil, err
			}
			p := Param{
				Name:     unique(naming.FieldName(f.Name), fields),
				WireName: f.Name,
				In:       "formData",
				Type:     typeOf(d),
				Required: f.Required,
				Doc:      f.Description,
			}
			if !p.Required && !nilable(p.Type) {
				p.Type = "*" + p.Type
			}
			body.Fields = append(body.Fields, p)
		}
		body.Type = a.reg.Claim(name+"Form", "form:"+op.Location, "")
		a.params = append(a.params, paramsModel(body.Type, "holds the form fields of "+name+".", body.Fields))
	case rb.Schema != nil && rb.IsJSON():
		body.Kind = JSONBody
		d, err := a.b.Build(*rb.Schema, name+"Request")
		if err != nil {
			return nil, err
		}
		body.Type = typeOf(d)
		if isModelTyped(d) && !rb.Required {
			body.Type = "*" + body.Type
		}
	default:
		body.Kind = RawBody
		body.Type = "[]byte"
		if body.ContentType == "" {
			body.ContentType = "application/octet-stream"
		}
	}
	return body, nil
}

func paramsModel(name, doc string, fields []Param) *Model {
	m := &Model{Identifier: name, Kind: StructModel, Description: name + " " + doc}
	for _, p := range fields {
		m.Fields = append(m.Fields, Field{
			Name:        p.Name,
			JSONName:    p.WireName,
			Type:        p.Type,
			Required:    p.Required,
			Description: p.Doc,
		})
	}
	return m
}

// successResponse picks the first 2xx response in declared order, falling
// back to "default" when the operation declares no 2xx response.
func successResponse(rs []spec.Response) *spec.Response {
	var fallback *spec.Response
	for i := range rs {
		s := strings.ToUpper(rs[i].Status)
		if s == "2XX" || len(s) == 3 && s[0] == '2' {
			return &rs[i]
		}
		if s == "DEFAULT" && fallback == nil {
			fallback = &rs[i]
		}
	}
	return fallback
}

func isJSON(mime string) bool {
	mime = strings.ToLower(mime)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.TrimSpace(mime)
	return mime == "" || mime == "application/json" || strings.HasSuffix(mime, "+json") || strings.HasSuffix(mime, "/json")
}

// packageDoc renders "# Title (Version X)", the description, then the terms
// of service link.
func packageDoc(md spec.Metadata) []string {
	var out []string
	if md.Title != "" {
		head := "# " + md.Title
		if md.Version != "" {
			head += " (Version " + md.Version + ")"
		}
		out = append(out, head)
	}
	if md.Description != "" {
		out = append(out, md.Description)
	}
	if md.TermsOfService != "" {
		out = append(out, "**[Terms of Service]("+md.TermsOfService+")**")
	}
	return out
}

func methodDoc(name string, op spec.Operation) []string {
	var out []string
	first := name + " calls " + strings.ToUpper(string(op.Method)) + " " + op.Path + "."
	if op.Summary != "" {
		first = name + ": " + op.Summary
	}
	out = append(out, first)
	if op.Description != "" && op.Description != op.Summary {
		out = append(out, op.Description)
	}
	if op.ExternalDocs != "" {
		out = append(out, "See "+op.ExternalDocs)
	}
	if op.Deprecated {
		out = append(out, "Deprecated: This operation is deprecated.")
	}
	return out
}
