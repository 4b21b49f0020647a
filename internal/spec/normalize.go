package spec

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

const baseURLHint = "supply a base URL explicitly"

// Option configures Normalize.
type Option func(*normalizeConfig)

type normalizeConfig struct {
	baseURL     string
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[HttpMethod]struct{}
	pathRes     []*regexp.Regexp
	err         error
}

// WithBaseURL overrides whatever base URL the document declares.
func WithBaseURL(u string) Option {
	return func(c *normalizeConfig) { c.baseURL = strings.TrimSpace(u) }
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) Option {
	return func(c *normalizeConfig) { c.includeTags = addTags(c.includeTags, tags) }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) Option {
	return func(c *normalizeConfig) { c.excludeTags = addTags(c.excludeTags, tags) }
}

func addTags(set map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if set == nil {
			set = make(map[string]struct{}, len(tags))
		}
		set[t] = struct{}{}
	}
	return set
}

// WithMethods keeps only operations using one of the provided HTTP methods.
func WithMethods(methods []HttpMethod) Option {
	return func(c *normalizeConfig) {
		for _, m := range methods {
			if c.methods == nil {
				c.methods = make(map[HttpMethod]struct{}, len(methods))
			}
			c.methods[HttpMethod(strings.ToLower(string(m)))] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only operations whose path matches at least one of
// the given regular expressions.
func WithPathPatterns(patterns []string) Option {
	return func(c *normalizeConfig) {
		for _, p := range patterns {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				if c.err == nil {
					c.err = Errorf(InvalidInput, "invalid path pattern %q", p).WithCause(err)
				}
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// Normalize converts a parsed document of either grammar into the
// version-agnostic API model. Operations come out in declared path order and,
// within a path, in declared method order.
func Normalize(doc *Document, opts ...Option) (*API, error) {
	if doc == nil || doc.Root == nil {
		return nil, Errorf(InvalidInput, "nil document")
	}
	cfg := &normalizeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	n := &normalizer{doc: doc, res: NewResolver(doc), cfg: cfg}
	api := &API{Grammar: doc.Grammar}

	var info openapi3.Info
	if err := decodeKeys(lookup(doc.Root, "info"), &info, "title", "version", "description", "termsOfService"); err != nil {
		return nil, err.WithPointer("#/info")
	}
	api.Metadata = Metadata{
		Title:          safeStr(info.Title),
		Version:        safeStr(info.Version),
		Description:    safeStr(info.Description),
		TermsOfService: safeStr(info.TermsOfService),
	}

	var err error
	switch doc.Grammar {
	case GrammarSwagger2:
		api.BaseURL, err = n.baseURLv2()
	case GrammarOpenAPI3:
		api.BaseURL, api.Servers, err = n.serversV3()
	default:
		err = Errorf(InvalidInput, "unknown document grammar")
	}
	if err != nil {
		return nil, err
	}

	schemasPtr := []string{"components", "schemas"}
	if doc.Grammar == GrammarSwagger2 {
		schemasPtr = []string{"definitions"}
	}
	container := doc.Root
	for _, s := range schemasPtr {
		container = lookup(container, s)
	}
	for _, p := range pairs(container) {
		api.Schemas = append(api.Schemas, Join("#", append(schemasPtr, p.Key)...))
	}

	for _, pi := range pairs(lookup(doc.Root, "paths")) {
		if strings.HasPrefix(pi.Key, "x-") {
			continue
		}
		ops, err := n.pathItem(pi.Key, pi.Value)
		if err != nil {
			return nil, err
		}
		api.Operations = append(api.Operations, ops...)
	}
	return api, nil
}

type normalizer struct {
	doc *Document
	res *Resolver
	cfg *normalizeConfig
}

func (n *normalizer) baseURLv2() (string, error) {
	if n.cfg.baseURL != "" {
		return n.cfg.baseURL, nil
	}
	var t openapi2.T
	if err := decodeKeys(n.doc.Root, &t, "schemes", "host", "basePath"); err != nil {
		return "", err
	}
	scheme := "https"
	if len(t.Schemes) > 0 {
		scheme = strings.ToLower(strings.TrimSpace(t.Schemes[0]))
	}
	if scheme == "ws" || scheme == "wss" {
		return "", Errorf(UnimplementedFeature, "the %q scheme is not supported", scheme).
			WithPointer("#/schemes/0").
			WithHint(baseURLHint)
	}
	host := safeStr(t.Host)
	if host == "" {
		return "", Errorf(ConfigurationIncomplete, "could not determine base URL: document has no host").
			WithHint(baseURLHint)
	}
	return scheme + "://" + host + safeStr(t.BasePath), nil
}

func (n *normalizer) serversV3() (string, []Server, error) {
	var t struct {
		Servers openapi3.Servers `json:"servers"`
	}
	if err := decodeKeys(n.doc.Root, &t, "servers"); err != nil {
		return "", nil, err.WithPointer("#/servers")
	}
	var servers []Server
	for _, s := range t.Servers {
		if s == nil || safeStr(s.URL) == "" {
			continue
		}
		u := safeStr(s.URL)
		for name, v := range s.Variables {
			if v != nil {
				u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
			}
		}
		servers = append(servers, Server{URL: u, Description: safeStr(s.Description)})
	}
	if n.cfg.baseURL != "" {
		return n.cfg.baseURL, servers, nil
	}
	if len(servers) == 0 {
		return "", nil, Errorf(ConfigurationIncomplete, "could not determine base URL: document declares no servers").
			WithHint(baseURLHint)
	}
	return servers[0].URL, servers[1:], nil
}

func (n *normalizer) pathItem(path string, item *yaml.Node) ([]Operation, error) {
	itemLoc := Join("#", "paths", path)
	if ref := scalar(item, "$ref"); ref != "" {
		resolved, err := n.res.Resolve(ref)
		if err != nil {
			return nil, err
		}
		item, itemLoc = resolved, ref
	}
	if item == nil || item.Kind != yaml.MappingNode {
		return nil, Errorf(InvalidInput, "path item must be an object").WithPointer(itemLoc)
	}
	if !n.allowPath(path) {
		return nil, nil
	}

	base, err := n.parameters(lookup(item, "parameters"), Join(itemLoc, "parameters"))
	if err != nil {
		return nil, err
	}

	var out []Operation
	for _, p := range pairs(item) {
		m := HttpMethod(strings.ToLower(p.Key))
		if !isMethod(m) || !n.allowMethod(m) {
			continue
		}
		loc := Join(itemLoc, p.Key)
		op, err := n.operation(path, m, p.Value, loc, base)
		if err != nil {
			return nil, err
		}
		if !n.allowTags(op.Tags) {
			continue
		}
		out = append(out, op)
	}
	return out, nil
}

// opRecord is the part of an operation decoded through the typed models.
type opRecord struct {
	OperationID  string
	Summary      string
	Description  string
	Deprecated   bool
	Tags         []string
	ExternalDocs string
}

var recordKeys = []string{"operationId", "summary", "description", "deprecated", "tags", "externalDocs"}

func (n *normalizer) record(node *yaml.Node) (opRecord, *Error) {
	var r opRecord
	if n.doc.Grammar == GrammarSwagger2 {
		var op openapi2.Operation
		if err := decodeKeys(node, &op, recordKeys...); err != nil {
			return r, err
		}
		r = opRecord{op.OperationID, op.Summary, op.Description, op.Deprecated, op.Tags, ""}
		if op.ExternalDocs != nil {
			r.ExternalDocs = op.ExternalDocs.URL
		}
	} else {
		var op openapi3.Operation
		if err := decodeKeys(node, &op, recordKeys...); err != nil {
			return r, err
		}
		r = opRecord{op.OperationID, op.Summary, op.Description, op.Deprecated, op.Tags, ""}
		if op.ExternalDocs != nil {
			r.ExternalDocs = op.ExternalDocs.URL
		}
	}
	tags := r.Tags[:0:0]
	for _, t := range r.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	r.Tags = tags
	return r, nil
}

func (n *normalizer) operation(path string, m HttpMethod, node *yaml.Node, loc string, base []Parameter) (Operation, error) {
	if node == nil || node.Kind != yaml.MappingNode {
		return Operation{}, Errorf(InvalidInput, "operation must be an object").WithPointer(loc)
	}
	rec, rerr := n.record(node)
	if rerr != nil {
		return Operation{}, rerr.WithPointer(loc)
	}
	op := Operation{
		Path:         path,
		Method:       m,
		OperationID:  safeStr(rec.OperationID),
		Summary:      safeStr(rec.Summary),
		Description:  safeStr(rec.Description),
		ExternalDocs: safeStr(rec.ExternalDocs),
		Deprecated:   rec.Deprecated,
		Tags:         rec.Tags,
		Location:     loc,
	}

	own, err := n.parameters(lookup(node, "parameters"), Join(loc, "parameters"))
	if err != nil {
		return Operation{}, err
	}
	params := mergeParameters(base, own)

	if n.doc.Grammar == GrammarSwagger2 {
		var rest []Parameter
		for _, p := range params {
			switch p.In {
			case "body":
				s := p.Schema
				op.RequestBody = &RequestBody{
					Description: p.Description,
					Required:    p.Required,
					ContentType: pickMime(n.consumes(node), "application/json"),
					Schema:      &s,
				}
			case "formData":
				if op.RequestBody == nil {
					op.RequestBody = &RequestBody{}
				}
				op.RequestBody.Form = append(op.RequestBody.Form, p)
				if p.Required {
					op.RequestBody.Required = true
				}
			default:
				rest = append(rest, p)
			}
		}
		if b := op.RequestBody; b != nil && b.IsForm() {
			b.ContentType = "application/x-www-form-urlencoded"
			if containsString(n.consumes(node), "multipart/form-data") || hasFileParam(b.Form) {
				b.ContentType = "multipart/form-data"
			}
		}
		params = rest
	} else if rb := lookup(node, "requestBody"); rb != nil {
		body, err := n.requestBodyV3(rb, Join(loc, "requestBody"))
		if err != nil {
			return Operation{}, err
		}
		op.RequestBody = body
	}
	op.Parameters = params

	for _, p := range pairs(lookup(node, "responses")) {
		if strings.HasPrefix(p.Key, "x-") {
			continue
		}
		r, err := n.response(node, p.Key, p.Value, Join(loc, "responses", p.Key))
		if err != nil {
			return Operation{}, err
		}
		op.Responses = append(op.Responses, r)
	}
	return op, nil
}

func (n *normalizer) parameters(list *yaml.Node, loc string) ([]Parameter, error) {
	if list == nil {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, Errorf(InvalidInput, "parameters must be an array").WithPointer(loc)
	}
	out := make([]Parameter, 0, len(list.Content))
	for i, raw := range list.Content {
		node, ploc, err := n.deref(unwrap(raw), Join(loc, itoa(i)))
		if err != nil {
			return nil, err
		}
		p := Parameter{
			Name:        scalar(node, "name"),
			In:          scalar(node, "in"),
			Description: scalar(node, "description"),
			Required:    flag(node, "required"),
		}
		if p.Name == "" || p.In == "" {
			return nil, Errorf(InvalidInput, "parameter requires both name and in").WithPointer(ploc)
		}
		if p.In == "path" {
			p.Required = true
		}
		switch {
		case lookup(node, "schema") != nil:
			p.Schema, err = NewSchemaOrRef(lookup(node, "schema"), Join(ploc, "schema"))
		case lookup(node, "content") != nil:
			_, media, mloc := pickMedia(lookup(node, "content"), Join(ploc, "content"))
			p.Schema, err = NewSchemaOrRef(lookup(media, "schema"), Join(mloc, "schema"))
		case n.doc.Grammar == GrammarSwagger2:
			// 2.x non-body parameters describe their type inline.
			p.Schema = SchemaOrRef{Node: node, Location: ploc}
		}
		if err != nil {
			return nil, err
		}
		p.CollectionFormat = n.collectionFormat(node, p.In)
		out = append(out, p)
	}
	return out, nil
}

// collectionFormat maps the array serialization of a parameter onto the 2.x
// collectionFormat names. 3.0 style/explode pairs are translated; headers and
// path parameters always use simple comma separation.
func (n *normalizer) collectionFormat(node *yaml.Node, in string) string {
	if n.doc.Grammar == GrammarSwagger2 {
		if f := scalar(node, "collectionFormat"); f != "" {
			return f
		}
		return "csv"
	}
	if in != "query" && in != "cookie" {
		return "csv"
	}
	style := scalar(node, "style")
	explode := style == "" || style == "form"
	if lookup(node, "explode") != nil {
		explode = flag(node, "explode")
	}
	switch {
	case explode:
		return "multi"
	case style == "spaceDelimited":
		return "ssv"
	case style == "pipeDelimited":
		return "pipes"
	default:
		return "csv"
	}
}

func (n *normalizer) requestBodyV3(node *yaml.Node, loc string) (*RequestBody, error) {
	node, loc, err := n.deref(node, loc)
	if err != nil {
		return nil, err
	}
	mime, media, mloc := pickMedia(lookup(node, "content"), Join(loc, "content"))
	body := &RequestBody{
		Description: scalar(node, "description"),
		Required:    flag(node, "required"),
		ContentType: mime,
	}
	if media == nil {
		return body, nil
	}
	sor, err := NewSchemaOrRef(lookup(media, "schema"), Join(mloc, "schema"))
	if err != nil {
		return nil, err
	}
	if isFormMime(mime) {
		form, ok, err := n.formFields(sor)
		if err != nil {
			return nil, err
		}
		if ok {
			body.Form = form
			return body, nil
		}
	}
	if !sor.IsZero() {
		body.Schema = &sor
	}
	return body, nil
}

// formFields expands an object schema into form parameters. It reports false
// when the schema is not an object with properties.
func (n *normalizer) formFields(sor SchemaOrRef) ([]Parameter, bool, error) {
	node, loc := sor.Node, sor.Location
	if sor.IsRef() {
		resolved, err := n.res.ResolveReference(*sor.Ref)
		if err != nil {
			return nil, false, err
		}
		node, loc = resolved, sor.Ref.Pointer
	}
	if node == nil {
		return nil, false, nil
	}
	s, err := Classify(node, loc)
	if err != nil {
		return nil, false, err
	}
	obj, ok := s.(*ObjectSchema)
	if !ok || len(obj.Properties) == 0 {
		return nil, false, nil
	}
	out := make([]Parameter, 0, len(obj.Properties))
	for _, p := range obj.Properties {
		out = append(out, Parameter{
			Name:     p.Name,
			In:       "formData",
			Required: obj.IsRequired(p.Name),
			Schema:   p.Schema,
		})
	}
	return out, true, nil
}

func (n *normalizer) response(op *yaml.Node, status string, node *yaml.Node, loc string) (Response, error) {
	node, loc, err := n.deref(node, loc)
	if err != nil {
		return Response{}, err
	}
	r := Response{Status: status, Description: scalar(node, "description")}
	var schema *yaml.Node
	var sloc string
	if n.doc.Grammar == GrammarSwagger2 {
		schema, sloc = lookup(node, "schema"), Join(loc, "schema")
		if schema != nil {
			r.ContentType = pickMime(n.produces(op), "application/json")
		}
	} else {
		mime, media, mloc := pickMedia(lookup(node, "content"), Join(loc, "content"))
		r.ContentType = mime
		schema, sloc = lookup(media, "schema"), Join(mloc, "schema")
	}
	if schema != nil {
		sor, err := NewSchemaOrRef(schema, sloc)
		if err != nil {
			return Response{}, err
		}
		r.Schema = &sor
	}
	return r, nil
}

// deref follows a $ref on parameters, bodies and responses. It returns the
// node and the pointer it was found at.
func (n *normalizer) deref(node *yaml.Node, loc string) (*yaml.Node, string, error) {
	ref := scalar(node, "$ref")
	if ref == "" {
		return node, loc, nil
	}
	resolved, err := n.res.Resolve(ref)
	if err != nil {
		return nil, "", err
	}
	return resolved, ref, nil
}

func (n *normalizer) consumes(op *yaml.Node) []string {
	if list := stringList(op, "consumes"); len(list) > 0 {
		return list
	}
	return stringList(n.doc.Root, "consumes")
}

func (n *normalizer) produces(op *yaml.Node) []string {
	if list := stringList(op, "produces"); len(list) > 0 {
		return list
	}
	return stringList(n.doc.Root, "produces")
}

func (n *normalizer) allowPath(path string) bool {
	if len(n.cfg.pathRes) == 0 {
		return true
	}
	for _, re := range n.cfg.pathRes {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func (n *normalizer) allowMethod(m HttpMethod) bool {
	if len(n.cfg.methods) == 0 {
		return true
	}
	_, ok := n.cfg.methods[m]
	return ok
}

func (n *normalizer) allowTags(tags []string) bool {
	if len(n.cfg.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := n.cfg.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := n.cfg.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

// mergeParameters overlays operation-level parameters on path-level ones,
// matching by (in, name). Path-level order comes first.
func mergeParameters(base, own []Parameter) []Parameter {
	out := make([]Parameter, 0, len(base)+len(own))
	index := make(map[string]int, len(base)+len(own))
	for _, list := range [][]Parameter{base, own} {
		for _, p := range list {
			k := paramKey(p.In, p.Name)
			if i, ok := index[k]; ok {
				out[i] = p
				continue
			}
			index[k] = len(out)
			out = append(out, p)
		}
	}
	return out
}

func paramKey(in, name string) string { return in + ":" + name }

func safeStr(s string) string { return strings.TrimSpace(s) }

func isMethod(m HttpMethod) bool {
	for _, x := range methodOrder {
		if x == m {
			return true
		}
	}
	return false
}

func hasFileParam(params []Parameter) bool {
	for _, p := range params {
		if p.Schema.Node != nil && scalar(p.Schema.Node, "type") == "file" {
			return true
		}
	}
	return false
}

// pickMedia chooses a JSON media type when one is offered, else the first.
func pickMedia(content *yaml.Node, loc string) (string, *yaml.Node, string) {
	entries := pairs(content)
	if len(entries) == 0 {
		return "", nil, loc
	}
	chosen := entries[0]
	for _, e := range entries {
		if isJSONMime(e.Key) {
			chosen = e
			break
		}
	}
	return chosen.Key, chosen.Value, Join(loc, chosen.Key)
}

func pickMime(list []string, fallback string) string {
	for _, m := range list {
		if isJSONMime(m) {
			return m
		}
	}
	if len(list) > 0 {
		return list[0]
	}
	return fallback
}

func isJSONMime(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime == "application/json" || strings.HasSuffix(mime, "+json") || strings.HasSuffix(mime, "/json")
}

func isFormMime(mime string) bool {
	mime = strings.ToLower(mime)
	return strings.HasPrefix(mime, "application/x-www-form-urlencoded") || strings.HasPrefix(mime, "multipart/form-data")
}

// decodeKeys decodes the listed keys of a mapping node into one of the typed
// kin-openapi models.
func decodeKeys(n *yaml.Node, dst any, keys ...string) *Error {
	if n == nil {
		return nil
	}
	subset := make(map[string]any, len(keys))
	for _, k := range keys {
		v := lookup(n, k)
		if v == nil {
			continue
		}
		pv, err := plain(v)
		if err != nil {
			return Errorf(InvalidInput, "cannot decode %q", k).WithCause(err)
		}
		subset[k] = pv
	}
	data, err := json.Marshal(subset)
	if err != nil {
		return Errorf(InvalidInput, "cannot encode %v", keys).WithCause(err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return Errorf(InvalidInput, "malformed %s", strings.Join(keys, "/")).WithCause(err)
	}
	return nil
}
