package codegen

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mark3labs/swagger2client/internal/naming"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Builder generates declarations for schemas, caching every result in its
// Registry so that each pointer is generated at most once per run.
type Builder struct {
	res    *spec.Resolver
	reg    *Registry
	logger *slog.Logger
	// aliasing holds pointers whose node is itself a $ref, while the chain
	// is being followed.
	aliasing map[string]bool
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder reading from res and recording into reg.
func NewBuilder(res *spec.Resolver, reg *Registry, opts ...BuilderOption) *Builder {
	b := &Builder{
		res:      res,
		reg:      reg,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		aliasing: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry returns the registry the builder records into.
func (b *Builder) Registry() *Registry { return b.reg }

// Build returns the declaration for src. base is the Go identifier used to
// name inline models; referenced schemas are named after their naming hint
// or their last pointer segment instead.
func (b *Builder) Build(src spec.SchemaOrRef, base string) (Declaration, error) {
	if src.IsRef() {
		return b.buildRef(*src.Ref, base)
	}
	if base == "" {
		base = "Model"
	}
	switch {
	case src.Node == nil:
		return &Property{Identifier: base, Type: "any"}, nil
	default:
		return b.buildInline(src, base)
	}
}

func (b *Builder) buildRef(ref spec.Reference, qualifier string) (Declaration, error) {
	ptr := ref.Canonical()
	if d, ok := b.reg.Lookup(ptr); ok {
		return d, nil
	}
	if b.aliasing[ptr] {
		return nil, spec.Errorf(spec.InvalidReference, "reference %q refers to itself", ptr).WithPointer(ptr)
	}
	if name, ok := b.reg.InProgress(ptr); ok {
		b.logger.Debug("deferring cyclic reference", "pointer", ptr, "type", name)
		b.reg.Defer(ptr)
		return &Property{Identifier: name, Type: name, Indirect: true, Pointer: ptr}, nil
	}

	node, err := b.res.ResolveReference(ref)
	if err != nil {
		return nil, err
	}
	target, err := spec.NewSchemaOrRef(node, ptr)
	if err != nil {
		return nil, err
	}
	if target.IsRef() {
		b.aliasing[ptr] = true
		d, err := b.buildRef(*target.Ref, qualifier)
		delete(b.aliasing, ptr)
		if err != nil {
			return nil, err
		}
		b.reg.Alias(ptr, d)
		return d, nil
	}

	s, err := spec.Classify(node, ptr)
	if err != nil {
		return nil, err
	}
	if isPrimitive(s) {
		d, err := b.dispatch(s, "")
		if err != nil {
			return nil, err
		}
		b.reg.Finish(ptr, d)
		return d, nil
	}

	hint := s.Annotations().NameHint
	if hint == "" {
		hint = ref.Last()
	}
	name := b.reg.Begin(ptr, naming.TypeName(hint, "Model"), qualifier)
	b.logger.Debug("generating schema", "pointer", ptr, "type", name)
	d, err := b.dispatch(s, name)
	if err != nil {
		b.reg.Abort(ptr)
		return nil, err
	}
	if p, ok := d.(*Property); ok && b.reg.Deferred(ptr) {
		d = &Model{Identifier: name, Pointer: ptr, Kind: AliasModel, Elem: p.Type, Description: describe(s)}
	}
	b.reg.Finish(ptr, d)
	return d, nil
}

func (b *Builder) buildInline(src spec.SchemaOrRef, base string) (Declaration, error) {
	if d, ok := b.reg.Lookup(src.Location); ok {
		return d, nil
	}
	s, err := spec.Classify(src.Node, src.Location)
	if err != nil {
		return nil, err
	}
	if !producesModel(s) {
		return b.dispatch(s, base)
	}
	name := b.reg.Begin(src.Location, base, "")
	d, err := b.dispatch(s, name)
	if err != nil {
		b.reg.Abort(src.Location)
		return nil, err
	}
	b.reg.Finish(src.Location, d)
	return d, nil
}

// dispatch generates one classified schema. name is the identifier of the
// model when one is produced, and the base name of nested inline models.
func (b *Builder) dispatch(s spec.Schema, name string) (Declaration, error) {
	switch s := s.(type) {
	case *spec.StringSchema:
		return &Property{Identifier: name, Type: stringType(s.Format)}, nil
	case *spec.NumberSchema:
		if s.Format == "float" {
			return &Property{Identifier: name, Type: "float32"}, nil
		}
		return &Property{Identifier: name, Type: "float64"}, nil
	case *spec.IntegerSchema:
		if s.Format == "int32" {
			return &Property{Identifier: name, Type: "int32"}, nil
		}
		return &Property{Identifier: name, Type: "int64"}, nil
	case *spec.BooleanSchema:
		return &Property{Identifier: name, Type: "bool"}, nil
	case *spec.AnySchema:
		return &Property{Identifier: name, Type: "any"}, nil
	case *spec.ArraySchema:
		elem, err := b.Build(s.Items, name+"Item")
		if err != nil {
			return nil, err
		}
		return &Property{Identifier: name, Type: "[]" + typeOf(elem)}, nil
	case *spec.ObjectSchema:
		if len(s.Properties) > 0 {
			return b.object(s, name)
		}
		if s.Additional != nil {
			elem, err := b.Build(*s.Additional, name+"Value")
			if err != nil {
				return nil, err
			}
			return &Property{Identifier: name, Type: "map[string]" + typeOf(elem)}, nil
		}
		return &Property{Identifier: name, Type: "map[string]any"}, nil
	case *spec.UnionSchema:
		if s.Kind == spec.AllOf {
			return b.allOf(s, name)
		}
		return b.union(s, name)
	case *spec.NotSchema:
		return nil, spec.Errorf(spec.UnimplementedFeature, "schemas using \"not\" cannot be represented").
			WithPointer(s.Location).
			WithHint("remove the \"not\" constraint or replace it with an explicit type")
	default:
		return nil, spec.Errorf(spec.InvalidInput, "unknown schema variant %T", s).WithPointer(s.Annotations().Location)
	}
}

func (b *Builder) object(s *spec.ObjectSchema, name string) (Declaration, error) {
	m := &Model{Identifier: name, Pointer: s.Location, Kind: StructModel, Description: describe(s)}
	used := make(map[string]int, len(s.Properties))
	for _, p := range s.Properties {
		field := naming.FieldName(p.Name)
		d, err := b.Build(p.Schema, name+field)
		if err != nil {
			return nil, err
		}
		required := s.IsRequired(p.Name)
		typ := typeOf(d)
		if isModelTyped(d) && (!required || isIndirect(d)) {
			typ = "*" + typ
		}
		desc := p.Schema.Description()
		if fm, ok := d.(*Model); ok && desc == "" {
			desc = fm.Description
		}
		m.Fields = append(m.Fields, Field{
			Name:        unique(field, used),
			JSONName:    p.Name,
			Type:        typ,
			Required:    required,
			Description: desc,
		})
	}
	return m, nil
}

func (b *Builder) union(s *spec.UnionSchema, name string) (Declaration, error) {
	kind := OneOfModel
	if s.Kind == spec.AnyOf {
		kind = AnyOfModel
	}
	m := &Model{Identifier: name, Pointer: s.Location, Kind: kind, Description: describe(s)}
	used := make(map[string]int, len(s.Alternatives))
	for i, alt := range s.Alternatives {
		d, err := b.Build(alt, name+strconv.Itoa(i+1))
		if err != nil {
			return nil, err
		}
		m.Variants = append(m.Variants, Variant{
			Name:   unique(variantName(d), used),
			Type:   typeOf(d),
			Object: isObject(d),
		})
	}
	return m, nil
}

// allOf merges the properties of its object alternatives into one record.
// Properties are keyed by JSON name in declared order; a later declaration
// replaces the type of an earlier one and required wins. Alternatives that
// only restate a primitive type collapse into that type. A reference that is
// still being generated has no fields yet and is embedded by pointer.
func (b *Builder) allOf(s *spec.UnionSchema, name string) (Declaration, error) {
	m := &Model{Identifier: name, Pointer: s.Location, Kind: AllOfModel, Description: describe(s)}
	var (
		scalar   Declaration
		merged   []Field
		index    = make(map[string]int)
		required []string
		embedded = make(map[string]bool)
	)
	merge := func(fields []Field) {
		for _, f := range fields {
			if f.Embedded {
				if !embedded[f.Type] {
					embedded[f.Type] = true
					merged = append(merged, f)
				}
				continue
			}
			i, ok := index[f.JSONName]
			if !ok {
				index[f.JSONName] = len(merged)
				merged = append(merged, f)
				continue
			}
			prev := merged[i]
			merged[i].Type = f.Type
			merged[i].Required = prev.Required || f.Required
			if f.Description == "" {
				merged[i].Description = prev.Description
			} else {
				merged[i].Description = f.Description
			}
		}
	}

	for i, alt := range s.Alternatives {
		d, req, err := b.allOfAlternative(alt, name, i)
		if err != nil {
			return nil, err
		}
		required = append(required, req...)
		if d == nil {
			continue
		}
		if um, ok := d.(*Model); ok && (um.Kind == OneOfModel || um.Kind == AnyOfModel) {
			return nil, spec.Errorf(spec.UnimplementedFeature, "allOf includes the %s union %s", um.Kind, um.Identifier).
				WithPointer(s.Location).
				WithHint("move the oneOf/anyOf out of the allOf")
		}
		switch {
		case isIndirect(d):
			merge([]Field{{Type: "*" + typeOf(d), Embedded: true}})
		case isModelTyped(d):
			merge(d.(*Model).Fields)
		case typeOf(d) == "any" || typeOf(d) == "map[string]any":
		default:
			if scalar != nil && typeOf(scalar) != typeOf(d) {
				return nil, spec.Errorf(spec.UnimplementedFeature, "allOf combines %s with %s", typeOf(scalar), typeOf(d)).
					WithPointer(s.Location)
			}
			scalar = d
		}
	}

	switch {
	case len(merged) > 0 && scalar != nil:
		return nil, spec.Errorf(spec.UnimplementedFeature, "allOf combines objects with %s", typeOf(scalar)).
			WithPointer(s.Location)
	case len(merged) > 0:
		m.Fields = nameFields(merged, required)
		return m, nil
	case scalar != nil:
		return &Property{Identifier: name, Type: typeOf(scalar)}, nil
	default:
		return &Property{Identifier: name, Type: "any"}, nil
	}
}

// allOfAlternative generates one alternative of an allOf. Inline objects and
// nested allOfs are generated under the enclosing name without registering a
// model of their own, since only their fields survive the merge. req lists
// the property names the alternative marks required.
func (b *Builder) allOfAlternative(alt spec.SchemaOrRef, name string, pos int) (d Declaration, req []string, err error) {
	if alt.IsRef() || alt.Node == nil {
		d, err = b.Build(alt, name+strconv.Itoa(pos+1))
		return d, nil, err
	}
	s, err := spec.Classify(alt.Node, alt.Location)
	if err != nil {
		return nil, nil, err
	}
	switch s := s.(type) {
	case *spec.ObjectSchema:
		if len(s.Properties) == 0 {
			return nil, s.Required, nil
		}
		d, err = b.object(s, name)
		return d, s.Required, err
	case *spec.UnionSchema:
		if s.Kind == spec.AllOf {
			d, err = b.allOf(s, name)
			return d, nil, err
		}
	}
	d, err = b.Build(alt, name+strconv.Itoa(pos+1))
	return d, nil, err
}

// nameFields applies the collected required names and gives every merged
// field a Go name that is unique within the struct, embedded types included.
func nameFields(fields []Field, required []string) []Field {
	used := make(map[string]int, len(fields))
	for _, f := range fields {
		if f.Embedded {
			used[strings.TrimPrefix(f.Type, "*")] = 1
		}
	}
	for i, f := range fields {
		if f.Embedded {
			continue
		}
		for _, r := range required {
			if r == f.JSONName {
				fields[i].Required = true
			}
		}
		fields[i].Name = unique(naming.FieldName(f.JSONName), used)
	}
	return fields
}

func stringType(format string) string {
	switch format {
	case "date-time":
		return "time.Time"
	case "byte", "binary":
		return "[]byte"
	default:
		return "string"
	}
}

func isPrimitive(s spec.Schema) bool {
	switch s.(type) {
	case *spec.StringSchema, *spec.NumberSchema, *spec.IntegerSchema, *spec.BooleanSchema, *spec.AnySchema:
		return true
	}
	return false
}

func producesModel(s spec.Schema) bool {
	switch s := s.(type) {
	case *spec.ObjectSchema:
		return len(s.Properties) > 0
	case *spec.UnionSchema:
		return true
	}
	return false
}

func isIndirect(d Declaration) bool {
	p, ok := d.(*Property)
	return ok && p.Indirect
}

// isObject reports whether d decodes from a JSON object with known fields.
func isObject(d Declaration) bool {
	if m, ok := d.(*Model); ok {
		return m.Kind == StructModel || m.Kind == AllOfModel
	}
	return isIndirect(d)
}

var variantReplacer = strings.NewReplacer("[]byte", "Bytes", "[]", "List_", "map[string]", "Map_", "time.Time", "Time", "*", "")

func variantName(d Declaration) string {
	typ := typeOf(d)
	if isModelTyped(d) {
		return typ
	}
	return naming.TypeName(variantReplacer.Replace(typ), "Value")
}

// unique returns name, or name with a numeric suffix when already used.
func unique(name string, used map[string]int) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	for {
		candidate := name + strconv.Itoa(used[name])
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
		used[name]++
	}
}

func describe(s spec.Schema) string {
	m := s.Annotations()
	if m.Description != "" {
		return m.Description
	}
	return m.Title
}
