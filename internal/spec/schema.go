package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// SchemaOrRef is either an inline schema node or a reference to one.
type SchemaOrRef struct {
	Ref  *Reference
	Node *yaml.Node
	// Location is the pointer of this node inside the document.
	Location string
}

// IsRef reports whether s is a reference.
func (s SchemaOrRef) IsRef() bool { return s.Ref != nil }

// IsZero reports whether s carries neither a node nor a reference.
func (s SchemaOrRef) IsZero() bool { return s.Ref == nil && s.Node == nil }

// Description returns the description of an inline node.
func (s SchemaOrRef) Description() string {
	if s.Node == nil {
		return ""
	}
	return scalar(s.Node, "description")
}

// NewSchemaOrRef wraps the node found at loc.
func NewSchemaOrRef(node *yaml.Node, loc string) (SchemaOrRef, error) {
	node = unwrap(node)
	if ref := lookup(node, "$ref"); ref != nil {
		if ref.Kind != yaml.ScalarNode {
			return SchemaOrRef{}, Errorf(InvalidInput, "$ref must be a string").WithPointer(loc)
		}
		r, err := ParseReference(strings.TrimSpace(ref.Value))
		if err != nil {
			return SchemaOrRef{}, err
		}
		return SchemaOrRef{Ref: &r, Location: loc}, nil
	}
	return SchemaOrRef{Node: node, Location: loc}, nil
}

// Schema is the closed set of schema variants. The unexported method keeps
// the set closed to this package.
type Schema interface {
	Annotations() *Meta
	schema()
}

// Meta carries the annotations shared by all variants.
type Meta struct {
	Location    string
	Title       string
	Description string
	Format      string
	// NameHint is an explicit naming hint (xml.name) found on the node.
	NameHint string
	Enum     []string
}

func (m *Meta) Annotations() *Meta { return m }
func (*Meta) schema()              {}

type StringSchema struct{ Meta }

type NumberSchema struct{ Meta }

type IntegerSchema struct{ Meta }

type BooleanSchema struct{ Meta }

// AnySchema is a node without type or composition keywords, e.g. {}.
type AnySchema struct{ Meta }

type ArraySchema struct {
	Meta
	Items SchemaOrRef
}

type ObjectSchema struct {
	Meta
	Properties []PropertySchema
	Required   []string
	// Additional is the additionalProperties schema, when one is given.
	Additional *SchemaOrRef
}

// IsRequired reports whether the named property is required.
func (o *ObjectSchema) IsRequired(name string) bool {
	return containsString(o.Required, name)
}

type PropertySchema struct {
	Name   string
	Schema SchemaOrRef
}

type UnionKind string

const (
	OneOf UnionKind = "oneOf"
	AnyOf UnionKind = "anyOf"
	AllOf UnionKind = "allOf"
)

type UnionSchema struct {
	Meta
	Kind         UnionKind
	Alternatives []SchemaOrRef
}

type NotSchema struct {
	Meta
	Negated SchemaOrRef
}

// Classify turns an inline schema node into its variant. References must be
// resolved by the caller first.
func Classify(node *yaml.Node, loc string) (Schema, error) {
	node = unwrap(node)
	if node == nil {
		return &AnySchema{Meta: Meta{Location: loc}}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, Errorf(InvalidInput, "line %d: schema must be an object, got %s", node.Line, describe(node)).
			WithPointer(loc)
	}
	if lookup(node, "$ref") != nil {
		return nil, Errorf(InvalidInput, "unexpected $ref in inline schema").WithPointer(loc)
	}

	meta := Meta{
		Location:    loc,
		Title:       scalar(node, "title"),
		Description: scalar(node, "description"),
		Format:      scalar(node, "format"),
		NameHint:    scalar(lookup(node, "xml"), "name"),
		Enum:        stringList(node, "enum"),
	}

	if not := lookup(node, "not"); not != nil {
		negated, err := NewSchemaOrRef(not, Join(loc, "not"))
		if err != nil {
			return nil, err
		}
		return &NotSchema{Meta: meta, Negated: negated}, nil
	}

	var union *UnionSchema
	for _, kind := range []UnionKind{OneOf, AnyOf, AllOf} {
		list := lookup(node, string(kind))
		if list == nil {
			continue
		}
		if union != nil {
			return nil, Errorf(UnimplementedFeature, "schema combines %s with %s", union.Kind, kind).WithPointer(loc)
		}
		if list.Kind != yaml.SequenceNode || len(list.Content) == 0 {
			return nil, Errorf(InvalidInput, "%s must be a non-empty array", kind).WithPointer(loc)
		}
		union = &UnionSchema{Meta: meta, Kind: kind}
		for i, alt := range list.Content {
			s, err := NewSchemaOrRef(alt, Join(loc, string(kind), itoa(i)))
			if err != nil {
				return nil, err
			}
			union.Alternatives = append(union.Alternatives, s)
		}
	}
	if union != nil {
		return union, nil
	}

	typ := scalar(node, "type")
	if typ == "" {
		switch {
		case lookup(node, "properties") != nil || lookup(node, "additionalProperties") != nil || lookup(node, "required") != nil:
			typ = "object"
		case lookup(node, "items") != nil:
			typ = "array"
		case len(meta.Enum) > 0:
			typ = "string"
		}
	}

	switch typ {
	case "":
		return &AnySchema{Meta: meta}, nil
	case "string":
		return &StringSchema{Meta: meta}, nil
	case "file":
		// Swagger 2.x file parameters carry raw bytes.
		meta.Format = "binary"
		return &StringSchema{Meta: meta}, nil
	case "number":
		return &NumberSchema{Meta: meta}, nil
	case "integer":
		return &IntegerSchema{Meta: meta}, nil
	case "boolean":
		return &BooleanSchema{Meta: meta}, nil
	case "array":
		items, err := NewSchemaOrRef(lookup(node, "items"), Join(loc, "items"))
		if err != nil {
			return nil, err
		}
		return &ArraySchema{Meta: meta, Items: items}, nil
	case "object":
		obj := &ObjectSchema{Meta: meta, Required: stringList(node, "required")}
		for _, p := range pairs(lookup(node, "properties")) {
			s, err := NewSchemaOrRef(p.Value, Join(loc, "properties", p.Key))
			if err != nil {
				return nil, err
			}
			obj.Properties = append(obj.Properties, PropertySchema{Name: p.Key, Schema: s})
		}
		if ap := lookup(node, "additionalProperties"); ap != nil && ap.Kind == yaml.MappingNode {
			s, err := NewSchemaOrRef(ap, Join(loc, "additionalProperties"))
			if err != nil {
				return nil, err
			}
			obj.Additional = &s
		}
		return obj, nil
	default:
		return nil, Errorf(InvalidInput, "line %d: unknown schema type %q", node.Line, typ).WithPointer(loc)
	}
}

func itoa(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return digits[i : i+1]
	}
	return itoa(i/10) + digits[i%10:i%10+1]
}
