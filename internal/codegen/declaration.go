// Package codegen turns the normalized API model into Go declarations and
// renders them as the source files of a client package.
package codegen

// Declaration is the result of generating one schema: either an inline
// property type or a named model. The set is closed to this package.
type Declaration interface {
	// GoType is the type expression a field or parameter uses to refer to
	// the declaration.
	GoType() string
	declaration()
}

// Property is an inline type expression such as "string" or "[]Pet". No
// named type is emitted for it.
type Property struct {
	Identifier string
	Type       string
	// Indirect marks a reference to a model that was still being generated,
	// i.e. a cycle. Fields holding it are pointers.
	Indirect bool
	// Pointer is the referenced schema, for indirect properties.
	Pointer string
}

func (p *Property) GoType() string { return p.Type }
func (*Property) declaration()     {}

// ModelKind selects how a model is rendered.
type ModelKind int

const (
	// StructModel is a record with one field per property.
	StructModel ModelKind = iota
	// OneOfModel holds exactly one of its variants.
	OneOfModel
	// AnyOfModel holds one or more of its variants.
	AnyOfModel
	// AllOfModel merges the properties of every alternative into one record.
	AllOfModel
	// AliasModel names a non-struct type that refers to itself.
	AliasModel
)

func (k ModelKind) String() string {
	switch k {
	case StructModel:
		return "struct"
	case OneOfModel:
		return "oneOf"
	case AnyOfModel:
		return "anyOf"
	case AllOfModel:
		return "allOf"
	case AliasModel:
		return "alias"
	default:
		return "unknown"
	}
}

// Model is a named type definition.
type Model struct {
	Identifier  string
	Pointer     string
	Kind        ModelKind
	Description string
	Fields      []Field
	Variants    []Variant
	// Elem is the underlying type of an alias model.
	Elem string
}

func (m *Model) GoType() string { return m.Identifier }
func (*Model) declaration()     {}

// Field is one struct field of a model.
type Field struct {
	Name        string
	JSONName    string
	Type        string
	Required    bool
	Description string
	// Embedded fields carry no name; Type is the embedded model.
	Embedded bool
}

// Tag returns the struct tag of the field.
func (f Field) Tag() string {
	if f.Embedded {
		return ""
	}
	if f.Required {
		return "`json:\"" + f.JSONName + "\"`"
	}
	return "`json:\"" + f.JSONName + ",omitempty\"`"
}

// Variant is one alternative of a union model.
type Variant struct {
	Name string
	Type string
	// Object variants are decoded strictly so that an object only matches
	// the alternative whose fields it carries.
	Object bool
}

// FieldType returns the type of the variant's field inside the union.
func (v Variant) FieldType() string {
	if nilable(v.Type) {
		return v.Type
	}
	return "*" + v.Type
}

func nilable(t string) bool {
	return t == "any" || len(t) > 1 && (t[:2] == "[]" || t[0] == '*') || len(t) > 4 && t[:4] == "map["
}

func typeOf(d Declaration) string {
	if d == nil {
		return "any"
	}
	return d.GoType()
}

// isModelTyped reports whether d refers to a named model.
func isModelTyped(d Declaration) bool {
	switch d := d.(type) {
	case *Model:
		return d.Kind != AliasModel
	case *Property:
		return d.Indirect
	}
	return false
}
