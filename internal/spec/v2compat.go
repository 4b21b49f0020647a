package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites non-compliant Swagger v2 operations in
// place so that each operation carries at most one request body. Specifically:
//   - If an operation mixes body and formData parameters, all body parameters
//     become formData equivalents and the operation consumes multipart/form-data.
//   - If an operation contains multiple body parameters, they are merged into a
//     single body parameter whose schema is an object with one property per
//     original parameter.
//
// It runs once inside Parse, before any pointer is handed out, and reports
// whether anything changed.
func preprocessV2ForCompatibility(root *yaml.Node) bool {
	modified := false
	for _, pi := range pairs(lookup(root, "paths")) {
		for _, op := range pairs(pi.Value) {
			switch strings.ToLower(op.Key) {
			case "get", "post", "put", "delete", "patch", "options", "head":
			default:
				continue
			}
			params := lookup(op.Value, "parameters")
			if params == nil || params.Kind != yaml.SequenceNode {
				continue
			}

			bodyCount := 0
			hasFormData := false
			for _, p := range params.Content {
				switch strings.ToLower(scalar(p, "in")) {
				case "body":
					bodyCount++
				case "formdata":
					hasFormData = true
				}
			}
			if bodyCount == 0 {
				continue
			}

			if hasFormData {
				for i, p := range params.Content {
					if strings.EqualFold(scalar(p, "in"), "body") {
						params.Content[i] = formDataFromBodyParam(p)
						modified = true
					}
				}
				if !containsString(stringList(op.Value, "consumes"), "multipart/form-data") {
					consumes := lookup(op.Value, "consumes")
					if consumes == nil || consumes.Kind != yaml.SequenceNode {
						consumes = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
						setKey(op.Value, "consumes", consumes)
					}
					consumes.Content = append(consumes.Content, stringNode("multipart/form-data"))
				}
				continue
			}

			if bodyCount > 1 {
				props := mappingNode()
				required := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
				rest := make([]*yaml.Node, 0, len(params.Content))
				for _, p := range params.Content {
					if !strings.EqualFold(scalar(p, "in"), "body") {
						rest = append(rest, p)
						continue
					}
					name := scalar(p, "name")
					if name == "" {
						name = "field"
					}
					schema := extractSchemaFromParam(p)
					if schema == nil {
						schema = mappingNode("type", stringNode("string"))
					}
					setKey(props, name, schema)
					if flag(p, "required") {
						required.Content = append(required.Content, stringNode(name))
					}
				}
				bodySchema := mappingNode("type", stringNode("object"), "properties", props)
				if len(required.Content) > 0 {
					setKey(bodySchema, "required", required)
				}
				merged := mappingNode(
					"in", stringNode("body"),
					"name", stringNode("body"),
					"schema", bodySchema,
				)
				params.Content = append([]*yaml.Node{merged}, rest...)
				modified = true
			}
		}
	}
	return modified
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func extractSchemaFromParam(p *yaml.Node) *yaml.Node {
	if sch := lookup(p, "schema"); sch != nil {
		return sch
	}
	// Synthesize schema from param type/items/format when present
	t := scalar(p, "type")
	if t == "" {
		return nil
	}
	m := mappingNode("type", stringNode(t))
	if it := lookup(p, "items"); it != nil {
		setKey(m, "items", it)
	}
	if f := scalar(p, "format"); f != "" {
		setKey(m, "format", stringNode(f))
	}
	return m
}

func formDataFromBodyParam(p *yaml.Node) *yaml.Node {
	name := scalar(p, "name")
	if name == "" {
		name = "field"
	}
	out := mappingNode("in", stringNode("formData"), "name", stringNode(name))
	if desc := scalar(p, "description"); desc != "" {
		setKey(out, "description", stringNode(desc))
	}
	if flag(p, "required") {
		setKey(out, "required", &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}
	// Derive a formData-compatible type; fallback to string.
	var typ, format string
	var items *yaml.Node
	if sch := lookup(p, "schema"); sch != nil {
		typ = scalar(sch, "type")
		format = scalar(sch, "format")
		items = lookup(sch, "items")
		if typ == "" && lookup(sch, "$ref") != nil {
			// Cannot represent a referenced object in formData; degrade to string.
			typ = "string"
		}
	}
	if typ == "" {
		typ = scalar(p, "type")
		format = scalar(p, "format")
		items = lookup(p, "items")
	}
	if typ == "" {
		typ = "string"
	}
	setKey(out, "type", stringNode(typ))
	if items != nil {
		setKey(out, "items", items)
	}
	if format != "" {
		setKey(out, "format", stringNode(format))
	}
	return out
}

func stringNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// mappingNode builds a mapping from alternating string keys and node values.
func mappingNode(kv ...any) *yaml.Node {
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(kv); i += 2 {
		setKey(m, kv[i].(string), kv[i+1].(*yaml.Node))
	}
	return m
}

// setKey replaces the value for key in m, or appends the entry.
func setKey(m *yaml.Node, key string, v *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = v
			return
		}
	}
	m.Content = append(m.Content, stringNode(key), v)
}
