package spec

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Grammar identifies the source grammar of a document.
type Grammar int

const (
	GrammarUnknown Grammar = iota
	GrammarSwagger2
	GrammarOpenAPI3
)

func (g Grammar) String() string {
	switch g {
	case GrammarSwagger2:
		return "swagger 2.x"
	case GrammarOpenAPI3:
		return "openapi 3.0"
	default:
		return "unknown"
	}
}

// Document is a parsed API description tree. It is never mutated after Parse
// returns; every pointer resolves against Root.
type Document struct {
	Root    *yaml.Node
	Grammar Grammar
	// Version is the raw version literal, e.g. "2.0" or "3.0.3".
	Version string
}

// Parse decodes JSON or YAML text into a Document and detects its grammar.
func Parse(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, Errorf(InvalidInput, "document is empty")
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, Errorf(InvalidInput, "malformed document text").WithCause(err)
	}
	root := unwrap(&doc)
	if root == nil || root.Kind != yaml.MappingNode {
		return nil, Errorf(InvalidInput, "document root must be an object")
	}

	d := &Document{Root: root}
	if err := d.detectGrammar(); err != nil {
		return nil, err
	}
	if d.Grammar == GrammarSwagger2 {
		preprocessV2ForCompatibility(root)
	}
	return d, nil
}

func (d *Document) detectGrammar() error {
	if v := scalar(d.Root, "openapi"); v != "" {
		d.Version = v
		if strings.HasPrefix(v, "3.0") {
			d.Grammar = GrammarOpenAPI3
			return nil
		}
		return Errorf(UnimplementedFeature, "openapi version %q is not supported", v).
			WithHint("only Swagger 2.x and OpenAPI 3.0.x documents can be generated")
	}
	if v := scalar(d.Root, "swagger"); v != "" {
		d.Version = v
		if strings.HasPrefix(v, "2.") || v == "2" {
			d.Grammar = GrammarSwagger2
			return nil
		}
		return Errorf(UnimplementedFeature, "swagger version %q is not supported", v)
	}
	return Errorf(InvalidInput, "missing or unknown version (expected 'openapi: 3.0.x' or 'swagger: 2.0')")
}

// JSON renders the document as JSON, for decoders that only accept JSON.
func (d *Document) JSON() ([]byte, error) {
	v, err := plain(d.Root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// plain converts a node tree into maps, slices and scalars. Mapping keys are
// kept as their literal text so numeric keys such as response codes survive.
func plain(n *yaml.Node) (any, error) {
	n = unwrap(n)
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := plain(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[unwrap(n.Content[i]).Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := plain(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, Errorf(InvalidInput, "line %d: cannot decode scalar %q", n.Line, n.Value).WithCause(err)
		}
		return v, nil
	default:
		return nil, Errorf(InvalidInput, "line %d: unsupported node kind", n.Line)
	}
}

// unwrap skips document and alias wrappers.
func unwrap(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch {
		case n.Kind == yaml.DocumentNode && len(n.Content) > 0:
			n = n.Content[0]
		case n.Kind == yaml.AliasNode && n.Alias != nil:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// lookup returns the value for key in a mapping node, or nil.
func lookup(n *yaml.Node, key string) *yaml.Node {
	n = unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if unwrap(n.Content[i]).Value == key {
			return unwrap(n.Content[i+1])
		}
	}
	return nil
}

// pair is one key/value entry of a mapping node.
type pair struct {
	Key   string
	Value *yaml.Node
}

// pairs lists the entries of a mapping node in declared order.
func pairs(n *yaml.Node) []pair {
	n = unwrap(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, pair{Key: unwrap(n.Content[i]).Value, Value: unwrap(n.Content[i+1])})
	}
	return out
}

// scalar returns the trimmed scalar value for key, or "".
func scalar(n *yaml.Node, key string) string {
	v := lookup(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return ""
	}
	return strings.TrimSpace(v.Value)
}

// flag returns the boolean value for key; absent or malformed values are false.
func flag(n *yaml.Node, key string) bool {
	v := lookup(n, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return false
	}
	var b bool
	if err := v.Decode(&b); err != nil {
		return false
	}
	return b
}

// stringList returns the scalar items of a sequence value for key.
func stringList(n *yaml.Node, key string) []string {
	v := lookup(n, key)
	if v == nil || v.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]string, 0, len(v.Content))
	for _, c := range v.Content {
		c = unwrap(c)
		if c != nil && c.Kind == yaml.ScalarNode {
			out = append(out, strings.TrimSpace(c.Value))
		}
	}
	return out
}

func describe(n *yaml.Node) string {
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.SequenceNode:
		return "array"
	case yaml.ScalarNode:
		return fmt.Sprintf("scalar %q", n.Value)
	default:
		return "node"
	}
}
