package spec

import (
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Reference is a parsed local pointer such as "#/components/schemas/Pet".
type Reference struct {
	// Pointer is the original pointer text.
	Pointer  string
	Segments []string
}

// ParseReference splits a local pointer into unescaped segments. Pointers into
// other resources ("other.yaml#/Pet", "https://…#/Pet") are rejected; this
// package never fetches anything while resolving.
func ParseReference(ptr string) (Reference, error) {
	if !strings.HasPrefix(ptr, "#") {
		return Reference{}, Errorf(UnsupportedReference, "non-local reference %q is not supported", ptr).
			WithPointer(ptr).
			WithHint("inline the referenced schema or bundle the document into a single file")
	}
	frag := ptr[1:]
	if frag == "" {
		return Reference{Pointer: ptr}, nil
	}
	if !strings.HasPrefix(frag, "/") {
		return Reference{}, Errorf(InvalidReference, "malformed pointer %q", ptr).WithPointer(ptr)
	}
	raw := strings.Split(frag[1:], "/")
	segs := make([]string, 0, len(raw))
	for _, s := range raw {
		if u, err := url.PathUnescape(s); err == nil {
			s = u
		}
		s = strings.ReplaceAll(s, "~1", "/")
		s = strings.ReplaceAll(s, "~0", "~")
		segs = append(segs, s)
	}
	return Reference{Pointer: ptr, Segments: segs}, nil
}

// Last returns the final segment, or "" for the root pointer.
func (r Reference) Last() string {
	if len(r.Segments) == 0 {
		return ""
	}
	return r.Segments[len(r.Segments)-1]
}

// Canonical returns the pointer rebuilt from the unescaped segments, so that
// "#/definitions/P%65t" and "#/definitions/Pet" name the same node.
func (r Reference) Canonical() string { return Join("#", r.Segments...) }

// String returns the original pointer text.
func (r Reference) String() string { return r.Pointer }

// EscapeSegment escapes one pointer segment per RFC 6901.
func EscapeSegment(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// Join appends escaped segments to a pointer.
func Join(ptr string, segs ...string) string {
	var b strings.Builder
	b.WriteString(ptr)
	for _, s := range segs {
		b.WriteByte('/')
		b.WriteString(EscapeSegment(s))
	}
	return b.String()
}

// Resolver looks pointers up in a single Document. It holds no state besides
// the document, so resolving the same pointer twice yields the same node.
type Resolver struct {
	doc *Document
}

// NewResolver returns a Resolver bound to doc.
func NewResolver(doc *Document) *Resolver {
	return &Resolver{doc: doc}
}

// Resolve returns the node designated by ptr.
func (r *Resolver) Resolve(ptr string) (*yaml.Node, error) {
	ref, err := ParseReference(ptr)
	if err != nil {
		return nil, err
	}
	return r.ResolveReference(ref)
}

// ResolveReference walks ref's segments from the document root. Failures
// name the original pointer, not the failing segment.
func (r *Resolver) ResolveReference(ref Reference) (*yaml.Node, error) {
	cur := r.doc.Root
	for _, seg := range ref.Segments {
		cur = unwrap(cur)
		var next *yaml.Node
		switch {
		case cur == nil:
		case cur.Kind == yaml.MappingNode:
			next = lookup(cur, seg)
		case cur.Kind == yaml.SequenceNode:
			if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(cur.Content) {
				next = unwrap(cur.Content[i])
			}
		}
		if next == nil {
			return nil, Errorf(InvalidReference, "reference %q does not resolve", ref.Pointer).
				WithPointer(ref.Pointer)
		}
		cur = next
	}
	return unwrap(cur), nil
}
