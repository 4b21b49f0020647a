package codegen

import "strconv"

// runtimeNames are declared by the generated runtime and never handed out to
// models.
var runtimeNames = []string{
	"Client", "ClientOption", "NewClient",
	"Server", "DefaultServer", "CustomServer",
	"WithServer", "WithTransport", "WithHTTPClient",
	"Transport", "HTTPTransport", "Request", "Response", "APIError",
}

type entry struct {
	name       string
	decl       Declaration
	inProgress bool
	deferred   bool
}

// Registry maps schema pointers to generated declarations for one run. It
// also owns the set of claimed Go identifiers so that two pointers never end
// up with the same type name.
type Registry struct {
	entries map[string]*entry
	// names maps a claimed identifier to its owner.
	names map[string]string
	order []string
}

// NewRegistry returns an empty registry with the runtime names reserved.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		names:   make(map[string]string),
	}
	for _, n := range runtimeNames {
		r.names[n] = "runtime"
	}
	return r
}

// Lookup returns the finished declaration for ptr.
func (r *Registry) Lookup(ptr string) (Declaration, bool) {
	e, ok := r.entries[ptr]
	if !ok || e.inProgress {
		return nil, false
	}
	return e.decl, true
}

// InProgress reports whether ptr is being generated and, if so, the name
// reserved for it.
func (r *Registry) InProgress(ptr string) (string, bool) {
	e, ok := r.entries[ptr]
	if !ok || !e.inProgress {
		return "", false
	}
	return e.name, true
}

// Begin marks ptr as in progress under a freshly claimed name.
func (r *Registry) Begin(ptr, name, qualifier string) string {
	claimed := r.Claim(name, ptr, qualifier)
	r.entries[ptr] = &entry{name: claimed, inProgress: true}
	return claimed
}

// Defer records that ptr was referenced while in progress.
func (r *Registry) Defer(ptr string) {
	if e, ok := r.entries[ptr]; ok {
		e.deferred = true
	}
}

// Deferred reports whether ptr was referenced while in progress.
func (r *Registry) Deferred(ptr string) bool {
	e, ok := r.entries[ptr]
	return ok && e.deferred
}

// Finish stores decl for ptr. Names claimed for declarations that turned out
// to be inline properties are released.
func (r *Registry) Finish(ptr string, decl Declaration) {
	e, ok := r.entries[ptr]
	if !ok {
		e = &entry{}
		r.entries[ptr] = e
	}
	e.decl = decl
	e.inProgress = false
	if _, isModel := decl.(*Model); isModel {
		r.order = append(r.order, ptr)
		return
	}
	if e.name != "" && r.names[e.name] == ptr {
		delete(r.names, e.name)
	}
}

// Alias caches decl for a pointer whose node is itself a reference. The
// declaration is emitted under the pointer it was generated for.
func (r *Registry) Alias(ptr string, decl Declaration) {
	r.entries[ptr] = &entry{decl: decl}
}

// Abort forgets an in-progress pointer after a failure.
func (r *Registry) Abort(ptr string) {
	e, ok := r.entries[ptr]
	if !ok {
		return
	}
	if r.names[e.name] == ptr {
		delete(r.names, e.name)
	}
	delete(r.entries, ptr)
}

// Claim reserves an identifier for owner. A name already owned by someone
// else is qualified with the enclosing name first, then suffixed with a
// number.
func (r *Registry) Claim(name, owner, qualifier string) string {
	if o, ok := r.names[name]; !ok || o == owner {
		r.names[name] = owner
		return name
	}
	if qualifier != "" && qualifier != name {
		q := qualifier + name
		if o, ok := r.names[q]; !ok || o == owner {
			r.names[q] = owner
			return q
		}
	}
	for i := 2; ; i++ {
		n := name + strconv.Itoa(i)
		if _, ok := r.names[n]; !ok {
			r.names[n] = owner
			return n
		}
	}
}

// Models returns the registered models in registration order.
func (r *Registry) Models() []*Model {
	out := make([]*Model, 0, len(r.order))
	for _, ptr := range r.order {
		if m, ok := r.entries[ptr].decl.(*Model); ok {
			out = append(out, m)
		}
	}
	return out
}
