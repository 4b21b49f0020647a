package spec

// Internal Model (IM) definitions shared by the normalizer and the code
// generator. Nothing here depends on the source grammar.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

// methodOrder is the set of path item keys that name operations.
var methodOrder = []HttpMethod{GET, PUT, POST, DELETE, OPTIONS, HEAD, PATCH, TRACE}

type API struct {
	Grammar  Grammar
	Metadata Metadata
	// BaseURL is the URL of the default server.
	BaseURL string
	// Servers lists alternate servers after the default one (3.0 only).
	Servers    []Server
	Operations []Operation
	// Schemas holds pointers to the named schemas in declared order.
	Schemas []string
}

type Metadata struct {
	Title          string
	Version        string
	Description    string
	TermsOfService string
}

type Server struct {
	Name        string
	URL         string
	Description string
}

type Operation struct {
	Path         string
	Method       HttpMethod
	OperationID  string // optional
	Summary      string
	Description  string
	ExternalDocs string // URL
	Deprecated   bool
	Tags         []string
	// Location is the pointer to the operation node.
	Location    string
	Parameters  []Parameter
	RequestBody *RequestBody
	Responses   []Response
}

type Parameter struct {
	Name        string
	In          string // path|query|header|cookie|formData
	Description string
	Required    bool
	Schema      SchemaOrRef
	// CollectionFormat is how array values are serialized, in the 2.x
	// vocabulary: csv, ssv, tsv, pipes or multi (one pair per value).
	CollectionFormat string
}

type RequestBody struct {
	Description string
	Required    bool
	ContentType string
	// Schema is set for JSON and raw bodies.
	Schema *SchemaOrRef
	// Form is set for 2.x formData bodies.
	Form []Parameter
}

// IsJSON reports whether the body is encoded as JSON.
func (b *RequestBody) IsJSON() bool { return isJSONMime(b.ContentType) }

// IsForm reports whether the body is built from form fields.
func (b *RequestBody) IsForm() bool { return len(b.Form) > 0 }

type Response struct {
	Status      string // 200, 4XX, default
	Description string
	ContentType string
	Schema      *SchemaOrRef
}
