package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/tools/imports"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.tmpl"))

var templateFuncs = template.FuncMap{
	"quote":     strconv.Quote,
	"comment":   comment,
	"docs":      docs,
	"signature": signature,
	"pathExpr":  pathExpr,
	"paramStmt": paramStmt,
	"bodyStmt":  bodyStmt,
	"callStmt":  callStmt,
	"nilable":   nilable,
	"isUnion":   func(m *Model) bool { return m.Kind == OneOfModel || m.Kind == AnyOfModel },
	"isAlias":   func(m *Model) bool { return m.Kind == AliasModel },
	"isAnyOf":   func(m *Model) bool { return m.Kind == AnyOfModel },
}

// File is one rendered source file of the client package.
type File struct {
	Name    string
	Content []byte
}

// Render executes the package templates for art. Every file is passed
// through goimports, so a syntax error in the output fails the render.
func Render(art *Artifact) ([]File, error) {
	names := []string{"doc.go", "client.go", "transport.go"}
	if len(art.Models)+len(art.Params) > 0 {
		names = append(names, "models.go")
	}
	files := make([]File, 0, len(names))
	for _, name := range names {
		src, err := executeTemplate(name, art)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: name, Content: src})
	}
	return files, nil
}

func executeTemplate(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	src, err := imports.Process(name, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("format %s: %w", name, err)
	}
	return src, nil
}

// comment turns text into line comments.
func comment(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, l := range lines {
		l = strings.TrimRight(l, " \t\r")
		if l == "" {
			lines[i] = "//"
			continue
		}
		lines[i] = "// " + l
	}
	return strings.Join(lines, "\n")
}

// docs renders paragraphs as one comment block.
func docs(paragraphs []string) string {
	var kept []string
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return comment(strings.Join(kept, "\n\n"))
}

func signature(m Method) string {
	args := []string{"ctx context.Context"}
	for _, p := range m.PathParams {
		args = append(args, p.Name+" "+p.Type)
	}
	if m.Params != nil {
		args = append(args, "params *"+m.Params.Type)
	}
	if m.Body != nil {
		typ := m.Body.Type
		if m.Body.Kind == FormBody || m.Body.Kind == MultipartBody {
			typ = "*" + typ
		}
		args = append(args, "body "+typ)
	}
	results := "(err error)"
	if m.Result != "" {
		results = "(out " + resultType(m) + ", err error)"
	}
	return m.Name + "(" + strings.Join(args, ", ") + ") " + results
}

func resultType(m Method) string {
	if m.ResultPointer {
		return "*" + m.Result
	}
	return m.Result
}

func returnErr(m Method) string {
	if m.Result != "" {
		return "return out, err"
	}
	return "return err"
}

// pathExpr builds the Go expression of the request path, escaping every
// path parameter.
func pathExpr(m Method) string {
	locals := make(map[string]string, len(m.PathParams))
	for _, p := range m.PathParams {
		locals[p.WireName] = p.Name
	}
	var parts []string
	lit := ""
	rest := m.Path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		end += open
		name, ok := locals[rest[open+1:end]]
		if !ok {
			lit += rest[:end+1]
			rest = rest[end+1:]
			continue
		}
		lit += rest[:open]
		if lit != "" {
			parts = append(parts, strconv.Quote(lit))
			lit = ""
		}
		parts = append(parts, "url.PathEscape(formatParam("+name+"))")
		rest = rest[end+1:]
	}
	lit += rest
	if lit != "" || len(parts) == 0 {
		parts = append(parts, strconv.Quote(lit))
	}
	return strings.Join(parts, " + ")
}

type valueKind int

const (
	plainValue valueKind = iota
	sliceValue
	pointerValue
	nilableValue
)

func kindOf(typ string) valueKind {
	switch {
	case typ == "[]byte":
		return nilableValue
	case strings.HasPrefix(typ, "[]"):
		return sliceValue
	case strings.HasPrefix(typ, "*"):
		return pointerValue
	case nilable(typ):
		return nilableValue
	}
	return plainValue
}

// guarded wraps the statement emit produces for the value of expr so that
// unset optional values are skipped and slices are sent once per element.
func guarded(typ, expr string, emit func(value string) string) string {
	switch kindOf(typ) {
	case sliceValue:
		return "for _, v := range " + expr + " {\n" + emit("v") + "\n}"
	case pointerValue:
		return "if " + expr + " != nil {\n" + emit("*"+expr) + "\n}"
	case nilableValue:
		return "if " + expr + " != nil {\n" + emit(expr) + "\n}"
	}
	return emit(expr)
}

var collectionSeparators = map[string]string{
	"csv":   ",",
	"ssv":   " ",
	"tsv":   "\t",
	"pipes": "|",
}

// paramStmt adds one query, header or cookie parameter to the request.
// Slices are sent once per element for the multi format and joined with the
// format's separator otherwise. Cookies are collected into cookies and sent
// as a single header.
func paramStmt(p Param) string {
	expr := "params." + p.Name
	if kindOf(p.Type) == sliceValue {
		sep, joined := collectionSeparators[p.CollectionFormat]
		if p.In != "query" && !joined {
			sep, joined = ",", true
		}
		if joined {
			value := "joinParam(" + expr + ", " + strconv.Quote(sep) + ")"
			return "if len(" + expr + ") > 0 {\n" + addParam(p, value) + "\n}"
		}
	}
	return guarded(p.Type, expr, func(v string) string {
		return addParam(p, "formatParam("+v+")")
	})
}

func addParam(p Param, value string) string {
	switch p.In {
	case "header":
		return "header.Add(" + strconv.Quote(p.WireName) + ", " + value + ")"
	case "cookie":
		return "cookies = append(cookies, " + strconv.Quote(p.WireName+"=") + "+url.QueryEscape(" + value + "))"
	}
	return "query.Add(" + strconv.Quote(p.WireName) + ", " + value + ")"
}

// bodyStmt encodes the request body into payload and contentType.
func bodyStmt(m Method) string {
	b := m.Body
	var sb strings.Builder
	switch b.Kind {
	case FormBody, MultipartBody:
		sb.WriteString("if body != nil {\nvar fields []formField\n")
		for _, f := range b.Fields {
			file := strings.TrimPrefix(f.Type, "[]") == "[]byte" || f.Type == "[]byte"
			sb.WriteString(guarded(f.Type, "body."+f.Name, func(v string) string {
				return "fields = append(fields, formField{name: " + strconv.Quote(f.WireName) + ", value: " + v + ", file: " + strconv.FormatBool(file) + "})"
			}))
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "payload, contentType, err = encodeForm(fields, %t)\n", b.Kind == MultipartBody)
		sb.WriteString("if err != nil {\n" + returnErr(m) + "\n}\n}")
	case JSONBody:
		ct := b.ContentType
		if ct == "" {
			ct = "application/json"
		}
		enc := "payload, err = json.Marshal(body)\nif err != nil {\n" + returnErr(m) + "\n}\ncontentType = " + strconv.Quote(ct)
		if kindOf(b.Type) == plainValue {
			sb.WriteString(enc)
		} else {
			sb.WriteString("if body != nil {\n" + enc + "\n}")
		}
	default:
		sb.WriteString("if body != nil {\npayload = body\ncontentType = " + strconv.Quote(b.ContentType) + "\n}")
	}
	return sb.String()
}

// callStmt sends the request and decodes the result.
func callStmt(m Method) string {
	query, header := "nil", "nil"
	if m.Params != nil {
		query, header = "query", "header"
	}
	payload, ct := "nil", `""`
	if m.Body != nil {
		payload, ct = "payload", "contentType"
	}
	call := "c.do(ctx, " + strconv.Quote(m.HTTPMethod) + ", path, " + query + ", " + header + ", " + payload + ", " + ct + ")"
	switch {
	case m.Result == "":
		return "_, err = " + call + "\nreturn err"
	case !m.ResultJSON:
		return "out, err = " + call + "\nreturn out, err"
	}
	return "var data []byte\ndata, err = " + call + "\nif err != nil {\nreturn out, err\n}\n" +
		"if len(data) > 0 {\nerr = json.Unmarshal(data, &out)\n}\nreturn out, err"
}
