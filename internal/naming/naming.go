// Package naming converts document text (operation ids, paths, pointer
// segments, property names) into Go identifiers.
//
// Every function here is a pure function of its input.
package naming

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// wordRe splits text into words: a run of lowercase letters or digits
// optionally preceded by one uppercase letter, or a run of uppercase letters.
// It covers camelCase, PascalCase, snake_case and SCREAMING_SNAKE_CASE alike.
var wordRe = regexp.MustCompile(`[A-Z]?[a-z0-9]+|[A-Z]+`)

// goReservedWords contains the Go keywords. Predeclared identifiers such as
// "error" may be shadowed and are left alone.
var goReservedWords = map[string]bool{
	"break": true, "case": true, "chan": true, "const": true, "continue": true,
	"default": true, "defer": true, "else": true, "fallthrough": true, "for": true,
	"func": true, "go": true, "goto": true, "if": true, "import": true,
	"interface": true, "map": true, "package": true, "range": true, "return": true,
	"select": true, "struct": true, "switch": true, "type": true, "var": true,
}

// Words splits s into words.
func Words(s string) []string {
	return wordRe.FindAllString(s, -1)
}

// ToSnake joins the words of s with underscores, lowercased.
func ToSnake(s string) string {
	words := Words(s)
	for i, w := range words {
		words[i] = strings.ToLower(w)
	}
	return strings.Join(words, "_")
}

// ToPascal capitalizes the first letter of each word and lowercases the rest.
func ToPascal(s string) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for _, w := range Words(s) {
		b.WriteString(title.String(strings.ToLower(w)))
	}
	return b.String()
}

// ToCamel is ToPascal with the first word lowercased.
func ToCamel(s string) string {
	title := cases.Title(language.English)
	var b strings.Builder
	for i, w := range Words(s) {
		w = strings.ToLower(w)
		if i > 0 {
			w = title.String(w)
		}
		b.WriteString(w)
	}
	return b.String()
}

// TypeName returns an exported Go identifier for s. Text with no usable
// characters yields fallback.
func TypeName(s, fallback string) string {
	return exported(s, fallback, "T")
}

// FieldName returns an exported struct field name for a property.
func FieldName(s string) string {
	return exported(s, "Field", "F")
}

func exported(s, fallback, digitPrefix string) string {
	name := ToPascal(s)
	if name == "" {
		name = fallback
	}
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = digitPrefix + name
	}
	return name
}

// ParamName returns an unexported Go identifier, escaping keywords.
func ParamName(s string) string {
	name := ToCamel(s)
	if name == "" {
		return "param"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "p" + name
	}
	if goReservedWords[name] {
		name += "_"
	}
	return name
}

// OperationComponents synthesizes the name components of an operation that
// has no identifier: the method, then each path segment. A query component
// ("head?a=x&b=y") contributes its head segment and then each parameter name,
// so operations that differ only in their query stay distinct.
func OperationComponents(method, path string) []string {
	parts := []string{strings.ToLower(method)}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		head, query, hasQuery := strings.Cut(seg, "?")
		if head != "" {
			parts = append(parts, head)
		}
		if !hasQuery {
			continue
		}
		for _, kv := range strings.Split(query, "&") {
			name, _, _ := strings.Cut(kv, "=")
			if name != "" {
				parts = append(parts, name)
			}
		}
	}
	return parts
}

// OperationName joins OperationComponents with underscores.
func OperationName(method, path string) string {
	return strings.Join(OperationComponents(method, path), "_")
}

// PackageName returns a lowercase Go package name derived from s.
func PackageName(s string) string {
	name := strings.ReplaceAll(ToSnake(s), "_", "")
	if name == "" {
		return "client"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "api" + name
	}
	if goReservedWords[name] {
		name += "api"
	}
	return name
}
