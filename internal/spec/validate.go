package spec

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
)

// Validate runs a structural validation of doc. 2.x documents are converted
// to 3.0 first. Unresolved references are left to the resolver, which
// reports them with the exact pointer.
func Validate(ctx context.Context, doc *Document) error {
	if doc == nil {
		return Errorf(InvalidInput, "nil document")
	}
	data, err := doc.JSON()
	if err != nil {
		return err
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	var v3 *openapi3.T
	switch doc.Grammar {
	case GrammarOpenAPI3:
		v3, err = loader.LoadFromData(data)
		if err != nil {
			return mapValidateErr(err)
		}
	case GrammarSwagger2:
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return mapValidateErr(err)
		}
		v3, err = openapi2conv.ToV3(&v2)
		if err != nil {
			return Errorf(InvalidInput, "convert 2.x document for validation").WithCause(err)
		}
		if err := loader.ResolveRefsIn(v3, nil); err != nil && !canProceedDespiteValidation(err) {
			return mapValidateErr(err)
		}
	default:
		return Errorf(InvalidInput, "unknown document grammar")
	}

	if err := v3.Validate(ctx); err != nil && !canProceedDespiteValidation(err) {
		return mapValidateErr(err)
	}
	return nil
}

func mapValidateErr(err error) *Error {
	return Errorf(InvalidInput, "document failed validation").
		WithPointer(extractJSONPointer(err)).
		WithCause(err)
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	// Take the first of a MultiError for brevity.
	var me openapi3.MultiError
	if errors.As(err, &me) && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			segs := make([]string, len(parts))
			for i, p := range parts {
				segs[i] = EscapeSegment(p)
			}
			return "#/" + strings.Join(segs, "/")
		}
	}
	if m := jsonPtrRe.FindString(err.Error()); m != "" {
		return m
	}
	return ""
}

// canProceedDespiteValidation returns true for validation errors that the
// resolver reports more precisely later on.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unresolved ref") || strings.Contains(s, "found unresolved ref")
}
