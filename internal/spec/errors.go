package spec

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes generation errors for clearer handling and messaging.
type Kind string

const (
	InvalidInput            Kind = "InvalidInput"
	InvalidReference        Kind = "InvalidReference"
	UnsupportedReference    Kind = "UnsupportedReference"
	UnsupportedProtocol     Kind = "UnsupportedProtocol"
	ResourceLoadFailed      Kind = "ResourceLoadFailed"
	UnimplementedFeature    Kind = "UnimplementedFeature"
	ConfigurationIncomplete Kind = "ConfigurationIncomplete"
)

// Sentinel errors for use with errors.Is.
var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidReference        = errors.New("invalid reference")
	ErrUnsupportedReference    = errors.New("unsupported reference")
	ErrUnsupportedProtocol     = errors.New("unsupported protocol")
	ErrResourceLoadFailed      = errors.New("resource load failed")
	ErrUnimplementedFeature    = errors.New("unimplemented feature")
	ErrConfigurationIncomplete = errors.New("configuration incomplete")
)

var sentinels = map[Kind]error{
	InvalidInput:            ErrInvalidInput,
	InvalidReference:        ErrInvalidReference,
	UnsupportedReference:    ErrUnsupportedReference,
	UnsupportedProtocol:     ErrUnsupportedProtocol,
	ResourceLoadFailed:      ErrResourceLoadFailed,
	UnimplementedFeature:    ErrUnimplementedFeature,
	ConfigurationIncomplete: ErrConfigurationIncomplete,
}

// Error is the single diagnostic produced by a failed generation run.
type Error struct {
	Kind    Kind
	Message string
	// Source is the document-reference literal (the input URI) of the run.
	Source string
	// Pointer is the offending document pointer, e.g. "#/components/schemas/Pet".
	Pointer string
	// Hint is optional remediation text for the operator.
	Hint  string
	Cause error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Pointer != "" && !strings.Contains(e.Message, e.Pointer) {
		fmt.Fprintf(&b, " (at %s)", e.Pointer)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel of the error's kind. Unsupported references are
// also unimplemented features.
func (e *Error) Is(target error) bool {
	if s, ok := sentinels[e.Kind]; ok && s == target {
		return true
	}
	return e.Kind == UnsupportedReference && target == ErrUnimplementedFeature
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithPointer sets the offending pointer and returns e.
func (e *Error) WithPointer(ptr string) *Error {
	e.Pointer = ptr
	return e
}

// WithHint sets the remediation hint and returns e.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// WithCause sets the underlying cause and returns e.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// AttachSource stamps the input literal on err. Errors that are not *Error
// are wrapped as InvalidInput so every failure leaving the pipeline carries
// the same diagnostic shape.
func AttachSource(err error, source string) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		if se.Source == "" {
			se.Source = source
		}
		return se
	}
	return &Error{Kind: InvalidInput, Message: "generation failed", Source: source, Cause: err}
}
