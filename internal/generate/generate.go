// Package generate runs the whole pipeline for one input document: read,
// parse, normalize, assemble and render.
package generate

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mark3labs/swagger2client/internal/codegen"
	"github.com/mark3labs/swagger2client/internal/resource"
	"github.com/mark3labs/swagger2client/internal/spec"
)

// Options configures Run.
type Options struct {
	// Input is a document URI: file://, http:// or https://.
	Input string
	// Root resolves relative file:// paths.
	Root string
	// BaseURL overrides the base URL taken from the document.
	BaseURL string
	// Package names the generated package; derived from the title when empty.
	Package string
	// Validate runs a structural validation of the document first.
	Validate bool
	// Timeout bounds each HTTP request made to fetch Input.
	Timeout    time.Duration
	MaxRetries int

	IncludeTags  []string
	ExcludeTags  []string
	Methods      []string
	PathPatterns []string

	Logger *slog.Logger
}

// Result is the outcome of a successful run.
type Result struct {
	API      *spec.API
	Artifact *codegen.Artifact
	Files    []codegen.File
}

// Run executes the pipeline. Every error it returns is a *spec.Error whose
// Source is opts.Input.
func Run(ctx context.Context, opts Options) (*Result, error) {
	res, err := run(ctx, opts)
	if err != nil {
		return nil, spec.AttachSource(err, opts.Input)
	}
	return res, nil
}

func run(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	input := strings.TrimSpace(opts.Input)
	if input == "" {
		return nil, spec.Errorf(spec.InvalidInput, "no input document given").
			WithHint("pass --input with a file:// or http(s):// URI")
	}

	readOpts := []resource.Option{resource.WithRoot(opts.Root), resource.WithLogger(logger)}
	if opts.Timeout > 0 {
		readOpts = append(readOpts, resource.WithHTTPTimeout(opts.Timeout))
	}
	if opts.MaxRetries > 0 {
		readOpts = append(readOpts, resource.WithMaxRetries(opts.MaxRetries))
	}
	data, err := resource.Read(ctx, input, readOpts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("read document", "input", input, "bytes", len(data))

	doc, err := spec.Parse(data)
	if err != nil {
		return nil, err
	}
	logger.Debug("parsed document", "grammar", doc.Grammar.String(), "version", doc.Version)

	if opts.Validate {
		if err := spec.Validate(ctx, doc); err != nil {
			return nil, err
		}
		logger.Debug("document is valid")
	}

	methods := make([]spec.HttpMethod, 0, len(opts.Methods))
	for _, m := range opts.Methods {
		if m = strings.TrimSpace(m); m != "" {
			methods = append(methods, spec.HttpMethod(m))
		}
	}
	api, err := spec.Normalize(doc,
		spec.WithBaseURL(opts.BaseURL),
		spec.WithIncludeTags(opts.IncludeTags),
		spec.WithExcludeTags(opts.ExcludeTags),
		spec.WithMethods(methods),
		spec.WithPathPatterns(opts.PathPatterns),
	)
	if err != nil {
		return nil, err
	}
	logger.Debug("normalized document", "operations", len(api.Operations), "schemas", len(api.Schemas), "baseURL", api.BaseURL)

	art, err := codegen.Assemble(api, spec.NewResolver(doc),
		codegen.WithPackage(opts.Package),
		codegen.WithAssembleLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	files, err := codegen.Render(art)
	if err != nil {
		return nil, spec.Errorf(spec.InvalidInput, "render client package %s", art.Package).WithCause(err)
	}
	return &Result{API: api, Artifact: art, Files: files}, nil
}
