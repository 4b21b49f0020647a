package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mark3labs/swagger2client/internal/emitter/goemitter"
	"github.com/mark3labs/swagger2client/internal/generate"
)

type documentInput struct {
	URI         string   `json:"uri"                    jsonschema:"Document URI: file://, http:// or https://"`
	Root        string   `json:"root,omitempty"         jsonschema:"Directory relative file:// paths resolve against"`
	BaseURL     string   `json:"base_url,omitempty"     jsonschema:"Override the base URL declared by the document"`
	Package     string   `json:"package,omitempty"      jsonschema:"Go package name (default: derived from the title)"`
	Validate    bool     `json:"validate,omitempty"     jsonschema:"Run structural validation before generating"`
	IncludeTags []string `json:"include_tags,omitempty" jsonschema:"Only include operations with these tags"`
	ExcludeTags []string `json:"exclude_tags,omitempty" jsonschema:"Exclude operations with these tags"`
}

func (in documentInput) options(h *handlers) generate.Options {
	return generate.Options{
		Input:       strings.TrimSpace(in.URI),
		Root:        in.Root,
		BaseURL:     in.BaseURL,
		Package:     in.Package,
		Validate:    in.Validate,
		IncludeTags: in.IncludeTags,
		ExcludeTags: in.ExcludeTags,
		Logger:      h.logger,
	}
}

type generateInput struct {
	Document  documentInput `json:"document"          jsonschema:"The document to generate from"`
	OutputDir string        `json:"output_dir"        jsonschema:"Directory to write the package to"`
	DryRun    bool          `json:"dry_run,omitempty" jsonschema:"Plan the files without writing them"`
	Force     bool          `json:"force,omitempty"   jsonschema:"Overwrite a non-empty output directory"`
}

type generatedFileInfo struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type generateOutput struct {
	Package   string              `json:"package"`
	OutputDir string              `json:"output_dir"`
	BaseURL   string              `json:"base_url"`
	DryRun    bool                `json:"dry_run"`
	Methods   int                 `json:"methods"`
	Models    int                 `json:"models"`
	Files     []generatedFileInfo `json:"files"`
}

func (h *handlers) handleGenerate(ctx context.Context, _ *mcp.CallToolRequest, input generateInput) (*mcp.CallToolResult, generateOutput, error) {
	if strings.TrimSpace(input.OutputDir) == "" {
		return errResult(fmt.Errorf("output_dir is required")), generateOutput{}, nil
	}
	res, err := generate.Run(ctx, input.Document.options(h))
	if err != nil {
		return errResult(err), generateOutput{}, nil
	}
	emitted, err := goemitter.Emit(ctx, res.Files, goemitter.Options{
		OutDir: input.OutputDir,
		Force:  input.Force,
		DryRun: input.DryRun,
		Logger: h.logger,
	})
	if err != nil {
		return errResult(err), generateOutput{}, nil
	}

	output := generateOutput{
		Package:   res.Artifact.Package,
		OutputDir: input.OutputDir,
		BaseURL:   res.Artifact.BaseURL,
		DryRun:    input.DryRun,
		Methods:   len(res.Artifact.Methods),
		Models:    len(res.Artifact.Models),
		Files:     make([]generatedFileInfo, 0, len(emitted.Planned)),
	}
	for _, p := range emitted.Planned {
		output.Files = append(output.Files, generatedFileInfo{Name: p.RelPath, Size: p.Size})
	}
	return nil, output, nil
}

type methodInfo struct {
	Name       string `json:"name"`
	HTTPMethod string `json:"http_method"`
	Path       string `json:"path"`
	Result     string `json:"result,omitempty"`
}

type modelInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Pointer string `json:"pointer,omitempty"`
}

type describeOutput struct {
	Package string       `json:"package"`
	BaseURL string       `json:"base_url"`
	Servers []string     `json:"servers,omitempty"`
	Methods []methodInfo `json:"methods"`
	Models  []modelInfo  `json:"models"`
}

func (h *handlers) handleDescribe(ctx context.Context, _ *mcp.CallToolRequest, input documentInput) (*mcp.CallToolResult, describeOutput, error) {
	res, err := generate.Run(ctx, input.options(h))
	if err != nil {
		return errResult(err), describeOutput{}, nil
	}
	art := res.Artifact
	output := describeOutput{
		Package: art.Package,
		BaseURL: art.BaseURL,
		Methods: make([]methodInfo, 0, len(art.Methods)),
		Models:  make([]modelInfo, 0, len(art.Models)),
	}
	for _, s := range art.Servers {
		output.Servers = append(output.Servers, s.Name+"="+s.URL)
	}
	for _, m := range art.Methods {
		result := m.Result
		if m.ResultPointer {
			result = "*" + result
		}
		output.Methods = append(output.Methods, methodInfo{Name: m.Name, HTTPMethod: m.HTTPMethod, Path: m.Path, Result: result})
	}
	for _, m := range art.Models {
		output.Models = append(output.Models, modelInfo{Name: m.Identifier, Kind: m.Kind.String(), Pointer: m.Pointer})
	}
	return nil, output, nil
}
