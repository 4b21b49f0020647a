// Package mcpserver exposes client generation as MCP (Model Context
// Protocol) tools over stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mark3labs/swagger2client/internal/spec"
)

const serverInstructions = `swagger2client MCP server: generates Go HTTP client packages from Swagger 2.0 and OpenAPI 3.0 documents.

Documents are named by URI: file:// (relative paths resolve against "root", default the server's working directory), http:// or https://.

Use describe_client first to preview the methods and models a document produces, then generate_client to write the package. Errors carry the offending document pointer and a hint.`

// Run starts the MCP server over stdio and blocks until the client
// disconnects or the context is cancelled.
func Run(ctx context.Context, version string, logger *slog.Logger) error {
	return NewServer(version, logger).Run(ctx, &mcp.StdioTransport{})
}

// NewServer returns a server with every tool registered.
func NewServer(version string, logger *slog.Logger) *mcp.Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := mcp.NewServer(
		&mcp.Implementation{Name: "swagger2client", Version: version},
		&mcp.ServerOptions{Instructions: serverInstructions},
	)
	registerAllTools(server, &handlers{logger: logger})
	return server
}

type handlers struct {
	logger *slog.Logger
}

func registerAllTools(server *mcp.Server, h *handlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_client",
		Description: "Generate a Go HTTP client package from a Swagger 2.0 or OpenAPI 3.0 document (given as \"document\" with the same fields describe_client takes) and write doc.go, client.go, models.go and transport.go to output_dir. Use dry_run=true to get the file plan without writing. A non-empty output_dir requires force=true.",
	}, h.handleGenerate)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "describe_client",
		Description: "Preview the Go client a document would produce: package name, base URL, named servers, methods (HTTP method, path, result type) and models (name, kind, source pointer). Nothing is written.",
	}, h.handleDescribe)
}

// pathPattern strips absolute filesystem paths from error messages.
var pathPattern = regexp.MustCompile(`(?:/(?:home|tmp|var|Users|etc|opt|usr|private|root|mnt|srv|run|snap|nix)[a-zA-Z0-9._/-]*)`)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var se *spec.Error
	if errors.As(err, &se) {
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s", se.Kind, msg)
		if se.Pointer != "" {
			fmt.Fprintf(&b, "\nPointer: %s", se.Pointer)
		}
		if se.Hint != "" {
			fmt.Fprintf(&b, "\nHint: %s", se.Hint)
		}
		msg = b.String()
	}
	return pathPattern.ReplaceAllString(msg, "<path>")
}

// errResult creates an MCP error result from an error.
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: sanitizeError(err)}},
	}
}
