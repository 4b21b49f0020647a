package goemitter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/swagger2client/internal/codegen"
)

// Options controls where and how the rendered client package is written.
type Options struct {
	OutDir string // required; the package directory
	Force  bool   // overwrite a non-empty directory
	DryRun bool   // don't write, only plan
	Logger *slog.Logger
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result lists the planned files and the absolute output directory.
type Result struct {
	OutDir  string
	Planned []PlannedFile
}

// Emit writes the rendered files of a client package into opts.OutDir.
func Emit(ctx context.Context, rendered []codegen.File, opts Options) (*Result, error) {
	if len(rendered) == 0 {
		return nil, fmt.Errorf("goemitter: nothing to emit")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("goemitter: OutDir is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	abs, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("resolve out dir: %w", err)
	}

	files := make(map[string][]byte, len(rendered))
	for _, f := range rendered {
		rel := filepath.ToSlash(filepath.Clean(f.Name))
		if rel == "." || strings.HasPrefix(rel, "../") || filepath.IsAbs(f.Name) {
			return nil, fmt.Errorf("goemitter: file %q escapes the output directory", f.Name)
		}
		if _, dup := files[rel]; dup {
			return nil, fmt.Errorf("goemitter: file %q rendered twice", rel)
		}
		files[rel] = f.Content
	}

	// Plan in deterministic order
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)

	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFiles(abs, rels, files, opts.Force); err != nil {
			return nil, err
		}
		logger.Info("wrote client package", "dir", abs, "files", len(rels))
	}

	return &Result{OutDir: abs, Planned: planned}, nil
}

func writeFiles(abs string, rels []string, files map[string][]byte, force bool) error {
	// Pre-flight: if directory exists and not empty and not force, error.
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("goemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for _, rel := range rels {
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		// atomic write via temp file + rename
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, files[rel], 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
