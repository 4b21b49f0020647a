// Package resource reads API documents named by a URI. Supported schemes are
// file, http and https.
package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/swagger2client/internal/spec"
)

// Settings configures Read.
type Settings struct {
	// Root resolves relative file:// paths. Empty means the working directory.
	Root string
	// HTTPTimeout bounds each HTTP request.
	HTTPTimeout time.Duration
	// MaxRetries is the number of attempts for transient HTTP failures
	// (>=500, 429, or network errors).
	MaxRetries int
	// BackoffBase is the base delay for exponential backoff.
	BackoffBase time.Duration
	// Client overrides the HTTP client; HTTPTimeout is ignored when set.
	Client *http.Client
	Logger *slog.Logger
}

// DefaultSettings returns a single attempt with a ten second timeout.
func DefaultSettings() Settings {
	return Settings{
		HTTPTimeout: 10 * time.Second,
		MaxRetries:  1,
		BackoffBase: 200 * time.Millisecond,
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithRoot(dir string) Option             { return func(s *Settings) { s.Root = dir } }
func WithHTTPTimeout(d time.Duration) Option { return func(s *Settings) { s.HTTPTimeout = d } }
func WithMaxRetries(n int) Option            { return func(s *Settings) { s.MaxRetries = n } }
func WithBackoffBase(d time.Duration) Option { return func(s *Settings) { s.BackoffBase = d } }
func WithHTTPClient(c *http.Client) Option   { return func(s *Settings) { s.Client = c } }
func WithLogger(l *slog.Logger) Option       { return func(s *Settings) { s.Logger = l } }

// Read returns the bytes named by uri, which must have the form
// "<scheme>://<path>".
func Read(ctx context.Context, uri string, opts ...Option) ([]byte, error) {
	settings := DefaultSettings()
	for _, opt := range opts {
		opt(&settings)
	}
	logger := settings.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	scheme, path, ok := strings.Cut(uri, "://")
	if !ok {
		return nil, spec.Errorf(spec.InvalidInput, "resource URI %q must contain '://' separating scheme and path", uri).
			WithHint("use file://path/to/spec.yaml or an http(s) URL")
	}
	switch strings.ToLower(scheme) {
	case "file":
		full := FilePath(path, settings.Root)
		logger.Debug("reading file", "path", full)
		data, err := os.ReadFile(full)
		if err != nil {
			return nil, spec.Errorf(spec.ResourceLoadFailed, "read %s: %v", full, err).WithCause(err)
		}
		return data, nil
	case "http", "https":
		logger.Debug("fetching document", "url", uri, "attempts", settings.MaxRetries)
		data, err := fetchWithRetry(ctx, uri, settings)
		if err != nil {
			return nil, spec.Errorf(spec.ResourceLoadFailed, "fetch %s: %v", uri, err).WithCause(err)
		}
		return data, nil
	default:
		return nil, spec.Errorf(spec.UnsupportedProtocol, "unsupported protocol %q", scheme).
			WithHint("supported protocols are file, http and https")
	}
}

// FilePath maps the path part of a file:// URI to a filesystem path. Paths
// that are not absolute resolve against root.
func FilePath(path, root string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if root == "" {
		root = "."
	}
	return filepath.Join(root, path)
}

// FileURI turns a bare filesystem path into a file:// URI. Values that
// already carry a scheme are returned unchanged.
func FileURI(pathOrURI string) string {
	if strings.Contains(pathOrURI, "://") {
		return pathOrURI
	}
	return "file://" + filepath.ToSlash(pathOrURI)
}

func fetchWithRetry(ctx context.Context, rawURL string, settings Settings) ([]byte, error) {
	client := settings.Client
	if client == nil {
		client = &http.Client{Timeout: settings.HTTPTimeout}
	}
	var lastErr error
	backoff := settings.BackoffBase
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	attempts := settings.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		body, retry, err := fetchOnce(ctx, client, rawURL)
		if err == nil {
			return body, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if lastErr == nil {
		lastErr = errors.New("fetch failed")
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. retry reports whether the failure is
// transient.
func fetchOnce(ctx context.Context, client *http.Client, rawURL string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 300 {
		body, err = io.ReadAll(resp.Body)
		return body, false, err
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, fmt.Errorf("transient http error %d", resp.StatusCode)
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return nil, false, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
