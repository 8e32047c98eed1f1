package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/alevsk/rollout-scope/internal/renderer"
)

// Default timeout for HTTP requests
const defaultHTTPTimeout = 30 * time.Second

// maxRemoteSize bounds the body read from a remote source
const maxRemoteSize = 32 << 20

// RemoteResolver implements Resolver for remote HTTP/HTTPS YAML resources
type RemoteResolver struct {
	source string
	opts   *Options
}

// NewRemoteResolver creates a new RemoteResolver
func NewRemoteResolver(source string, opts *Options) (*RemoteResolver, error) {
	r := &RemoteResolver{source: source, opts: opts.withDefaults()}
	if !r.CanResolve(source) {
		return nil, fmt.Errorf("%w: URL does not point to a YAML file: %s", ErrInvalidSource, source)
	}
	return r, nil
}

// CanResolve checks for an http(s) URL with a YAML extension
func (r *RemoteResolver) CanResolve(source string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return isYAMLFile(path.Base(u.Path))
}

// Resolve fetches and parses the remote document
func (r *RemoteResolver) Resolve(ctx context.Context) (*renderer.Result, *Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/yaml,text/yaml,text/plain")
	req.Header.Set("User-Agent", "rollout-scope")

	resp, err := r.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("HTTP request failed with status: %s", resp.Status)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(content) > maxRemoteSize {
		return nil, nil, fmt.Errorf("%w: response larger than %d bytes", ErrInvalidSource, maxRemoteSize)
	}

	name := r.source
	if u, err := url.Parse(r.source); err == nil {
		name = strings.TrimPrefix(u.Path, "/")
	}
	result, err := renderYAML(ctx, name, content)
	if err != nil {
		return nil, nil, err
	}

	modTime := time.Now()
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		modTime = lm
	}

	return result, &Metadata{
		Name:         name,
		Version:      result.Version,
		Type:         SourceTypeRemote,
		RendererType: renderer.RendererTypeYAML,
		Path:         r.source,
		Size:         int64(len(content)),
		Files:        1,
		ModTime:      modTime,
	}, nil
}
