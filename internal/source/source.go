// Package source loads manifest objects from local files, directories, Helm
// charts, Kustomize directories, remote URLs and standard input.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alevsk/rollout-scope/internal/manifest"
	"github.com/alevsk/rollout-scope/internal/renderer"
	"github.com/spf13/afero"
)

// DefaultInclude selects the files read from a plain YAML directory
const DefaultInclude = "**/*.{yaml,yml}"

// Stdin is the source name that reads manifests from Options.Stdin
const Stdin = "-"

// Error types for the source package
var (
	ErrInvalidSource = fmt.Errorf("invalid source")
	ErrNoManifests   = fmt.Errorf("no manifest files found")
)

// SourceType represents the type of source being resolved
type SourceType int

const (
	// SourceTypeUnknown represents an unknown source type
	SourceTypeUnknown SourceType = iota
	// SourceTypeFile represents a single YAML file
	SourceTypeFile
	// SourceTypeRemote represents a remote HTTP/HTTPS resource
	SourceTypeRemote
	// SourceTypeFolder represents a directory
	SourceTypeFolder
	// SourceTypeStdin represents standard input
	SourceTypeStdin
)

func (t SourceType) String() string {
	switch t {
	case SourceTypeFile:
		return "file"
	case SourceTypeRemote:
		return "remote"
	case SourceTypeFolder:
		return "folder"
	case SourceTypeStdin:
		return "stdin"
	default:
		return "unknown"
	}
}

// Metadata contains information about the resolved source
type Metadata struct {
	// Name of the artifact, e.g. the chart name
	Name string
	// Version of the artifact
	Version string
	// Type is the source type (file, folder, remote, stdin)
	Type SourceType
	// RendererType indicates the renderer used (yaml, helm, kustomize)
	RendererType renderer.RendererType
	// Path is the path or URL of the source
	Path string
	// Size is the number of bytes read
	Size int64
	// Files is the number of files read
	Files int
	// ModTime is the last modification time of the source
	ModTime time.Time
}

// Options holds configuration for resolvers
type Options struct {
	// Fs is the filesystem local sources are read from
	Fs afero.Fs
	// Include is a doublestar pattern selecting files in plain YAML directories
	Include string
	// HTTPClient fetches remote sources
	HTTPClient *http.Client
	// Stdin is read when the source is "-"
	Stdin io.Reader
	// Render is passed to the Helm and Kustomize renderers
	Render *renderer.Options
}

// DefaultOptions returns options reading from the OS filesystem
func DefaultOptions() *Options {
	return &Options{
		Fs:         afero.NewOsFs(),
		Include:    DefaultInclude,
		HTTPClient: &http.Client{Timeout: defaultHTTPTimeout},
		Stdin:      os.Stdin,
		Render:     renderer.DefaultOptions(),
	}
}

func (o *Options) withDefaults() *Options {
	def := DefaultOptions()
	if o == nil {
		return def
	}
	opts := *o
	if opts.Fs == nil {
		opts.Fs = def.Fs
	}
	if opts.Include == "" {
		opts.Include = def.Include
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = def.HTTPClient
	}
	if opts.Stdin == nil {
		opts.Stdin = def.Stdin
	}
	if opts.Render == nil {
		opts.Render = def.Render
	}
	return &opts
}

// renderOptions returns a copy of the render options labelled with source
func (o *Options) renderOptions(source string) *renderer.Options {
	ro := *o.Render
	ro.Source = source
	return &ro
}

// Resolver loads one kind of source
type Resolver interface {
	// CanResolve checks if this resolver can handle the given source
	CanResolve(source string) bool
	// Resolve reads and renders the source
	Resolve(ctx context.Context) (*renderer.Result, *Metadata, error)
}

// New returns the resolver for source: "-" for standard input, http(s) URLs,
// directories and finally single files.
func New(source string, opts *Options) (Resolver, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("%w: empty source", ErrInvalidSource)
	}
	opts = opts.withDefaults()

	if source == Stdin {
		return NewStdinResolver(opts), nil
	}
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return NewRemoteResolver(source, opts)
	}

	info, err := opts.Fs.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if info.IsDir() {
		return NewFolderResolver(source, opts), nil
	}
	r := NewFileResolver(source, opts)
	if !r.CanResolve(source) {
		return nil, fmt.Errorf("%w: not a YAML file: %s", ErrInvalidSource, source)
	}
	return r, nil
}

// Load resolves source and returns its objects.
func Load(ctx context.Context, source string, opts *Options) ([]*manifest.Object, *Metadata, error) {
	r, err := New(source, opts)
	if err != nil {
		return nil, nil, err
	}
	result, meta, err := r.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	return result.Objects, meta, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
