package source

import (
	"context"
	"fmt"
	"io"

	"github.com/alevsk/rollout-scope/internal/renderer"
	"github.com/spf13/afero"
)

// FileResolver implements Resolver for a single YAML file
type FileResolver struct {
	source string
	opts   *Options
}

// NewFileResolver creates a new FileResolver
func NewFileResolver(source string, opts *Options) *FileResolver {
	return &FileResolver{source: source, opts: opts.withDefaults()}
}

// CanResolve checks the file exists and has a YAML extension
func (r *FileResolver) CanResolve(source string) bool {
	info, err := r.opts.Fs.Stat(source)
	if err != nil || info.IsDir() {
		return false
	}
	return isYAMLFile(source)
}

// Resolve reads and parses the file
func (r *FileResolver) Resolve(ctx context.Context) (*renderer.Result, *Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	info, err := r.opts.Fs.Stat(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("%w: not a regular file: %s", ErrInvalidSource, r.source)
	}

	content, err := afero.ReadFile(r.opts.Fs, r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read file: %w", err)
	}

	result, err := renderYAML(ctx, r.source, content)
	if err != nil {
		return nil, nil, err
	}

	return result, &Metadata{
		Name:         r.source,
		Version:      result.Version,
		Type:         SourceTypeFile,
		RendererType: renderer.RendererTypeYAML,
		Path:         r.source,
		Size:         info.Size(),
		Files:        1,
		ModTime:      info.ModTime(),
	}, nil
}

// StdinResolver implements Resolver for manifests piped on standard input
type StdinResolver struct {
	opts *Options
}

// NewStdinResolver creates a new StdinResolver
func NewStdinResolver(opts *Options) *StdinResolver {
	return &StdinResolver{opts: opts.withDefaults()}
}

// CanResolve accepts only "-"
func (r *StdinResolver) CanResolve(source string) bool {
	return source == Stdin
}

// Resolve reads standard input to the end and parses it
func (r *StdinResolver) Resolve(ctx context.Context) (*renderer.Result, *Metadata, error) {
	content, err := io.ReadAll(r.opts.Stdin)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	result, err := renderYAML(ctx, "stdin", content)
	if err != nil {
		return nil, nil, err
	}
	return result, &Metadata{
		Name:         "stdin",
		Version:      result.Version,
		Type:         SourceTypeStdin,
		RendererType: renderer.RendererTypeYAML,
		Path:         Stdin,
		Size:         int64(len(content)),
		Files:        1,
	}, nil
}

func renderYAML(ctx context.Context, name string, content []byte) (*renderer.Result, error) {
	r := renderer.NewYAMLRenderer()
	opts := renderer.DefaultOptions()
	opts.Source = name
	if err := r.SetOptions(opts); err != nil {
		return nil, err
	}
	return r.Render(ctx, content)
}
