package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alevsk/rollout-scope/internal/logger"
	"github.com/alevsk/rollout-scope/internal/renderer"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

// FolderResolver implements Resolver for directories: Helm charts,
// Kustomize roots, or trees of plain YAML files.
type FolderResolver struct {
	source string
	opts   *Options
}

// NewFolderResolver creates a new FolderResolver
func NewFolderResolver(source string, opts *Options) *FolderResolver {
	return &FolderResolver{source: source, opts: opts.withDefaults()}
}

// CanResolve checks if source is a directory
func (r *FolderResolver) CanResolve(source string) bool {
	info, err := r.opts.Fs.Stat(source)
	if err != nil {
		return false
	}
	return info.IsDir()
}

type folderFile struct {
	rel     string
	content []byte
}

// walk returns the files under the source root whose slash separated
// relative path matches include, in lexical order. An empty include keeps
// every file.
func (r *FolderResolver) walk(ctx context.Context, include string) ([]folderFile, int64, error) {
	var files []folderFile
	var total int64
	err := afero.Walk(r.opts.Fs, r.source, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.source, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", path, err)
		}
		rel = filepath.ToSlash(rel)
		if include != "" {
			match, err := doublestar.Match(include, rel)
			if err != nil {
				return fmt.Errorf("invalid include pattern %q: %w", include, err)
			}
			if !match {
				return nil
			}
		}
		content, err := afero.ReadFile(r.opts.Fs, path)
		if err != nil {
			return fmt.Errorf("failed to read file %s: %w", path, err)
		}
		files = append(files, folderFile{rel: rel, content: content})
		total += info.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, total, nil
}

// Resolve detects the directory flavour and renders it
func (r *FolderResolver) Resolve(ctx context.Context) (*renderer.Result, *Metadata, error) {
	info, err := r.opts.Fs.Stat(r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, nil, fmt.Errorf("%w: not a directory: %s", ErrInvalidSource, r.source)
	}

	rendererType, marker, err := DetectRendererType(r.opts.Fs, r.source)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to detect renderer type: %w", err)
	}
	logger.Debug().Str("source", r.source).Str("renderer", string(rendererType)).Msg("resolving directory")

	meta := &Metadata{
		Type:         SourceTypeFolder,
		RendererType: rendererType,
		Path:         r.source,
		ModTime:      info.ModTime(),
	}

	var result *renderer.Result
	if rendererType == renderer.RendererTypeYAML {
		result, err = r.resolveYAML(ctx, meta)
	} else {
		result, err = r.resolveRendered(ctx, rendererType, marker, meta)
	}
	if err != nil {
		return nil, nil, err
	}

	meta.Name = result.Name
	meta.Version = result.Version
	return result, meta, nil
}

// resolveRendered hands every file of a chart or kustomization to its renderer
func (r *FolderResolver) resolveRendered(ctx context.Context, typ renderer.RendererType, marker string, meta *Metadata) (*renderer.Result, error) {
	files, total, err := r.walk(ctx, "")
	if err != nil {
		return nil, err
	}
	meta.Files, meta.Size = len(files), total

	rend, err := renderer.NewRendererFactory(r.opts.renderOptions(r.source)).GetRenderer(typ)
	if err != nil {
		return nil, fmt.Errorf("failed to get renderer: %w", err)
	}

	var main []byte
	for _, f := range files {
		if err := rend.AddFile(f.rel, f.content); err != nil {
			return nil, fmt.Errorf("failed to add file %s: %w", f.rel, err)
		}
		if f.rel == marker {
			main = f.content
		}
	}

	// helm renders from the added files; the input is only read for archives
	if typ == renderer.RendererTypeHelm {
		main = nil
	}
	result, err := rend.Render(ctx, main)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", r.source, err)
	}
	return result, nil
}

// resolveYAML parses every included file, keeping file then document order
func (r *FolderResolver) resolveYAML(ctx context.Context, meta *Metadata) (*renderer.Result, error) {
	files, total, err := r.walk(ctx, r.opts.Include)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s matching %s", ErrNoManifests, r.source, r.opts.Include)
	}
	meta.Files, meta.Size = len(files), total

	var combined []byte
	result := &renderer.Result{}
	for _, f := range files {
		sub, err := renderYAML(ctx, filepath.Join(r.source, filepath.FromSlash(f.rel)), f.content)
		if err != nil {
			return nil, err
		}
		result.Objects = append(result.Objects, sub.Objects...)
		result.Warnings = append(result.Warnings, sub.Warnings...)
		combined = append(combined, f.content...)
	}
	result.Version = renderer.Digest(combined)
	return result, nil
}
