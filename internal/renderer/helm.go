package renderer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/alevsk/rollout-scope/internal/manifest"
	"helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/chartutil"
	"helm.sh/helm/v3/pkg/engine"
)

// HelmRenderer implements Renderer for Helm charts, loaded either from a
// packaged archive passed to Render or from files added with AddFile.
type HelmRenderer struct {
	opts  *Options
	files map[string][]byte
	mux   sync.RWMutex
}

// NewHelmRenderer creates a new HelmRenderer
func NewHelmRenderer(opts *Options) *HelmRenderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HelmRenderer{opts: opts, files: make(map[string][]byte)}
}

func (r *HelmRenderer) load(input []byte) (*chart.Chart, error) {
	r.mux.RLock()
	defer r.mux.RUnlock()

	if len(r.files) == 0 {
		if len(input) == 0 {
			return nil, fmt.Errorf("%w: no chart archive or files", ErrInvalidInput)
		}
		return loader.LoadArchive(bytes.NewReader(input))
	}

	files := make([]*loader.BufferedFile, 0, len(r.files))
	for name, content := range r.files {
		files = append(files, &loader.BufferedFile{Name: name, Data: content})
	}
	return loader.LoadFiles(files)
}

// Validate checks if the input, or the added files, form a loadable chart
func (r *HelmRenderer) Validate(input []byte) error {
	if _, err := r.load(input); err != nil {
		return fmt.Errorf("%w: invalid helm chart: %v", ErrInvalidInput, err)
	}
	return nil
}

// Render renders the chart templates and parses the output. Templates are
// processed in name order so the object order is stable.
func (r *HelmRenderer) Render(ctx context.Context, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chrt, err := r.load(input)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}

	values := map[string]interface{}{}
	if len(r.opts.Values) > 0 {
		values, err = chartutil.ReadValues(r.opts.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to read values: %w", err)
		}
	}

	releaseName := r.opts.ReleaseName
	if releaseName == "" {
		releaseName = chrt.Name()
	}
	namespace := r.opts.Namespace
	if namespace == "" {
		namespace = "default"
	}
	options := chartutil.ReleaseOptions{
		Name:      releaseName,
		Namespace: namespace,
		Revision:  1,
		IsInstall: true,
	}

	valuesToRender, err := chartutil.ToRenderValues(chrt, values, options, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart values: %w", err)
	}

	rendered, err := engine.Engine{Strict: true}.Render(chrt, valuesToRender)
	if err != nil {
		return nil, fmt.Errorf("failed to render templates: %w", err)
	}

	names := make([]string, 0, len(rendered))
	for name := range rendered {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &Result{
		Name:    chrt.Name(),
		Version: chrt.Metadata.Version,
	}
	for _, name := range names {
		content := rendered[name]
		if strings.TrimSpace(content) == "" || path.Base(name) == "NOTES.txt" {
			continue
		}
		objects, err := manifest.ParseReader(name, strings.NewReader(content))
		if err != nil {
			return nil, err
		}
		if len(objects) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: rendered no documents", name))
		}
		result.Objects = append(result.Objects, objects...)
	}

	return result, nil
}

// SetOptions configures the renderer with the provided options
func (r *HelmRenderer) SetOptions(opts *Options) error {
	if err := validateOptions(opts); err != nil {
		return err
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *HelmRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile adds a chart file, relative to the chart root
func (r *HelmRenderer) AddFile(name string, content []byte) error {
	if name == "" {
		return fmt.Errorf("%w: file name cannot be empty", ErrInvalidInput)
	}
	if content == nil {
		return fmt.Errorf("%w: file content cannot be nil", ErrInvalidInput)
	}
	r.mux.Lock()
	defer r.mux.Unlock()
	r.files[name] = content
	return nil
}
