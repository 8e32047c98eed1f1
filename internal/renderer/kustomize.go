package renderer

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/alevsk/rollout-scope/internal/manifest"
	yaml "gopkg.in/yaml.v3"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/kustomize/kyaml/filesys"
)

// KustomizeRenderer implements Renderer for Kustomize directories
type KustomizeRenderer struct {
	opts  *Options
	files map[string][]byte // Map to store files where key is the file name and value is the content
	mux   sync.RWMutex      // Mutex to protect concurrent access to files map
}

// NewKustomizeRenderer creates a new KustomizeRenderer
func NewKustomizeRenderer(opts *Options) *KustomizeRenderer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &KustomizeRenderer{
		opts:  opts,
		files: make(map[string][]byte),
	}
}

// Render builds the added files as a kustomization rooted at "/". The input
// is the kustomization file itself, used only for validation.
func (r *KustomizeRenderer) Render(ctx context.Context, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input) > 0 {
		if err := r.Validate(input); err != nil {
			return nil, err
		}
	}

	// Create an in-memory filesystem
	fs := filesys.MakeFsInMemory()

	r.mux.RLock()
	for name, content := range r.files {
		dir := filepath.Dir("/" + name)
		if err := fs.MkdirAll(dir); err != nil {
			r.mux.RUnlock()
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		if err := fs.WriteFile("/"+name, content); err != nil {
			r.mux.RUnlock()
			return nil, fmt.Errorf("failed to write file %s: %w", name, err)
		}
	}
	r.mux.RUnlock()

	k := krusty.MakeKustomizer(
		krusty.MakeDefaultOptions(),
	)

	resources, err := k.Run(fs, "/")
	if err != nil {
		return nil, fmt.Errorf("failed to build resources: %w", err)
	}

	yamlData, err := resources.AsYaml()
	if err != nil {
		return nil, fmt.Errorf("failed to convert resources to yaml: %w", err)
	}

	objects, err := manifest.ParseReader(r.opts.Source, bytes.NewReader(yamlData))
	if err != nil {
		return nil, fmt.Errorf("failed to parse kustomize output: %w", err)
	}

	return &Result{
		Name:    r.opts.Source,
		Version: Digest(yamlData),
		Objects: objects,
	}, nil
}

// Validate checks if the input is a kustomization file
func (r *KustomizeRenderer) Validate(input []byte) error {
	var obj map[string]interface{}
	if err := yaml.Unmarshal(input, &obj); err != nil {
		return fmt.Errorf("%w: invalid yaml", ErrInvalidInput)
	}

	// kind is optional in kustomization files
	kind, hasKind := obj["kind"]
	_, hasResources := obj["resources"]
	if (hasKind && kind != "Kustomization") || (!hasKind && !hasResources) {
		return fmt.Errorf("%w: not a kustomization file", ErrInvalidInput)
	}

	return nil
}

// SetOptions configures the renderer with the provided options
func (r *KustomizeRenderer) SetOptions(opts *Options) error {
	if err := validateOptions(opts); err != nil {
		return err
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *KustomizeRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile adds a file to the renderer's context in a thread-safe manner
func (r *KustomizeRenderer) AddFile(name string, content []byte) error {
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
