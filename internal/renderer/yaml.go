package renderer

import (
	"bytes"
	"context"
	"fmt"

	"github.com/alevsk/rollout-scope/internal/manifest"
)

// YAMLRenderer implements the Renderer interface for multi-document YAML
type YAMLRenderer struct {
	opts *Options
}

// NewYAMLRenderer creates a new YAMLRenderer with default options
func NewYAMLRenderer() *YAMLRenderer {
	return &YAMLRenderer{
		opts: DefaultOptions(),
	}
}

// Render parses YAML input into manifest objects
func (r *YAMLRenderer) Render(ctx context.Context, input []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.Validate(input); err != nil {
		return nil, err
	}

	objects, err := manifest.ParseReader(r.opts.Source, bytes.NewReader(input))
	if err != nil {
		return nil, err
	}

	result := &Result{
		Version: Digest(input),
		Objects: objects,
	}
	if len(objects) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no documents found", r.opts.Source))
	}
	return result, nil
}

// Validate checks the input is not empty
func (r *YAMLRenderer) Validate(input []byte) error {
	if len(bytes.TrimSpace(input)) == 0 {
		return fmt.Errorf("%w: empty input", ErrInvalidInput)
	}
	return nil
}

// SetOptions configures the renderer with the provided options
func (r *YAMLRenderer) SetOptions(opts *Options) error {
	if err := validateOptions(opts); err != nil {
		return err
	}
	r.opts = opts
	return nil
}

// GetOptions returns the current renderer options
func (r *YAMLRenderer) GetOptions() *Options {
	return r.opts
}

// AddFile is a no-op; plain YAML needs no additional files
func (r *YAMLRenderer) AddFile(name string, content []byte) error {
	return nil
}
