// Package renderer turns manifest sources (plain YAML, Helm charts and
// Kustomize directories) into parsed manifest objects.
package renderer

import (
	"context"
	"crypto/sha512"
	"fmt"

	"github.com/alevsk/rollout-scope/internal/manifest"
)

// Options contains configuration options for renderers
type Options struct {
	// Source names the input in parse errors and object origins
	Source string
	// ReleaseName is the Helm release name; defaults to the chart name
	ReleaseName string
	// Namespace is the Helm release namespace
	Namespace string
	// Values is YAML content overriding the chart's values.yaml
	Values []byte
}

// DefaultOptions returns a new Options with default values
func DefaultOptions() *Options {
	return &Options{
		Source:    "input",
		Namespace: "default",
	}
}

// Result contains the output of a render operation
type Result struct {
	// Name is the chart name or the kustomization root, empty for plain YAML
	Name string `json:"name"`
	// Version is the chart version, or a sha512 digest of the rendered YAML
	Version  string             `json:"version"`
	Objects  []*manifest.Object `json:"-"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Error types for the renderer package
var (
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrInvalidFormat = fmt.Errorf("invalid format")
)

// Renderer converts input into manifest objects.
type Renderer interface {
	// Render processes the input data and returns the parsed objects.
	// A document that cannot be parsed fails the whole render.
	Render(ctx context.Context, input []byte) (*Result, error)

	// Validate checks if the input can be handled by this renderer.
	Validate(input []byte) error

	// SetOptions configures the renderer. Invalid options return an error
	// and leave the configuration unchanged.
	SetOptions(opts *Options) error

	// GetOptions returns the current renderer options.
	GetOptions() *Options

	// AddFile adds a file, relative to the source root, to the renderer's context
	AddFile(name string, content []byte) error
}

// Digest returns a sha512 content version
func Digest(data []byte) string {
	return fmt.Sprintf("sha512:%x", sha512.Sum512(data))
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return fmt.Errorf("%w: options cannot be nil", ErrInvalidInput)
	}
	return nil
}
