package renderer

// RendererType represents the type of renderer
type RendererType string

const (
	// RendererTypeYAML represents a plain YAML renderer
	RendererTypeYAML RendererType = "yaml"
	// RendererTypeHelm represents a Helm chart renderer
	RendererTypeHelm RendererType = "helm"
	// RendererTypeKustomize represents a Kustomize renderer
	RendererTypeKustomize RendererType = "kustomize"
)

// RendererFactory creates renderers based on type
type RendererFactory struct {
	defaultOpts *Options
}

// NewRendererFactory creates a new RendererFactory with default options
func NewRendererFactory(opts *Options) *RendererFactory {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &RendererFactory{defaultOpts: opts}
}

// GetRenderer returns a renderer based on the given type
func (f *RendererFactory) GetRenderer(typ RendererType) (Renderer, error) {
	var r Renderer
	switch typ {
	case RendererTypeYAML:
		r = NewYAMLRenderer()
	case RendererTypeHelm:
		r = NewHelmRenderer(nil)
	case RendererTypeKustomize:
		r = NewKustomizeRenderer(nil)
	default:
		return nil, ErrInvalidFormat
	}
	opts := *f.defaultOpts
	if err := r.SetOptions(&opts); err != nil {
		return nil, err
	}
	return r, nil
}
