package source

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alevsk/rollout-scope/internal/renderer"
	"github.com/spf13/afero"
)

// rendererDefinition defines a renderer type and its identifiers
type rendererDefinition struct {
	Type        renderer.RendererType
	Identifiers []string
}

var definitions = []rendererDefinition{
	{
		Type:        renderer.RendererTypeHelm,
		Identifiers: []string{"Chart.yaml", "Chart.yml"},
	},
	{
		Type:        renderer.RendererTypeKustomize,
		Identifiers: []string{"kustomization.yaml", "kustomization.yml", "Kustomization"},
	},
}

// DetectRendererType determines which renderer to use based on the directory
// contents, returning the marker file it found.
func DetectRendererType(fs afero.Fs, dirPath string) (renderer.RendererType, string, error) {
	for _, definition := range definitions {
		for _, identifier := range definition.Identifiers {
			filePath := filepath.Join(dirPath, identifier)
			fileInfo, err := fs.Stat(filePath)

			if err == nil {
				if fileInfo.IsDir() {
					continue
				}
				return definition.Type, identifier, nil
			}

			if !os.IsNotExist(err) {
				return renderer.RendererTypeYAML, "", fmt.Errorf("error checking for %s: %w", filePath, err)
			}
		}
	}

	return renderer.RendererTypeYAML, "", nil
}
