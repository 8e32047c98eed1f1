// Package manifest provides an addressable view over Kubernetes resource documents.
//
// Every Object is backed by exactly one YAML node tree. Accessors derive identity
// (apiVersion, kind, name, namespace, labels) by walking that tree, and mutations
// such as EnsureLabel rewrite it in place, so serialization always reflects the
// latest change while leaving every other field untouched.
package manifest

import (
	"bytes"
	"fmt"
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// Error types for the manifest package
var (
	ErrNotMapping  = fmt.Errorf("document is not a mapping")
	ErrInvalidNode = fmt.Errorf("invalid document node")
)

// Object is a single resource document.
type Object struct {
	// Source names the input the document was read from
	Source string
	// Index is the zero based position of the document inside its source
	Index int

	doc *yaml.Node
}

// newObject wraps a document node. The node must be a DocumentNode holding a mapping.
func newObject(source string, index int, doc *yaml.Node) (*Object, error) {
	if doc == nil || doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, ErrInvalidNode
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	return &Object{Source: source, Index: index, doc: doc}, nil
}

// FromMap builds an Object from a generic key/value tree.
func FromMap(content map[string]interface{}) (*Object, error) {
	var root yaml.Node
	if err := root.Encode(content); err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{&root}}
	return newObject("", 0, doc)
}

func (o *Object) root() *yaml.Node {
	return o.doc.Content[0]
}

// APIVersion returns the apiVersion field, or "" when it is absent or not a string.
func (o *Object) APIVersion() string {
	v, _ := scalarAt(o.root(), "apiVersion")
	return v
}

// Kind returns the kind field with its original casing.
func (o *Object) Kind() string {
	v, _ := scalarAt(o.root(), "kind")
	return v
}

// NormalizedKind returns the kind in the form used for matching.
func (o *Object) NormalizedKind() string {
	return NormalizeKind(o.Kind())
}

// Name returns metadata.name.
func (o *Object) Name() (string, bool) {
	return scalarAt(o.root(), "metadata", "name")
}

// Namespace returns metadata.namespace.
func (o *Object) Namespace() (string, bool) {
	return scalarAt(o.root(), "metadata", "namespace")
}

// Labels returns a copy of metadata.labels. Non-scalar and null values are skipped.
func (o *Object) Labels() map[string]string {
	labels := make(map[string]string)
	node := lookupPath(o.root(), "metadata", "labels")
	if node == nil || node.Kind != yaml.MappingNode {
		return labels
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], resolve(node.Content[i+1])
		if v.Kind == yaml.ScalarNode && !isNull(v) {
			labels[k.Value] = v.Value
		}
	}
	return labels
}

// Content decodes the document into a generic key/value tree. The returned map
// is a copy; changing it does not change the Object.
func (o *Object) Content() (map[string]interface{}, error) {
	content := make(map[string]interface{})
	if err := o.doc.Decode(&content); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", o, err)
	}
	return content, nil
}

// Marshal serializes the document back to YAML.
func (o *Object) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(o.doc); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", o, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String renders the object as "{apiVersion}/{kind}: {name}".
func (o *Object) String() string {
	name, ok := o.Name()
	if !ok {
		name = fmt.Sprintf("<unnamed document %d>", o.Index+1)
	}
	return fmt.Sprintf("%s/%s: %s", o.APIVersion(), o.Kind(), name)
}

// NormalizeKind lower-cases a kind for case-insensitive matching.
func NormalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}

// FilterByKind returns the objects whose kind matches one of kinds, ignoring case.
// The relative order of objects is preserved.
func FilterByKind(objects []*Object, kinds ...string) []*Object {
	wanted := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		wanted[NormalizeKind(k)] = struct{}{}
	}

	filtered := make([]*Object, 0, len(objects))
	for _, obj := range objects {
		if _, ok := wanted[obj.NormalizedKind()]; ok {
			filtered = append(filtered, obj)
		}
	}
	return filtered
}

// Marshal serializes objects as a multi-document YAML stream.
func Marshal(objects []*Object) ([]byte, error) {
	var buf bytes.Buffer
	for i, obj := range objects {
		if i > 0 {
			buf.WriteString("---\n")
		}
		raw, err := obj.Marshal()
		if err != nil {
			return nil, err
		}
		buf.Write(raw)
	}
	return buf.Bytes(), nil
}
