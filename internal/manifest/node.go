package manifest

import (
	yaml "gopkg.in/yaml.v3"
)

// lookup returns the value node stored under key in a mapping node.
func lookup(mapping *yaml.Node, key string) *yaml.Node {
	if mapping == nil || mapping.Kind != yaml.MappingNode {
		return nil
	}
	if i := valueIndex(mapping, key); i >= 0 {
		return resolve(mapping.Content[i])
	}
	return nil
}

// valueIndex returns the position of the value stored under key in
// mapping.Content, or -1.
func valueIndex(mapping *yaml.Node, key string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return i + 1
		}
	}
	return -1
}

// resolve follows alias nodes to their anchored value.
func resolve(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

// lookupPath follows a chain of mapping keys.
func lookupPath(node *yaml.Node, path ...string) *yaml.Node {
	for _, key := range path {
		node = lookup(node, key)
		if node == nil {
			return nil
		}
	}
	return node
}

// scalarAt returns the scalar value at path. Null scalars count as absent.
func scalarAt(node *yaml.Node, path ...string) (string, bool) {
	v := lookupPath(node, path...)
	if v == nil || v.Kind != yaml.ScalarNode || isNull(v) {
		return "", false
	}
	return v.Value, true
}

// ensureMapping returns the mapping stored under key, creating it when the key is
// missing and replacing the value when it is not a mapping (for example `labels:`
// with no value). An alias to a mapping yields the anchored mapping.
func ensureMapping(parent *yaml.Node, key string) *yaml.Node {
	if i := valueIndex(parent, key); i >= 0 {
		value := resolve(parent.Content[i])
		if value.Kind != yaml.MappingNode {
			value = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			parent.Content[i] = value
		}
		return value
	}

	value := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	parent.Content = append(parent.Content, stringNode(key), value)
	return value
}

func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// isEmptyDocument reports whether a decoded document carries no content, which is
// what the decoder yields for a bare separator or a comment-only document.
func isEmptyDocument(doc *yaml.Node) bool {
	if len(doc.Content) == 0 {
		return true
	}
	root := doc.Content[0]
	return root.Kind == yaml.ScalarNode && root.Tag == "!!null" && root.Value == ""
}
