package manifest

import (
	"strings"

	yaml "gopkg.in/yaml.v3"
)

// LabelValueSeparator joins the members of a merged label value.
const LabelValueSeparator = ","

// EnsureLabel makes sure value is a member of the label key on obj.
// See Object.EnsureLabel.
func EnsureLabel(obj *Object, key, value string) {
	obj.EnsureLabel(key, value)
}

// EnsureLabel adds value to metadata.labels[key] without clobbering what other
// tooling put there. A missing metadata or labels block is created. An existing
// value is treated as a comma separated set and value is appended only when it is
// not already a member, so repeated calls are no-ops.
func (o *Object) EnsureLabel(key, value string) {
	metadata := ensureMapping(o.root(), "metadata")
	labels := ensureMapping(metadata, "labels")

	i := valueIndex(labels, key)
	if i < 0 {
		labels.Content = append(labels.Content, stringNode(key), stringNode(value))
		return
	}

	raw := labels.Content[i]
	current := resolve(raw)
	existing := ""
	if current.Kind == yaml.ScalarNode && !isNull(current) {
		existing = current.Value
	}
	merged := mergeLabelValue(existing, value)
	if existing != "" && merged == existing {
		return
	}
	// Replace the value node rather than editing it, so an anchored value shared
	// through an alias is left alone. Comments move to the new node.
	labels.Content[i] = &yaml.Node{
		Kind:        yaml.ScalarNode,
		Tag:         "!!str",
		Value:       merged,
		Style:       raw.Style &^ (yaml.TaggedStyle | yaml.LiteralStyle | yaml.FoldedStyle),
		HeadComment: raw.HeadComment,
		LineComment: raw.LineComment,
		FootComment: raw.FootComment,
	}
}

// mergeLabelValue appends value to the comma separated set in existing unless it is
// already present.
func mergeLabelValue(existing, value string) string {
	if strings.TrimSpace(existing) == "" {
		return value
	}
	members := strings.Split(existing, LabelValueSeparator)
	for _, m := range members {
		if strings.TrimSpace(m) == value {
			return existing
		}
	}
	return existing + LabelValueSeparator + value
}

// LabelValues splits a merged label value into its members.
func LabelValues(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, LabelValueSeparator)
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}
