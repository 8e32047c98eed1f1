// Package kube provides read-only access to live cluster state.
//
// Client is the boundary the verification engine depends on. Two adapters are
// provided: KubectlClient shells out to kubectl, DynamicClient talks to the API
// server through client-go. Both return errors unchanged, including not-found;
// callers decide how to treat them.
package kube

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// DefaultNamespace is used when neither the caller nor the client names one.
const DefaultNamespace = "default"

// Error types for the kube package
var (
	ErrInvalidKind = fmt.Errorf("invalid kind")
	ErrInvalidName = fmt.Errorf("invalid object name")
)

// Client queries the current state of cluster objects.
type Client interface {
	// Get returns the object of the given kind and name. An empty namespace means
	// the client default.
	Get(ctx context.Context, kind, namespace, name string) (*unstructured.Unstructured, error)

	// ListByLabels returns every object of the given kind whose labels match all
	// of the given key/value pairs.
	ListByLabels(ctx context.Context, kind, namespace string, labels map[string]string) ([]unstructured.Unstructured, error)
}

// LabelSelector renders labels as a kubectl/API selector string with sorted keys.
func LabelSelector(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

func validateRef(kind, name string) error {
	if strings.TrimSpace(kind) == "" {
		return ErrInvalidKind
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name for kind %s", ErrInvalidName, kind)
	}
	return nil
}
