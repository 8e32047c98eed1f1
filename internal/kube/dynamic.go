package kube

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
)

// DynamicClient implements Client on top of the client-go dynamic client.
// Kinds are mapped to resources through a RESTMapper, so both "deployment" and
// "deployments.apps" are accepted.
type DynamicClient struct {
	client    dynamic.Interface
	mapper    meta.RESTMapper
	namespace string
}

// NewDynamicClient wraps an existing dynamic client and mapper.
func NewDynamicClient(client dynamic.Interface, mapper meta.RESTMapper, namespace string) *DynamicClient {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &DynamicClient{
		client:    client,
		mapper:    mapper,
		namespace: namespace,
	}
}

// NewDynamicClientForConfig builds a DynamicClient with a discovery backed mapper.
func NewDynamicClientForConfig(cfg *rest.Config, namespace string) (*DynamicClient, error) {
	dyn, err := dynamic.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	disc, err := discovery.NewDiscoveryClientForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disc))
	return NewDynamicClient(dyn, mapper, namespace), nil
}

// Get fetches a single object.
func (c *DynamicClient) Get(ctx context.Context, kind, namespace, name string) (*unstructured.Unstructured, error) {
	if err := validateRef(kind, name); err != nil {
		return nil, err
	}

	resource, err := c.resourceFor(kind, namespace)
	if err != nil {
		return nil, err
	}
	return resource.Get(ctx, name, metav1.GetOptions{})
}

// ListByLabels lists objects matching every label pair.
func (c *DynamicClient) ListByLabels(ctx context.Context, kind, namespace string, labels map[string]string) ([]unstructured.Unstructured, error) {
	resource, err := c.resourceFor(kind, namespace)
	if err != nil {
		return nil, err
	}

	list, err := resource.List(ctx, metav1.ListOptions{LabelSelector: LabelSelector(labels)})
	if err != nil {
		return nil, err
	}
	return list.Items, nil
}

// resourceFor maps a kind to a resource interface, scoping it to a namespace
// only when the resource is namespaced.
func (c *DynamicClient) resourceFor(kind, namespace string) (dynamic.ResourceInterface, error) {
	if kind == "" {
		return nil, ErrInvalidKind
	}

	gr := schema.ParseGroupResource(kind)
	gvr, err := c.mapper.ResourceFor(gr.WithVersion(""))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKind, kind, err)
	}
	gvk, err := c.mapper.KindFor(gvr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKind, kind, err)
	}
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKind, kind, err)
	}

	if mapping.Scope.Name() == meta.RESTScopeNameRoot {
		return c.client.Resource(mapping.Resource), nil
	}
	if namespace == "" {
		namespace = c.namespace
	}
	return c.client.Resource(mapping.Resource).Namespace(namespace), nil
}
