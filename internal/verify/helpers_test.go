package verify

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/manifest"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// fakeClient serves objects from memory and counts calls.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string]map[string]interface{}
	lists   map[string][]unstructured.Unstructured
	listErr error
	gets    int
	listsN  int
}

var _ kube.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		objects: make(map[string]map[string]interface{}),
		lists:   make(map[string][]unstructured.Unstructured),
	}
}

func objectKey(kind, namespace, name string) string {
	return fmt.Sprintf("%s/%s/%s", manifest.NormalizeKind(kind), namespace, name)
}

func (f *fakeClient) add(kind, namespace, name string, content map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectKey(kind, namespace, name)] = content
}

func (f *fakeClient) Get(_ context.Context, kind, namespace, name string) (*unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	content, ok := f.objects[objectKey(kind, namespace, name)]
	if !ok {
		return nil, apierrors.NewNotFound(schema.GroupResource{Resource: manifest.NormalizeKind(kind)}, name)
	}
	return &unstructured.Unstructured{Object: content}, nil
}

func (f *fakeClient) ListByLabels(_ context.Context, kind, namespace string, labels map[string]string) ([]unstructured.Unstructured, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listsN++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.lists[kube.LabelSelector(labels)], nil
}

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets + f.listsN
}

func target(apiVersion, kind, name string) Target {
	return Target{APIVersion: apiVersion, Kind: kind, Name: name}
}

func mustObject(t *testing.T, doc string) *manifest.Object {
	t.Helper()
	objects, err := manifest.Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, objects, 1)
	return objects[0]
}
