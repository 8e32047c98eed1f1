package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alevsk/rollout-scope/internal/config"
	"github.com/alevsk/rollout-scope/internal/formatter"
	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/source"
	"github.com/alevsk/rollout-scope/internal/verify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// countingClient serves objects keyed by lower case kind and name and counts queries
type countingClient struct {
	mu      sync.Mutex
	objects map[string]map[string]interface{}
	calls   int
}

func (c *countingClient) Get(_ context.Context, kind, _, name string) (*unstructured.Unstructured, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	obj, ok := c.objects[strings.ToLower(kind)+"/"+name]
	if !ok {
		return nil, apierrors.NewNotFound(schema.GroupResource{Resource: kind}, name)
	}
	return &unstructured.Unstructured{Object: obj}, nil
}

func (c *countingClient) ListByLabels(context.Context, string, string, map[string]string) ([]unstructured.Unstructured, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil, nil
}

const appYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
spec:
  replicas: 2
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
  namespace: shop
`

func deployment(available int64) map[string]interface{} {
	return map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata":   map[string]interface{}{"name": "web", "namespace": "shop"},
		"spec":       map[string]interface{}{"replicas": int64(2)},
		"status":     map[string]interface{}{"availableReplicas": available},
	}
}

func sourcesWith(t *testing.T, files map[string]string) *source.Options {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return &source.Options{Fs: fs}
}

func request(src string, sources *source.Options, kinds ...string) verifyRequest {
	return verifyRequest{
		Source:   src,
		Sources:  sources,
		Kinds:    kinds,
		Interval: time.Second,
		Timeout:  time.Millisecond,
		Output:   formatter.TypeText,
	}
}

func TestRunVerify_AllVerified(t *testing.T) {
	client := &countingClient{objects: map[string]map[string]interface{}{
		"deployment/web": deployment(2),
	}}
	var out bytes.Buffer

	report, err := runVerify(context.Background(), &out,
		request("/app.yaml", sourcesWith(t, map[string]string{"/app.yaml": appYAML}), "deployment"),
		verify.NewDefaultRegistry(), client)
	require.NoError(t, err)
	assert.True(t, report.AllVerified)
	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "✔ verified apps/v1/Deployment: web\navailable replicas 2 of 2 desired\n", out.String())
}

func TestRunVerify_NotVerified(t *testing.T) {
	client := &countingClient{objects: map[string]map[string]interface{}{
		"deployment/web": deployment(1),
	}}
	var out bytes.Buffer

	report, err := runVerify(context.Background(), &out,
		request("/app.yaml", sourcesWith(t, map[string]string{"/app.yaml": appYAML}), "*"),
		verify.NewDefaultRegistry(), client)
	assert.ErrorIs(t, err, errNotVerified)
	require.NotNil(t, report)
	assert.True(t, report.TimedOut)
	assert.Len(t, report.Outcomes, 2)
	assert.Contains(t, out.String(), "✘ not verified apps/v1/Deployment: web\navailable replicas 1 of 2 desired")
	assert.Contains(t, out.String(), "✘ not verified v1/ConfigMap: settings\n")
}

func TestRunVerify_FailsBeforeQueryingCluster(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		source  string
		output  formatter.Type
		wantErr string
	}{
		{
			name:    "parse error",
			files:   map[string]string{"/app.yaml": appYAML + "---\nkind: [broken\n"},
			source:  "/app.yaml",
			wantErr: "/app.yaml: document",
		},
		{
			name:    "scalar document",
			files:   map[string]string{"/app.yaml": "hello\n"},
			source:  "/app.yaml",
			wantErr: "document 1",
		},
		{
			name:    "unnamed object",
			files:   map[string]string{"/app.yaml": "apiVersion: apps/v1\nkind: Deployment\n"},
			source:  "/app.yaml",
			wantErr: "metadata.name",
		},
		{
			name:    "missing source",
			source:  "/missing.yaml",
			wantErr: "invalid source",
		},
		{
			name:    "unknown output",
			files:   map[string]string{"/app.yaml": appYAML},
			source:  "/app.yaml",
			output:  formatter.Type("xml"),
			wantErr: "unknown formatter type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &countingClient{}
			req := request(tt.source, sourcesWith(t, tt.files), "deployment")
			if tt.output != "" {
				req.Output = tt.output
			}
			var out bytes.Buffer

			_, err := runVerify(context.Background(), &out, req, verify.NewDefaultRegistry(), client)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, client.calls)
			assert.Empty(t, out.String())
		})
	}
}

func TestRunVerify_InvalidTiming(t *testing.T) {
	client := &countingClient{}
	req := request("/app.yaml", sourcesWith(t, map[string]string{"/app.yaml": appYAML}), "deployment")
	req.Timeout = 0

	_, err := runVerify(context.Background(), &bytes.Buffer{}, req, verify.NewDefaultRegistry(), client)
	assert.ErrorIs(t, err, verify.ErrInvalidTimeout)
	assert.Zero(t, client.calls)
}

func TestRunVerify_JSONOutput(t *testing.T) {
	client := &countingClient{objects: map[string]map[string]interface{}{
		"deployment/web": deployment(2),
	}}
	req := request("/app.yaml", sourcesWith(t, map[string]string{"/app.yaml": appYAML}), "deployment")
	req.Output = formatter.TypeJSON
	var out bytes.Buffer

	_, err := runVerify(context.Background(), &out, req, verify.NewDefaultRegistry(), client)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"allVerified": true`)
	assert.Contains(t, out.String(), `"source": "/app.yaml"`)
	assert.Contains(t, out.String(), `"renderer": "yaml"`)
}

func TestRunVerify_Expressions(t *testing.T) {
	c := config.Default()
	c.Verify.Expressions = []config.ExpressionConfig{{
		Kind:       "ConfigMap",
		Expression: `data.ready == "true"`,
	}}
	registry, err := newRegistry(c)
	require.NoError(t, err)

	client := &countingClient{objects: map[string]map[string]interface{}{
		"configmap/settings": {"data": map[string]interface{}{"ready": "true"}},
	}}
	var out bytes.Buffer
	report, err := runVerify(context.Background(), &out,
		request("/app.yaml", sourcesWith(t, map[string]string{"/app.yaml": appYAML}), "configmap"),
		registry, client)
	require.NoError(t, err)
	assert.True(t, report.AllVerified)
	assert.Contains(t, out.String(), `expression "data.ready == \"true\"" holds`)
}

func TestNewRegistry_InvalidExpression(t *testing.T) {
	c := config.Default()
	c.Verify.Expressions = []config.ExpressionConfig{{Kind: "ConfigMap", Expression: "data.ready =="}}
	_, err := newRegistry(c)
	assert.ErrorIs(t, err, verify.ErrInvalidExpression)
}

func TestNewClient(t *testing.T) {
	c, err := newClient(config.KubeConfig{Backend: "kubectl", Context: "prod", Namespace: "shop"})
	require.NoError(t, err)
	kc, ok := c.(*kube.KubectlClient)
	require.True(t, ok)
	assert.Equal(t, "prod", kc.Context)
	assert.Equal(t, "shop", kc.Namespace)

	_, err = newClient(config.KubeConfig{Backend: "carrier-pigeon"})
	assert.Error(t, err)

	_, err = newClient(config.KubeConfig{Backend: "dynamic", Kubeconfig: "/does/not/exist"})
	assert.Error(t, err)
}
