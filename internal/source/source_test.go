package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alevsk/rollout-scope/internal/renderer"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const deploymentYAML = `apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
spec:
  replicas: 2
`

const serviceYAML = `apiVersion: v1
kind: Service
metadata:
  name: web
spec:
  selector:
    app: web
`

func memFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func kinds(t *testing.T, source string, opts *Options) []string {
	t.Helper()
	objects, _, err := Load(context.Background(), source, opts)
	require.NoError(t, err)
	var out []string
	for _, o := range objects {
		name, _ := o.Name()
		out = append(out, o.Kind()+"/"+name)
	}
	return out
}

func TestNew(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/m/app.yaml":  deploymentYAML,
		"/m/notes.txt": "hello",
	})
	opts := &Options{Fs: fs}

	tests := []struct {
		name    string
		source  string
		want    interface{}
		wantErr error
	}{
		{name: "stdin", source: "-", want: &StdinResolver{}},
		{name: "remote", source: "https://example.com/app.yaml", want: &RemoteResolver{}},
		{name: "directory", source: "/m", want: &FolderResolver{}},
		{name: "file", source: "/m/app.yaml", want: &FileResolver{}},
		{name: "empty", source: "  ", wantErr: ErrInvalidSource},
		{name: "missing", source: "/nope.yaml", wantErr: ErrInvalidSource},
		{name: "not yaml", source: "/m/notes.txt", wantErr: ErrInvalidSource},
		{name: "remote not yaml", source: "https://example.com/app.json", wantErr: ErrInvalidSource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.source, opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, r)
		})
	}
}

func TestFileResolver(t *testing.T) {
	fs := memFs(t, map[string]string{"/m/app.yaml": deploymentYAML + "---\n" + serviceYAML})

	r := NewFileResolver("/m/app.yaml", &Options{Fs: fs})
	result, meta, err := r.Resolve(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Objects, 2)
	assert.Equal(t, "/m/app.yaml", result.Objects[1].Source)
	assert.Equal(t, 1, result.Objects[1].Index)
	assert.Equal(t, SourceTypeFile, meta.Type)
	assert.Equal(t, renderer.RendererTypeYAML, meta.RendererType)
	assert.Equal(t, int64(len(deploymentYAML+"---\n"+serviceYAML)), meta.Size)
	assert.True(t, strings.HasPrefix(meta.Version, "sha512:"))
}

func TestFileResolver_ParseError(t *testing.T) {
	fs := memFs(t, map[string]string{"/bad.yaml": "kind: [unclosed\n"})

	_, _, err := Load(context.Background(), "/bad.yaml", &Options{Fs: fs})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/bad.yaml")
}

func TestStdinResolver(t *testing.T) {
	opts := &Options{Stdin: strings.NewReader(serviceYAML)}

	objects, meta, err := Load(context.Background(), "-", opts)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "stdin", objects[0].Source)
	assert.Equal(t, SourceTypeStdin, meta.Type)
}

func TestFolderResolver_YAML(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/m/b/service.yml":   serviceYAML,
		"/m/a/deploy.yaml":   deploymentYAML,
		"/m/README.md":       "# docs",
		"/m/a/skip/job.json": "{}",
	})

	got := kinds(t, "/m", &Options{Fs: fs})
	assert.Equal(t, []string{"Deployment/web", "Service/web"}, got)

	_, meta, err := Load(context.Background(), "/m", &Options{Fs: fs})
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Files)
	assert.Equal(t, SourceTypeFolder, meta.Type)
	assert.Equal(t, renderer.RendererTypeYAML, meta.RendererType)
}

func TestFolderResolver_Include(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/m/prod/deploy.yaml": deploymentYAML,
		"/m/dev/service.yaml": serviceYAML,
	})

	got := kinds(t, "/m", &Options{Fs: fs, Include: "prod/**/*.yaml"})
	assert.Equal(t, []string{"Deployment/web"}, got)

	_, _, err := Load(context.Background(), "/m", &Options{Fs: fs, Include: "staging/*.yaml"})
	assert.ErrorIs(t, err, ErrNoManifests)

	_, _, err = Load(context.Background(), "/m", &Options{Fs: fs, Include: "[unclosed"})
	assert.Error(t, err)
}

func TestFolderResolver_Helm(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/charts/shop/Chart.yaml":  "apiVersion: v2\nname: shop\nversion: 1.2.3\n",
		"/charts/shop/values.yaml": "replicas: 3\n",
		"/charts/shop/templates/deployment.yaml": `apiVersion: apps/v1
kind: Deployment
metadata:
  name: {{ .Release.Name }}-web
  namespace: {{ .Release.Namespace }}
spec:
  replicas: {{ .Values.replicas }}
`,
	})
	render := renderer.DefaultOptions()
	render.ReleaseName = "prod"
	render.Namespace = "store"

	objects, meta, err := Load(context.Background(), "/charts/shop", &Options{Fs: fs, Render: render})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	name, _ := objects[0].Name()
	ns, _ := objects[0].Namespace()
	assert.Equal(t, "prod-web", name)
	assert.Equal(t, "store", ns)
	assert.Equal(t, renderer.RendererTypeHelm, meta.RendererType)
	assert.Equal(t, "shop", meta.Name)
	assert.Equal(t, "1.2.3", meta.Version)
	assert.Equal(t, 3, meta.Files)
}

func TestFolderResolver_Kustomize(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/k/kustomization.yaml": "namespace: shop\nresources:\n- service.yaml\n",
		"/k/service.yaml":       serviceYAML,
	})

	objects, meta, err := Load(context.Background(), "/k", &Options{Fs: fs})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	ns, _ := objects[0].Namespace()
	assert.Equal(t, "shop", ns)
	assert.Equal(t, renderer.RendererTypeKustomize, meta.RendererType)
}

func TestDetectRendererType(t *testing.T) {
	fs := memFs(t, map[string]string{
		"/helm/Chart.yml":          "name: x",
		"/kust/kustomization.yml":  "resources: []",
		"/plain/deploy.yaml":       deploymentYAML,
		"/both/Chart.yaml":         "name: x",
		"/both/kustomization.yaml": "resources: []",
	})
	require.NoError(t, fs.MkdirAll("/dir/Chart.yaml", 0o755))

	tests := []struct {
		dir        string
		want       renderer.RendererType
		wantMarker string
	}{
		{dir: "/helm", want: renderer.RendererTypeHelm, wantMarker: "Chart.yml"},
		{dir: "/kust", want: renderer.RendererTypeKustomize, wantMarker: "kustomization.yml"},
		{dir: "/plain", want: renderer.RendererTypeYAML},
		{dir: "/both", want: renderer.RendererTypeHelm, wantMarker: "Chart.yaml"},
		{dir: "/dir", want: renderer.RendererTypeYAML},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			got, marker, err := DetectRendererType(fs, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantMarker, marker)
		})
	}
}

func TestRemoteResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/manifests/app.yaml":
			if r.Header.Get("User-Agent") != "rollout-scope" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
			_, _ = w.Write([]byte(deploymentYAML))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	opts := &Options{HTTPClient: server.Client()}

	objects, meta, err := Load(context.Background(), server.URL+"/manifests/app.yaml", opts)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, "manifests/app.yaml", objects[0].Source)
	assert.Equal(t, SourceTypeRemote, meta.Type)
	assert.Equal(t, 2006, meta.ModTime.Year())

	_, _, err = Load(context.Background(), server.URL+"/missing.yaml", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestRemoteResolver_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, err := NewRemoteResolver("http://127.0.0.1:1/app.yaml", nil)
	require.NoError(t, err)
	_, _, err = r.Resolve(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSourceType_String(t *testing.T) {
	assert.Equal(t, "file", SourceTypeFile.String())
	assert.Equal(t, "remote", SourceTypeRemote.String())
	assert.Equal(t, "folder", SourceTypeFolder.String())
	assert.Equal(t, "stdin", SourceTypeStdin.String())
	assert.Equal(t, "unknown", SourceTypeUnknown.String())
}
