package kubeconfig

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/client-go/tools/clientcmd"
)

var testCluster = Cluster{
	Project:  "shop-prod",
	Location: "europe-west1",
	Name:     "main",
	Endpoint: "34.76.10.2",
	CAData:   []byte("-----BEGIN CERTIFICATE-----\nMIIB\n-----END CERTIFICATE-----\n"),
}

func TestBuild(t *testing.T) {
	cfg, err := Build(testCluster, "ya29.token")
	require.NoError(t, err)

	name := "gke_shop-prod_europe-west1_main"
	assert.Equal(t, name, cfg.CurrentContext)
	require.Contains(t, cfg.Clusters, name)
	require.Contains(t, cfg.AuthInfos, name)
	require.Contains(t, cfg.Contexts, name)
	assert.Len(t, cfg.Contexts, 1)

	assert.Equal(t, "https://34.76.10.2", cfg.Clusters[name].Server)
	assert.Equal(t, testCluster.CAData, cfg.Clusters[name].CertificateAuthorityData)
	assert.Equal(t, "ya29.token", cfg.AuthInfos[name].Token)
	assert.Equal(t, "default", cfg.Contexts[name].Namespace)
	assert.Equal(t, name, cfg.Contexts[name].Cluster)
	assert.Equal(t, name, cfg.Contexts[name].AuthInfo)
}

func TestBuildNamespaceAndScheme(t *testing.T) {
	c := testCluster
	c.Namespace = "shop"
	c.Endpoint = "https://10.0.0.1"

	cfg, err := Build(c, "t")
	require.NoError(t, err)
	assert.Equal(t, "shop", cfg.Contexts[c.ContextName()].Namespace)
	assert.Equal(t, "https://10.0.0.1", cfg.Clusters[c.ContextName()].Server)
}

func TestBuildIncompleteCluster(t *testing.T) {
	_, err := Build(Cluster{Project: "p", Name: "n"}, "t")
	assert.ErrorIs(t, err, ErrIncompleteCluster)
	assert.EqualError(t, err, "incomplete cluster description: missing endpoint, location")
}

func TestWriteRoundTrip(t *testing.T) {
	cfg, err := Build(testCluster, "ya29.token")
	require.NoError(t, err)

	data, err := Write(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), "current-context: gke_shop-prod_europe-west1_main")
	assert.Contains(t, string(data), "server: https://34.76.10.2")

	loaded, err := Load(data)
	require.NoError(t, err)
	assert.Equal(t, cfg.CurrentContext, loaded.CurrentContext)
	assert.Equal(t, "ya29.token", loaded.AuthInfos[cfg.CurrentContext].Token)

	path := filepath.Join(t.TempDir(), "nested", "kubeconfig")
	require.NoError(t, WriteFile(cfg, path))
	fromFile, err := clientcmd.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.CurrentContext, fromFile.CurrentContext)
}

func TestRESTConfig(t *testing.T) {
	cfg, err := Build(testCluster, "ya29.token")
	require.NoError(t, err)

	rc, err := RESTConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "https://34.76.10.2", rc.Host)
	assert.Equal(t, "ya29.token", rc.BearerToken)
	assert.Equal(t, testCluster.CAData, rc.TLSClientConfig.CAData)
}

func TestRESTConfigFromFile(t *testing.T) {
	cfg, err := Build(testCluster, "ya29.token")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, WriteFile(cfg, path))

	rc, err := RESTConfigFromFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "https://34.76.10.2", rc.Host)
	assert.Equal(t, "ya29.token", rc.BearerToken)

	rc, err = RESTConfigFromFile(path, "gke_shop-prod_europe-west1_main")
	require.NoError(t, err)
	assert.Equal(t, "https://34.76.10.2", rc.Host)

	_, err = RESTConfigFromFile(path, "missing")
	assert.Error(t, err)
}
