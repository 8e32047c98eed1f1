// Package kubeconfig builds client credentials for a single deployment target cluster.
package kubeconfig

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alevsk/rollout-scope/internal/kube"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// ErrIncompleteCluster is returned when a cluster lacks a field needed to address it
var ErrIncompleteCluster = fmt.Errorf("incomplete cluster description")

// Cluster describes a GKE style target cluster.
type Cluster struct {
	Project  string
	Location string
	Name     string
	// Endpoint is the API server host, without scheme
	Endpoint string
	CAData   []byte
	// Namespace defaults to "default"
	Namespace string
}

// ContextName returns "gke_{project}_{location}_{cluster}".
func (c Cluster) ContextName() string {
	return fmt.Sprintf("gke_%s_%s_%s", c.Project, c.Location, c.Name)
}

// Server returns the API server URL.
func (c Cluster) Server() string {
	return "https://" + strings.TrimPrefix(c.Endpoint, "https://")
}

func (c Cluster) validate() error {
	var missing []string
	for field, value := range map[string]string{
		"project":  c.Project,
		"location": c.Location,
		"name":     c.Name,
		"endpoint": c.Endpoint,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrIncompleteCluster, strings.Join(missing, ", "))
	}
	return nil
}

// Build returns a kubeconfig with one cluster, context and user, all named
// after the cluster, and the current context set to it.
func Build(c Cluster, token string) (*clientcmdapi.Config, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	namespace := c.Namespace
	if namespace == "" {
		namespace = kube.DefaultNamespace
	}
	name := c.ContextName()

	cfg := clientcmdapi.NewConfig()
	cfg.Clusters[name] = &clientcmdapi.Cluster{
		Server:                   c.Server(),
		CertificateAuthorityData: c.CAData,
	}
	cfg.AuthInfos[name] = &clientcmdapi.AuthInfo{Token: token}
	cfg.Contexts[name] = &clientcmdapi.Context{
		Cluster:   name,
		AuthInfo:  name,
		Namespace: namespace,
	}
	cfg.CurrentContext = name
	return cfg, nil
}

// Write serializes cfg to kubeconfig YAML.
func Write(cfg *clientcmdapi.Config) ([]byte, error) {
	return clientcmd.Write(*cfg)
}

// WriteFile writes cfg to path, creating parent directories.
func WriteFile(cfg *clientcmdapi.Config, path string) error {
	return clientcmd.WriteToFile(*cfg, path)
}

// Load reads a kubeconfig from YAML.
func Load(data []byte) (*clientcmdapi.Config, error) {
	return clientcmd.Load(data)
}

// RESTConfig resolves the current context of cfg into a client-go rest config.
func RESTConfig(cfg *clientcmdapi.Config) (*rest.Config, error) {
	return clientcmd.NewDefaultClientConfig(*cfg, &clientcmd.ConfigOverrides{}).ClientConfig()
}

// RESTConfigFromFile resolves a kubeconfig from disk. An empty path follows the
// standard loading rules (KUBECONFIG, then ~/.kube/config); an empty
// contextName keeps the file's current context.
func RESTConfigFromFile(path, contextName string) (*rest.Config, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		rules.ExplicitPath = path
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: contextName}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}
