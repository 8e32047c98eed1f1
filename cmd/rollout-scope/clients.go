package main

import (
	"fmt"

	"github.com/alevsk/rollout-scope/internal/config"
	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/kubeconfig"
	"github.com/alevsk/rollout-scope/internal/verify"
	"github.com/spf13/pflag"
)

// kubeFlags overrides the kube section of the configuration
type kubeFlags struct {
	kubeconfig string
	context    string
	namespace  string
	backend    string
}

func (k *kubeFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&k.kubeconfig, "kubeconfig", "", "path to the kubeconfig file")
	flags.StringVar(&k.context, "context", "", "kubeconfig context to use")
	flags.StringVarP(&k.namespace, "namespace", "n", "", "namespace for objects that do not declare one")
	flags.StringVar(&k.backend, "backend", "", "cluster query backend (kubectl, dynamic)")
}

func (k *kubeFlags) apply(flags *pflag.FlagSet, kc *config.KubeConfig) {
	if flags.Changed("kubeconfig") {
		kc.Kubeconfig = k.kubeconfig
	}
	if flags.Changed("context") {
		kc.Context = k.context
	}
	if flags.Changed("namespace") {
		kc.Namespace = k.namespace
	}
	if flags.Changed("backend") {
		kc.Backend = k.backend
	}
}

// newClient builds the cluster client selected by kc.Backend
func newClient(kc config.KubeConfig) (kube.Client, error) {
	switch kc.Backend {
	case "", "kubectl":
		return kube.NewKubectlClient(kc.Kubeconfig, kc.Context, kc.Namespace, nil), nil
	case "dynamic":
		rc, err := kubeconfig.RESTConfigFromFile(kc.Kubeconfig, kc.Context)
		if err != nil {
			return nil, fmt.Errorf("loading kubeconfig: %w", err)
		}
		return kube.NewDynamicClientForConfig(rc, kc.Namespace)
	default:
		return nil, fmt.Errorf("unknown backend: %s", kc.Backend)
	}
}

// newRegistry returns the built-in verifiers plus the configured expressions
func newRegistry(c *config.Config) (*verify.Registry, error) {
	registry := verify.NewDefaultRegistry()
	if err := verify.RegisterExpressions(registry, c.Verify.Expressions); err != nil {
		return nil, err
	}
	return registry, nil
}
