package kube

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/alevsk/rollout-scope/internal/logger"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Runner executes a kubectl invocation and returns its standard output.
type Runner interface {
	Run(ctx context.Context, env []string, args ...string) ([]byte, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, env []string, args ...string) ([]byte, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, env []string, args ...string) ([]byte, error) {
	return f(ctx, env, args...)
}

// execRunner runs the kubectl binary found on PATH.
type execRunner struct {
	binary string
}

func (r execRunner) Run(ctx context.Context, env []string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("kubectl %v failed: %s", args, msg)
	}
	return stdout.Bytes(), nil
}

// KubectlClient implements Client with kubectl and optional kubeconfig and context selection.
type KubectlClient struct {
	Kubeconfig string
	Context    string
	Namespace  string

	runner Runner
}

// NewKubectlClient constructs a kubectl backed client. A nil runner uses the
// kubectl binary on PATH.
func NewKubectlClient(kubeconfig, context, namespace string, runner Runner) *KubectlClient {
	if runner == nil {
		runner = execRunner{binary: "kubectl"}
	}
	return &KubectlClient{
		Kubeconfig: kubeconfig,
		Context:    context,
		Namespace:  namespace,
		runner:     runner,
	}
}

// Get runs `kubectl get <kind> <name> -o json`.
func (c *KubectlClient) Get(ctx context.Context, kind, namespace, name string) (*unstructured.Unstructured, error) {
	if err := validateRef(kind, name); err != nil {
		return nil, err
	}

	out, err := c.run(ctx, namespace, "get", kind, name, "-o", "json")
	if err != nil {
		return nil, err
	}

	obj := &unstructured.Unstructured{}
	if err := obj.UnmarshalJSON(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s: %w", kind, name, err)
	}
	return obj, nil
}

// ListByLabels runs `kubectl get <kind> -l <selector> -o json`.
func (c *KubectlClient) ListByLabels(ctx context.Context, kind, namespace string, labels map[string]string) ([]unstructured.Unstructured, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, ErrInvalidKind
	}

	args := []string{"get", kind, "-o", "json"}
	if selector := LabelSelector(labels); selector != "" {
		args = append(args, "-l", selector)
	}

	out, err := c.run(ctx, namespace, args...)
	if err != nil {
		return nil, err
	}

	list := &unstructured.UnstructuredList{}
	if err := list.UnmarshalJSON(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s list: %w", kind, err)
	}
	return list.Items, nil
}

func (c *KubectlClient) run(ctx context.Context, namespace string, args ...string) ([]byte, error) {
	if namespace == "" {
		namespace = c.Namespace
	}

	cmdArgs := make([]string, 0, len(args)+4)
	if c.Context != "" {
		cmdArgs = append(cmdArgs, "--context", c.Context)
	}
	if namespace != "" {
		cmdArgs = append(cmdArgs, "-n", namespace)
	}
	cmdArgs = append(cmdArgs, args...)

	var env []string
	if c.Kubeconfig != "" {
		env = append(env, "KUBECONFIG="+c.Kubeconfig)
	}

	logger.Debug().Strs("args", cmdArgs).Msg("running kubectl")
	return c.runner.Run(ctx, env, cmdArgs...)
}
