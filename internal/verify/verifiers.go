package verify

import (
	"context"
	"fmt"

	"github.com/alevsk/rollout-scope/internal/kube"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// RegisterBuiltins adds the built-in verifiers to r under wildcard keys.
func RegisterBuiltins(r *Registry) {
	builtins := map[string]Verifier{
		"deployment":     VerifierFunc(verifyDeployment),
		"statefulset":    VerifierFunc(verifyStatefulSet),
		"daemonset":      VerifierFunc(verifyDaemonSet),
		"job":            VerifierFunc(verifyJob),
		"pod":            VerifierFunc(verifyPod),
		"service":        VerifierFunc(verifyService),
		"namespace":      ExistenceVerifier{},
		"configmap":      ExistenceVerifier{},
		"secret":         ExistenceVerifier{},
		"serviceaccount": ExistenceVerifier{},
	}
	for kind, v := range builtins {
		// keys and verifiers above are always valid
		_ = r.Register(Wildcard, kind, v)
	}
}

// fetchInto reads the live object for target and decodes it into out.
func fetchInto(ctx context.Context, client kube.Client, target Target, out interface{}) error {
	obj, err := client.Get(ctx, target.Kind, target.Namespace, target.Name)
	if err != nil {
		return err
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj.Object, out); err != nil {
		return fmt.Errorf("decoding %s: %w", target, err)
	}
	return nil
}

func replicasOrDefault(replicas *int32, def int32) int32 {
	if replicas == nil {
		return def
	}
	return *replicas
}

func verifyDeployment(ctx context.Context, client kube.Client, target Target) Outcome {
	var deploy appsv1.Deployment
	if err := fetchInto(ctx, client, target, &deploy); err != nil {
		return NotVerified(target, "%v", err)
	}
	desired := replicasOrDefault(deploy.Spec.Replicas, 1)
	available := deploy.Status.AvailableReplicas
	return Outcome{
		Target:   target,
		Verified: desired <= available,
		Detail:   fmt.Sprintf("available replicas %d of %d desired", available, desired),
	}
}

func verifyStatefulSet(ctx context.Context, client kube.Client, target Target) Outcome {
	var sts appsv1.StatefulSet
	if err := fetchInto(ctx, client, target, &sts); err != nil {
		return NotVerified(target, "%v", err)
	}
	desired := replicasOrDefault(sts.Spec.Replicas, 1)
	ready := sts.Status.ReadyReplicas
	return Outcome{
		Target:   target,
		Verified: ready >= desired,
		Detail:   fmt.Sprintf("ready replicas %d of %d desired", ready, desired),
	}
}

func verifyDaemonSet(ctx context.Context, client kube.Client, target Target) Outcome {
	var ds appsv1.DaemonSet
	if err := fetchInto(ctx, client, target, &ds); err != nil {
		return NotVerified(target, "%v", err)
	}
	desired := ds.Status.DesiredNumberScheduled
	available := ds.Status.NumberAvailable
	if ds.Status.ObservedGeneration < ds.Generation {
		return NotVerified(target, "generation %d not observed yet (observed %d)", ds.Generation, ds.Status.ObservedGeneration)
	}
	return Outcome{
		Target:   target,
		Verified: available >= desired,
		Detail:   fmt.Sprintf("available pods %d of %d scheduled", available, desired),
	}
}

func verifyJob(ctx context.Context, client kube.Client, target Target) Outcome {
	var job batchv1.Job
	if err := fetchInto(ctx, client, target, &job); err != nil {
		return NotVerified(target, "%v", err)
	}
	completions := replicasOrDefault(job.Spec.Completions, 1)
	succeeded := job.Status.Succeeded
	detail := fmt.Sprintf("succeeded %d of %d completions", succeeded, completions)
	for _, c := range job.Status.Conditions {
		if c.Type == batchv1.JobFailed && c.Status == corev1.ConditionTrue {
			detail = fmt.Sprintf("%s, job failed: %s", detail, c.Reason)
		}
	}
	return Outcome{Target: target, Verified: succeeded >= completions, Detail: detail}
}

func verifyPod(ctx context.Context, client kube.Client, target Target) Outcome {
	var pod corev1.Pod
	if err := fetchInto(ctx, client, target, &pod); err != nil {
		return NotVerified(target, "%v", err)
	}
	switch pod.Status.Phase {
	case corev1.PodSucceeded:
		return Verified(target, "phase %s", pod.Status.Phase)
	case corev1.PodRunning:
		ready := 0
		for _, cs := range pod.Status.ContainerStatuses {
			if cs.Ready {
				ready++
			}
		}
		total := len(pod.Status.ContainerStatuses)
		return Outcome{
			Target:   target,
			Verified: total > 0 && ready == total,
			Detail:   fmt.Sprintf("phase %s, %d/%d containers ready", pod.Status.Phase, ready, total),
		}
	default:
		return NotVerified(target, "phase %q", pod.Status.Phase)
	}
}

func verifyService(ctx context.Context, client kube.Client, target Target) Outcome {
	var svc corev1.Service
	if err := fetchInto(ctx, client, target, &svc); err != nil {
		return NotVerified(target, "%v", err)
	}
	if len(svc.Spec.Selector) == 0 {
		return Verified(target, "service exists without selector")
	}
	pods, err := client.ListByLabels(ctx, "pod", target.Namespace, svc.Spec.Selector)
	if err != nil {
		return NotVerified(target, "listing selected pods: %v", err)
	}
	running := 0
	for _, p := range pods {
		if phase, _, _ := unstructured.NestedString(p.Object, "status", "phase"); phase == string(corev1.PodRunning) {
			running++
		}
	}
	return Outcome{
		Target:   target,
		Verified: running > 0,
		Detail:   fmt.Sprintf("%d of %d selected pods running", running, len(pods)),
	}
}

// ExistenceVerifier accepts any target that the cluster returns.
type ExistenceVerifier struct{}

// Verify implements Verifier.
func (ExistenceVerifier) Verify(ctx context.Context, client kube.Client, target Target) Outcome {
	if _, err := client.Get(ctx, target.Kind, target.Namespace, target.Name); err != nil {
		return NotVerified(target, "%v", err)
	}
	return Verified(target, "object exists")
}
