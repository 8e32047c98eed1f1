package verify

import (
	"strings"
	"testing"

	"github.com/alevsk/rollout-scope/internal/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTarget(t *testing.T) {
	obj := mustObject(t, `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
`)
	tgt, err := NewTarget(obj)
	require.NoError(t, err)
	assert.Equal(t, "apps/v1", tgt.APIVersion)
	assert.Equal(t, "Deployment", tgt.Kind)
	assert.Equal(t, "web", tgt.Name)
	assert.Equal(t, "shop", tgt.Namespace)
	assert.Same(t, obj, tgt.Object)
	assert.Equal(t, "apps/v1/Deployment: web", tgt.String())
}

func TestNewTargetsRejectsUnnamed(t *testing.T) {
	named := mustObject(t, "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: a\n")
	unnamed := mustObject(t, "apiVersion: v1\nkind: ConfigMap\nmetadata: {}\n")

	targets, err := NewTargets([]*manifest.Object{named})
	require.NoError(t, err)
	assert.Len(t, targets, 1)

	_, err = NewTargets([]*manifest.Object{named, unnamed})
	assert.ErrorIs(t, err, ErrUnnamedObject)
}

func TestOutcomeDescribe(t *testing.T) {
	tgt := target("apps/v1", "Deployment", "web")

	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{
			name:    "verified",
			outcome: Verified(tgt, "available replicas 3 of 3 desired"),
			want:    "✔ verified apps/v1/Deployment: web\navailable replicas 3 of 3 desired",
		},
		{
			name:    "not verified",
			outcome: NotVerified(tgt, "available replicas 1 of 3 desired"),
			want:    "✘ not verified apps/v1/Deployment: web\navailable replicas 1 of 3 desired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.outcome.Describe()
			assert.Equal(t, tt.want, got)
			assert.Len(t, strings.Split(got, "\n"), 2)
		})
	}
}

func TestOutcomeDescribeWithMessages(t *testing.T) {
	es := Messages{Verified: "✔ verificado", NotVerified: "✘ no verificado"}
	got := NotVerified(target("v1", "Pod", "p"), "phase %q", "Pending").DescribeWith(es)
	assert.Equal(t, "✘ no verificado v1/Pod: p\nphase \"Pending\"", got)
}

func TestReportDescribeAndFailed(t *testing.T) {
	report := &Report{Outcomes: []Outcome{
		Verified(target("v1", "Pod", "a"), "phase Succeeded"),
		NotVerified(target("v1", "Pod", "b"), "phase \"Pending\""),
	}}
	lines := strings.Split(report.Describe(), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "✔ verified v1/Pod: a", lines[0])
	assert.Equal(t, "✘ not verified v1/Pod: b", lines[2])

	failed := report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "b", failed[0].Target.Name)
}

func TestSelectTargets(t *testing.T) {
	objects, err := manifest.Parse([]byte(`apiVersion: v1
kind: Service
metadata:
  name: web
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: shop
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: settings
`))
	require.NoError(t, err)

	tests := []struct {
		name  string
		kinds []string
		want  []string
	}{
		{name: "all", want: []string{"v1/Service: web", "apps/v1/Deployment: web", "v1/ConfigMap: settings"}},
		{name: "one kind", kinds: []string{"deployment"}, want: []string{"apps/v1/Deployment: web"}},
		{name: "mixed case keeps input order", kinds: []string{"CONFIGMAP", "service"}, want: []string{"v1/Service: web", "v1/ConfigMap: settings"}},
		{name: "no match", kinds: []string{"job"}, want: nil},
		{name: "wildcard", kinds: []string{"*"}, want: []string{"v1/Service: web", "apps/v1/Deployment: web", "v1/ConfigMap: settings"}},
		{name: "wildcard among kinds", kinds: []string{"job", "*"}, want: []string{"v1/Service: web", "apps/v1/Deployment: web", "v1/ConfigMap: settings"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			targets, err := SelectTargets(objects, tt.kinds)
			require.NoError(t, err)
			var got []string
			for _, target := range targets {
				got = append(got, target.String())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
