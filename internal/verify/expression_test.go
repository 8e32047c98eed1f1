package verify

import (
	"context"
	"testing"

	"github.com/alevsk/rollout-scope/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func certificate(ready string) map[string]interface{} {
	return map[string]interface{}{
		"apiVersion": "cert-manager.io/v1",
		"kind":       "Certificate",
		"metadata": map[string]interface{}{
			"name":        "tls",
			"annotations": map[string]interface{}{"team": "edge"},
		},
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Issuing", "status": "False"},
				map[string]interface{}{"type": "Ready", "status": ready},
			},
		},
	}
}

func TestExpressionVerifier(t *testing.T) {
	tests := []struct {
		name       string
		expression string
		live       map[string]interface{}
		wantOK     bool
		wantDetail string
	}{
		{
			name:       "condition helper true",
			expression: `condition(status.conditions, "Ready") == "True"`,
			live:       certificate("True"),
			wantOK:     true,
			wantDetail: `expression "condition(status.conditions, \"Ready\") == \"True\"" holds`,
		},
		{
			name:       "condition helper false",
			expression: `condition(status.conditions, "Ready") == "True"`,
			live:       certificate("False"),
			wantDetail: `expression "condition(status.conditions, \"Ready\") == \"True\"" is false`,
		},
		{
			name:       "missing condition",
			expression: `condition(status.conditions, "Synced") == "True"`,
			live:       certificate("True"),
		},
		{
			name:       "field comparison",
			expression: `kind == "Certificate" && metadata.name == "tls"`,
			live:       certificate("False"),
			wantOK:     true,
		},
		{
			name:       "hasKey helper",
			expression: `hasKey(metadata.annotations, "team")`,
			live:       certificate("False"),
			wantOK:     true,
		},
		{
			name:       "non boolean result",
			expression: `metadata.name`,
			live:       certificate("True"),
			wantDetail: `expression "metadata.name" resulted in a non-boolean value of type string`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewExpressionVerifier(tt.expression)
			require.NoError(t, err)

			client := newFakeClient()
			client.add("Certificate", "", "tls", tt.live)
			got := v.Verify(context.Background(), client, target("cert-manager.io/v1", "Certificate", "tls"))
			assert.Equal(t, tt.wantOK, got.Verified, got.Detail)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, got.Detail)
			}
		})
	}
}

func TestExpressionVerifierCompileError(t *testing.T) {
	_, err := NewExpressionVerifier(`status.phase ==`)
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestExpressionVerifierFetchError(t *testing.T) {
	v, err := NewExpressionVerifier(`status.phase == "Ready"`)
	require.NoError(t, err)
	got := v.Verify(context.Background(), newFakeClient(), target("example.com/v1", "Widget", "w"))
	assert.False(t, got.Verified)
	assert.Contains(t, got.Detail, "not found")
}

func TestRegisterExpressions(t *testing.T) {
	r := NewDefaultRegistry()
	err := RegisterExpressions(r, []config.ExpressionConfig{
		{APIVersion: "cert-manager.io/v1", Kind: "Certificate", Expression: `condition(status.conditions, "Ready") == "True"`},
		{Kind: "Deployment", Expression: `status.readyReplicas > 0`},
	})
	require.NoError(t, err)

	_, ok := r.Resolve("cert-manager.io/v1", "Certificate").(*ExpressionVerifier)
	assert.True(t, ok)
	_, ok = r.Resolve("apps/v1", "Deployment").(*ExpressionVerifier)
	assert.True(t, ok, "configured wildcard expression replaces the built-in")

	err = RegisterExpressions(r, []config.ExpressionConfig{{Kind: "Widget", Expression: "(("}})
	assert.ErrorIs(t, err, ErrInvalidExpression)
}
