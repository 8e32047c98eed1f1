package verify

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alevsk/rollout-scope/internal/kube"
	"github.com/alevsk/rollout-scope/internal/manifest"
)

// Wildcard matches any apiVersion in a registry key.
const Wildcard = "*"

// Verifier decides whether one target reached its intended state.
type Verifier interface {
	Verify(ctx context.Context, client kube.Client, target Target) Outcome
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, client kube.Client, target Target) Outcome

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, client kube.Client, target Target) Outcome {
	return f(ctx, client, target)
}

// Key identifies a registry entry.
type Key struct {
	APIVersion string `json:"apiVersion"`
	Kind       string `json:"kind"`
}

// NewKey normalizes the kind and maps an empty apiVersion to the wildcard.
func NewKey(apiVersion, kind string) Key {
	if apiVersion == "" {
		apiVersion = Wildcard
	}
	return Key{APIVersion: apiVersion, Kind: manifest.NormalizeKind(kind)}
}

func (k Key) String() string {
	return k.APIVersion + "/" + k.Kind
}

// Registry maps (apiVersion, kind) to verifiers.
type Registry struct {
	mu        sync.RWMutex
	verifiers map[Key]Verifier
	fallback  Verifier
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		verifiers: make(map[Key]Verifier),
		fallback:  VerifierFunc(notImplemented),
	}
}

// NewDefaultRegistry returns a registry holding the built-in verifiers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterBuiltins(r)
	return r
}

// Register adds or replaces the verifier for (apiVersion, kind).
// apiVersion may be Wildcard or empty to match any version.
func (r *Registry) Register(apiVersion, kind string, v Verifier) error {
	if v == nil {
		return ErrInvalidVerifier
	}
	key := NewKey(apiVersion, kind)
	if key.Kind == "" {
		return fmt.Errorf("%w: empty kind", ErrInvalidVerifier)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifiers[key] = v
	return nil
}

// Resolve returns the verifier for (apiVersion, kind): an exact match first,
// then the wildcard entry for kind, then a verifier that reports the kind as
// not implemented.
func (r *Registry) Resolve(apiVersion, kind string) Verifier {
	normalized := manifest.NormalizeKind(kind)

	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.verifiers[Key{APIVersion: apiVersion, Kind: normalized}]; ok {
		return v
	}
	if v, ok := r.verifiers[Key{APIVersion: Wildcard, Kind: normalized}]; ok {
		return v
	}
	return r.fallback
}

// Keys lists the registered keys sorted by kind then apiVersion.
func (r *Registry) Keys() []Key {
	r.mu.RLock()
	keys := make([]Key, 0, len(r.verifiers))
	for k := range r.verifiers {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Kind != keys[j].Kind {
			return keys[i].Kind < keys[j].Kind
		}
		return keys[i].APIVersion < keys[j].APIVersion
	})
	return keys
}

func notImplemented(_ context.Context, _ kube.Client, target Target) Outcome {
	return NotVerified(target, "verification not implemented for kind %q", target.Kind)
}
