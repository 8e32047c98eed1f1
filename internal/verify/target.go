// Package verify decides whether applied resources reached their intended state.
//
// A Coordinator polls the cluster for a set of Targets at a fixed interval until
// every target is verified or the time budget runs out. Each poll cycle checks all
// unresolved targets concurrently and waits for every check, up to the run
// deadline, before the next cycle starts. The acceptance rule for a target is
// chosen from a Registry keyed by apiVersion and kind.
package verify

import (
	"fmt"
	"strings"

	"github.com/alevsk/rollout-scope/internal/manifest"
)

// Error types for the verify package
var (
	ErrUnnamedObject   = fmt.Errorf("object has no metadata.name")
	ErrInvalidTimeout  = fmt.Errorf("timeout must be positive")
	ErrInvalidInterval = fmt.Errorf("poll interval must be positive")
	ErrInvalidVerifier = fmt.Errorf("verifier must not be nil")
	ErrMissingClient   = fmt.Errorf("coordinator needs a registry and a cluster client")
)

// Target is an object to poll, with the identity needed to query it.
type Target struct {
	Object     *manifest.Object `json:"-" yaml:"-"`
	APIVersion string           `json:"apiVersion" yaml:"apiVersion"`
	Kind       string           `json:"kind" yaml:"kind"`
	Name       string           `json:"name" yaml:"name"`
	Namespace  string           `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// NewTarget derives a Target from a manifest object.
func NewTarget(obj *manifest.Object) (Target, error) {
	name, ok := obj.Name()
	if !ok || name == "" {
		return Target{}, fmt.Errorf("%w: %s document %d", ErrUnnamedObject, obj.Source, obj.Index+1)
	}
	namespace, _ := obj.Namespace()
	return Target{
		Object:     obj,
		APIVersion: obj.APIVersion(),
		Kind:       obj.Kind(),
		Name:       name,
		Namespace:  namespace,
	}, nil
}

// NewTargets derives one Target per object, in order.
func NewTargets(objects []*manifest.Object) ([]Target, error) {
	targets := make([]Target, 0, len(objects))
	for _, obj := range objects {
		t, err := NewTarget(obj)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, nil
}

// String renders the target as "{apiVersion}/{kind}: {name}".
func (t Target) String() string {
	return fmt.Sprintf("%s/%s: %s", t.APIVersion, t.Kind, t.Name)
}

// SelectTargets keeps the objects whose kind is in kinds, ignoring case, and
// derives their targets in order. No kinds, or a Wildcard entry, selects every
// object.
func SelectTargets(objects []*manifest.Object, kinds []string) ([]Target, error) {
	if len(kinds) > 0 && !hasWildcard(kinds) {
		objects = manifest.FilterByKind(objects, kinds...)
	}
	return NewTargets(objects)
}

func hasWildcard(kinds []string) bool {
	for _, k := range kinds {
		if strings.TrimSpace(k) == Wildcard {
			return true
		}
	}
	return false
}
