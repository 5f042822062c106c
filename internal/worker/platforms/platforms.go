// Package platforms holds the per-site application automations and the
// registry the worker dispatches through.
package platforms

import (
	"context"
	"time"

	"applyflow/internal/models"
)

// Result carries the evidence of a submitted application.
type Result struct {
	AppliedAt time.Time
	Platform  string
}

// Automation applies to a single job on one platform.
type Automation interface {
	Platform() string
	Apply(ctx context.Context, job models.ApplicationJob) (*Result, error)
}

// Registry maps platform identifiers to their automation.
type Registry struct {
	automations map[string]Automation
}

func NewRegistry(automations ...Automation) *Registry {
	r := &Registry{automations: make(map[string]Automation, len(automations))}
	for _, a := range automations {
		r.automations[a.Platform()] = a
	}
	return r
}

// Register adds or replaces the automation for its platform.
func (r *Registry) Register(a Automation) {
	r.automations[a.Platform()] = a
}

// Lookup returns the automation for a platform identifier.
func (r *Registry) Lookup(platform string) (Automation, bool) {
	a, ok := r.automations[platform]
	return a, ok
}

// Platforms lists the registered platform identifiers.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.automations))
	for p := range r.automations {
		out = append(out, p)
	}
	return out
}

// DefaultRegistry wires the supported production automations.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewLinkedIn(),
		NewIndeed(),
	)
}
