package policy

import (
	"fmt"
	"sort"
)

// Registry holds all protection policies, keyed by ID.
type Registry struct {
	policies map[string]ProtectionPolicy
}

// NewRegistry creates a registry with all built-in policies.
func NewRegistry() *Registry {
	r := &Registry{
		policies: make(map[string]ProtectionPolicy),
	}

	// Register built-in policies
	r.Register(NewDefaultPolicy())
	r.Register(NewStrictResumePolicy())

	return r
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...ProtectionPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]ProtectionPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p ProtectionPolicy) {
	r.policies[p.ID()] = p
}

// Get returns a policy by ID.
func (r *Registry) Get(id string) (ProtectionPolicy, bool) {
	p, ok := r.policies[id]
	return p, ok
}

// Resolve returns the policy for id, falling back to the default policy
// when id is empty.
func (r *Registry) Resolve(id string) (ProtectionPolicy, error) {
	if id == "" {
		id = DefaultPolicyID
	}
	p, ok := r.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	return p, nil
}

// GetAll returns all registered policies sorted by ID.
func (r *Registry) GetAll() []ProtectionPolicy {
	result := make([]ProtectionPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// List returns all policy IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.policies))
	for id := range r.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
