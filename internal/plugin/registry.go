package plugin

import (
	"fmt"
	"sort"

	"wabot/internal/domain"
)

type registryKey struct {
	name string
	tier domain.Tier
}

// Registry is the static table of installed plugins. Register everything
// at startup; lookups during dispatch are read-only.
type Registry struct {
	byKey  map[registryKey]*Plugin
	byDoc  map[string]*Plugin
	sorted []*Plugin
}

func NewRegistry() *Registry {
	return &Registry{
		byKey: make(map[registryKey]*Plugin),
		byDoc: make(map[string]*Plugin),
	}
}

// Register adds a plugin. A (name, tier) or document-type collision is a
// startup configuration error, never a runtime one.
func (r *Registry) Register(p *Plugin) error {
	if p.Name == "" {
		return fmt.Errorf("plugin with empty name")
	}
	if p.Handle == nil {
		return fmt.Errorf("plugin %q has no handler", p.Name)
	}
	if p.Tier == "" {
		p.Tier = domain.TierStandard
	}

	key := registryKey{name: p.Name, tier: p.Tier}
	if _, exists := r.byKey[key]; exists {
		return fmt.Errorf("plugin %q already registered for %s tier", p.Name, p.Tier)
	}
	if p.DocumentType != "" {
		if other, exists := r.byDoc[p.DocumentType]; exists {
			return fmt.Errorf("document type %q claimed by both %q and %q", p.DocumentType, other.Name, p.Name)
		}
		r.byDoc[p.DocumentType] = p
	}

	r.byKey[key] = p
	r.sorted = append(r.sorted, p)
	sort.Slice(r.sorted, func(i, j int) bool {
		if r.sorted[i].Name != r.sorted[j].Name {
			return r.sorted[i].Name < r.sorted[j].Name
		}
		return r.sorted[i].Tier < r.sorted[j].Tier
	})
	return nil
}

// MustRegister panics on registration error; wiring code uses it so a
// bad plugin table fails at startup.
func (r *Registry) MustRegister(p *Plugin) {
	if err := r.Register(p); err != nil {
		panic(err)
	}
}

// Lookup finds the plugin registered under (name, tier). The tier must
// match exactly; an admin message cannot reach a standard-only plugin by
// name collision, nor the other way round.
func (r *Registry) Lookup(name string, tier domain.Tier) (*Plugin, bool) {
	p, ok := r.byKey[registryKey{name: name, tier: tier}]
	return p, ok
}

// DocumentHandler finds the plugin claiming a document type.
func (r *Registry) DocumentHandler(docType string) (*Plugin, bool) {
	p, ok := r.byDoc[docType]
	return p, ok
}

// Hooks returns the plugins that define a preprocess hook, sorted by
// name so hook ordering is deterministic.
func (r *Registry) Hooks() []*Plugin {
	var out []*Plugin
	for _, p := range r.sorted {
		if p.Preprocess != nil {
			out = append(out, p)
		}
	}
	return out
}

// Catalog returns the visible plugins of one tier, sorted by name. This
// feeds the compact help rendering.
func (r *Registry) Catalog(tier domain.Tier) []*Plugin {
	var out []*Plugin
	for _, p := range r.sorted {
		if !p.Internal && p.Tier == tier {
			out = append(out, p)
		}
	}
	return out
}

// Documented returns every plugin carrying a help schema regardless of
// tier or visibility, sorted by name. Only the resolver sees this list.
func (r *Registry) Documented() []*Plugin {
	var out []*Plugin
	for _, p := range r.sorted {
		if len(p.Help) > 0 {
			out = append(out, p)
		}
	}
	return out
}
