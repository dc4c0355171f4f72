// Package persona defines agent capability profiles and the catalog that
// resolves persona names to profiles.
package persona

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/opsmind-ai/crewd/pkg/models"
)

// Generic is the fallback persona name used when a lookup misses.
const Generic = "General Assistant"

// AutoRoute is the sentinel persona name that requests orchestrator routing.
const AutoRoute = "Auto"

// Orchestrator is the reserved name for the coordinating identity.
const Orchestrator = "Orchestrator"

// Persona is an immutable capability profile for one agent role.
type Persona struct {
	// Name uniquely identifies the persona.
	Name string `yaml:"name"`
	// Role is the one-line job title used in prompts.
	Role string `yaml:"role"`
	// Description explains what the persona is for.
	Description string `yaml:"description"`
	// Capabilities lists what the persona can do, used in prompts.
	Capabilities []string `yaml:"capabilities"`
	// Tools names the tools this persona may invoke, resolved against the
	// tool registry at prompt-build time.
	Tools []string `yaml:"tools"`
	// CanDelegate grants the persona delegation rights.
	CanDelegate bool `yaml:"can_delegate"`
	// DelegationTargets restricts who the persona may delegate to.
	DelegationTargets []string `yaml:"delegation_targets"`
	// MaxReasoningSteps is the per-task step budget.
	MaxReasoningSteps int `yaml:"max_reasoning_steps"`
}

// IsAutoRoute reports whether a submitted persona name requests
// orchestrator-driven routing rather than a specific agent.
func IsAutoRoute(name string) bool {
	return name == AutoRoute || name == Orchestrator
}

// Catalog is a registry of personas with a designated generic fallback.
type Catalog struct {
	mu       sync.RWMutex
	personas map[string]Persona
	fallback string
}

// NewCatalog creates a catalog with the given fallback persona name.
func NewCatalog(fallback string) *Catalog {
	if fallback == "" {
		fallback = Generic
	}
	return &Catalog{personas: make(map[string]Persona), fallback: fallback}
}

// Register adds or replaces a persona.
func (c *Catalog) Register(p Persona) error {
	if p.Name == "" {
		return fmt.Errorf("persona has no name")
	}
	if p.MaxReasoningSteps <= 0 {
		return fmt.Errorf("persona %q has non-positive step budget", p.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.personas[p.Name] = p
	return nil
}

// Lookup returns the persona with exactly the given name.
func (c *Catalog) Lookup(name string) (Persona, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.personas[name]
	return p, ok
}

// Get resolves a persona name, falling back to the generic persona on a
// miss. The second return is false only when the fallback itself is missing,
// which makes the catalog unusable for that name.
func (c *Catalog) Get(name string) (Persona, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if p, ok := c.personas[name]; ok {
		return p, true
	}
	p, ok := c.personas[c.fallback]
	return p, ok
}

// All returns every registered persona, sorted by name.
func (c *Catalog) All() []Persona {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Persona, 0, len(c.personas))
	for _, p := range c.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NonDelegating returns the names of personas without delegation rights,
// sorted. These are the candidates the orchestrator fans work out to.
func (c *Catalog) NonDelegating() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for name, p := range c.personas {
		if !p.CanDelegate {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// delegationHint renders the delegation instructions for a prompt, or ""
// when the persona cannot delegate or has no targets.
func (p Persona) delegationHint() string {
	if !p.CanDelegate || len(p.DelegationTargets) == 0 {
		return ""
	}
	return fmt.Sprintf(
		"You can delegate sub-tasks to these specialized agents: %s.\n"+
			"Use action='delegate' when a sub-task falls outside your expertise "+
			"or when specialization would produce a better result.",
		strings.Join(p.DelegationTargets, ", "))
}

// historyLines renders the ordered step history for prompt inclusion.
func historyLines(history []models.ExecutionStep) string {
	if len(history) == 0 {
		return "None (this is the first step)"
	}
	var b strings.Builder
	for i, step := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Step %d: Thought: %s | Action: %s | Observation: %s",
			step.StepNumber, step.Thought, step.Action, step.Observation)
	}
	return b.String()
}
