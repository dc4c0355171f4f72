// Package tool provides the tool registry agents execute actions through.
package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrorKind classifies tool execution failures.
type ErrorKind int

const (
	// NotFound means no tool with the requested name is registered.
	NotFound ErrorKind = iota
	// MissingParam means a required parameter was absent; the tool was
	// never invoked.
	MissingParam
	// ExecutionFailed means the tool ran and returned an error.
	ExecutionFailed
)

// String returns a human-readable representation of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case MissingParam:
		return "missing_param"
	case ExecutionFailed:
		return "execution_failed"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by Registry.Execute.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Tool is the tool name the caller asked for.
	Tool string
	// Err is the underlying cause, if any.
	Err error
	// Message is a human-readable description.
	Message string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool %q %s: %v", e.Tool, e.Kind, e.Err)
	}
	return fmt.Sprintf("tool %q %s: %s", e.Tool, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from an error, if it is a tool error.
func KindOf(err error) (ErrorKind, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind, true
	}
	return 0, false
}

// Definition describes one tool: its name, purpose, and parameter schema.
// Parameters follows the JSON-schema object convention with a "required"
// list of parameter names.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// RequiredParams returns the names listed under parameters.required.
func (d Definition) RequiredParams() []string {
	raw, ok := d.Parameters["required"]
	if !ok {
		return nil
	}
	switch req := raw.(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	default:
		return nil
	}
}

// Func is a tool implementation. It receives the decision's parameters and
// returns a result that will be serialized into the step observation.
type Func func(params map[string]any) (any, error)

// Registry maps tool names to definitions and implementations.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	impls map[string]Func
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:  make(map[string]Definition),
		impls: make(map[string]Func),
	}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(def Definition, impl Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %q is already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.impls[def.Name] = impl
	return nil
}

// Definition returns the definition for one tool.
func (r *Registry) Definition(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Definitions resolves a persona's tool names against the registry,
// silently skipping names that are not registered.
func (r *Registry) Definitions(names []string) []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if def, ok := r.defs[name]; ok {
			defs = append(defs, def)
		}
	}
	return defs
}

// All returns every registered definition, sorted by name.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute validates required parameters and invokes the tool.
func (r *Registry) Execute(name string, params map[string]any) (any, error) {
	r.mu.RLock()
	def, defOK := r.defs[name]
	impl, implOK := r.impls[name]
	r.mu.RUnlock()

	if !defOK || !implOK {
		return nil, &Error{Kind: NotFound, Tool: name, Message: "no such tool"}
	}

	for _, p := range def.RequiredParams() {
		if _, ok := params[p]; !ok {
			return nil, &Error{
				Kind:    MissingParam,
				Tool:    name,
				Message: fmt.Sprintf("missing required parameter %q", p),
			}
		}
	}

	result, err := impl(params)
	if err != nil {
		return nil, &Error{Kind: ExecutionFailed, Tool: name, Err: err}
	}
	return result, nil
}
