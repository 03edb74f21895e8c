package skills

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Call is one approved action handed to an executor binding
type Call struct {
	UserID    string
	RequestID string
	Params    map[string]interface{}
	Now       time.Time
}

// Outcome is what a binding reports back after a side effect
type Outcome struct {
	Message string
	Data    map[string]interface{}
	Crisis  bool
}

// Handler executes one capability
type Handler func(ctx context.Context, call Call) (*Outcome, error)

// LockKeyFunc names the logical record a call writes. Calls with the same
// key never run concurrently.
type LockKeyFunc func(call Call) string

// Binding ties a capability id to its handler
type Binding struct {
	Capability string
	Handler    Handler
	LockKey    LockKeyFunc
}

// Skill groups bindings that share a store
type Skill interface {
	Name() string
	Bindings() []Binding
}

// Registry maps capability ids to executor bindings
type Registry struct {
	skills   map[string]Skill
	bindings map[string]Binding
	mu       sync.RWMutex
}

// NewRegistry creates an empty binding registry
func NewRegistry() *Registry {
	return &Registry{
		skills:   make(map[string]Skill),
		bindings: make(map[string]Binding),
	}
}

// Register adds every binding of a skill
func (r *Registry) Register(skill Skill) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := skill.Name()
	if _, exists := r.skills[name]; exists {
		return fmt.Errorf("skill %s already registered", name)
	}

	for _, b := range skill.Bindings() {
		if err := r.bindLocked(b); err != nil {
			return fmt.Errorf("skill %s: %w", name, err)
		}
	}

	r.skills[name] = skill
	return nil
}

// Bind adds a single binding
func (r *Registry) Bind(b Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bindLocked(b)
}

func (r *Registry) bindLocked(b Binding) error {
	if b.Capability == "" {
		return fmt.Errorf("binding without a capability id")
	}
	if b.Handler == nil {
		return fmt.Errorf("binding %s has no handler", b.Capability)
	}
	if _, exists := r.bindings[b.Capability]; exists {
		return fmt.Errorf("capability %s bound twice", b.Capability)
	}
	r.bindings[b.Capability] = b
	return nil
}

// Get retrieves the binding for a capability
func (r *Registry) Get(capability string) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[capability]
	return b, ok
}

// Capabilities returns the bound capability ids, sorted
func (r *Registry) Capabilities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.bindings))
	for id := range r.bindings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks that every declared capability has a binding and that no
// binding lacks a declaration.
func (r *Registry) Validate(declared []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	known := make(map[string]bool, len(declared))
	var missing []string
	for _, id := range declared {
		known[id] = true
		if _, ok := r.bindings[id]; !ok {
			missing = append(missing, id)
		}
	}

	var orphans []string
	for id := range r.bindings {
		if !known[id] {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)

	if len(missing) > 0 || len(orphans) > 0 {
		return fmt.Errorf("binding table mismatch: unbound capabilities %v, undeclared bindings %v", missing, orphans)
	}
	return nil
}

// BaseSkill provides a base implementation for skills
type BaseSkill struct {
	name     string
	bindings []Binding
}

// NewBaseSkill creates a new base skill
func NewBaseSkill(name string) *BaseSkill {
	return &BaseSkill{name: name}
}

// Name returns the skill name
func (s *BaseSkill) Name() string { return s.name }

// Bindings returns the skill's bindings
func (s *BaseSkill) Bindings() []Binding { return s.bindings }

// AddBinding adds a binding to the skill
func (s *BaseSkill) AddBinding(b Binding) {
	s.bindings = append(s.bindings, b)
}
