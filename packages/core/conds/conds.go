package conds

import (
	"fmt"
)

// FormatError is raised for malformed or dangling condition references in a
// configuration document. It aborts tree construction.
type FormatError struct {
	Path    string
	Message string
}

func (e *FormatError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Condition is a named boolean flag. The struct is shared by pointer across
// a subtree, state changes are visible to every node holding it.
type Condition struct {
	Name  string
	state bool
}

func NewCondition(name string, state bool) *Condition {
	return &Condition{Name: name, state: state}
}

func (c *Condition) Enable()        { c.state = true }
func (c *Condition) Disable()       { c.state = false }
func (c *Condition) Enabled() bool  { return c.state }
func (c *Condition) Set(state bool) { c.state = state }

// Set maps condition names to their single owning instance. Merging sets
// shares the pointers, it never copies conditions.
type Set map[string]*Condition

// NewSet builds the conditions a tester declares. Declarations come from the
// document's conditionals section as name -> initial state pairs.
func NewSet(path string, declarations map[string]any) (Set, error) {
	set := make(Set, len(declarations))
	for name, value := range declarations {
		state, ok := value.(bool)
		if !ok {
			return nil, &FormatError{
				Path:    path,
				Message: "conditions need to be specified as string -> bool pairs",
			}
		}
		set[name] = NewCondition(name, state)
	}
	return set, nil
}

// Merge unions the parent's conditions with this node's own declarations.
// Pointers are shared with the parent so updates propagate across the tree.
func (s Set) Merge(own Set) Set {
	merged := make(Set, len(s)+len(own))
	for name, cond := range s {
		merged[name] = cond
	}
	for name, cond := range own {
		merged[name] = cond
	}
	return merged
}

// Contains reports whether a condition of that name exists in the set.
func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

// Gate is a boolean expression over named conditions. An empty gate always
// passes. The on_success and on_error maps describe the state updates
// applied after the gated node ran.
type Gate struct {
	All       []string        `yaml:"all"`
	OneOf     []string        `yaml:"one_of"`
	NoneOf    []string        `yaml:"none_of"`
	OnSuccess map[string]bool `yaml:"on_success"`
	OnError   map[string]bool `yaml:"on_error"`
}

// Empty reports whether the gate neither gates nor updates anything.
func (g *Gate) Empty() bool {
	return g == nil ||
		(len(g.All) == 0 && len(g.OneOf) == 0 && len(g.NoneOf) == 0 &&
			len(g.OnSuccess) == 0 && len(g.OnError) == 0)
}

// Validate checks every referenced condition name against the accumulated
// set. Unknown references are fatal configuration errors, never silent
// no-ops.
func (g *Gate) Validate(path string, set Set) error {
	if g == nil {
		return nil
	}

	for _, section := range [][]string{g.All, g.OneOf, g.NoneOf} {
		for _, name := range section {
			if !set.Contains(name) {
				return &FormatError{
					Path:    path,
					Message: fmt.Sprintf("condition %q was used but never declared within a tester", name),
				}
			}
		}
	}

	for _, updates := range []map[string]bool{g.OnSuccess, g.OnError} {
		for name := range updates {
			if !set.Contains(name) {
				return &FormatError{
					Path:    path,
					Message: fmt.Sprintf("condition %q was used but never declared within a tester", name),
				}
			}
		}
	}

	return nil
}

// Check evaluates the gating expression against the current states.
func (g *Gate) Check(set Set) bool {
	if g == nil {
		return true
	}

	if len(g.OneOf) > 0 {
		one := false
		for _, name := range g.OneOf {
			if cond, ok := set[name]; ok && cond.Enabled() {
				one = true
				break
			}
		}
		if !one {
			return false
		}
	}

	for _, name := range g.All {
		cond, ok := set[name]
		if !ok || !cond.Enabled() {
			return false
		}
	}

	for _, name := range g.NoneOf {
		if cond, ok := set[name]; ok && cond.Enabled() {
			return false
		}
	}

	return true
}

// Update applies the gate's post-run state changes: on_error when the node
// failed, on_success otherwise. Updates mutate the shared instances.
func (g *Gate) Update(set Set, failed bool) {
	if g == nil {
		return
	}

	updates := g.OnSuccess
	if failed {
		updates = g.OnError
	}

	for name, state := range updates {
		if cond, ok := set[name]; ok {
			cond.Set(state)
		}
	}
}
