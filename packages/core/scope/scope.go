package scope

import (
	"fmt"
	"os"
	"strings"
)

// Number of self-application passes before giving up on chained variable
// references. Cyclic definitions stop converging and are left as-is.
const maxSelfApply = 8

// RuntimeVariableError is returned when a variable is declared with the
// $runtime sentinel but no runtime value was injected for it.
type RuntimeVariableError struct {
	Name string
}

func (e *RuntimeVariableError) Error() string {
	return fmt.Sprintf("unable to find runtime variable %q", e.Name)
}

// EnvVariableError is returned when a variable is declared with the $env
// sentinel but the host environment does not contain it.
type EnvVariableError struct {
	Name string
}

func (e *EnvVariableError) Error() string {
	return fmt.Sprintf("unable to find environment variable %q", e.Name)
}

// Scope is an immutable variable mapping with two reserved read-only
// namespaces: the host environment and runtime-injected values.
type Scope struct {
	vars    map[string]any
	env     map[string]string
	runtime map[string]any
}

// Option configures a Scope during construction.
type Option func(*Scope)

// WithRuntime injects the $runtime namespace.
func WithRuntime(vars map[string]any) Option {
	return func(s *Scope) {
		s.runtime = vars
	}
}

// WithEnv overrides the $env namespace. Mainly useful in tests; the default
// is a snapshot of the host environment.
func WithEnv(env map[string]string) Option {
	return func(s *Scope) {
		s.env = env
	}
}

func New(vars map[string]any, opts ...Option) *Scope {
	s := &Scope{
		vars:    make(map[string]any, len(vars)),
		env:     hostEnv(),
		runtime: map[string]any{},
	}
	for k, v := range vars {
		s.vars[k] = v
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Merge creates the child scope of a nested tester: the parent's variables
// with the child's declarations shadowing them. The reserved namespaces are
// always taken from the parent, they exist once per run.
func Merge(parent *Scope, vars map[string]any) *Scope {
	merged := make(map[string]any, len(parent.vars)+len(vars))
	for k, v := range parent.vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	return &Scope{vars: merged, env: parent.env, runtime: parent.runtime}
}

// Vars returns the declared variable names. Used for diagnostics only.
func (s *Scope) Vars() []string {
	names := make([]string, 0, len(s.vars))
	for k := range s.vars {
		names = append(names, k)
	}
	return names
}

// Get looks up a declared variable with sentinel indirection applied.
func (s *Scope) Get(name string) (any, bool) {
	v, ok := s.vars[name]
	if !ok {
		return nil, false
	}
	resolved, err := resolveSentinel(name, v, s.env, s.runtime)
	if err != nil {
		return nil, false
	}
	return resolved, true
}

// Resolve rewrites strings, maps and lists by substituting every ${name}
// placeholder with the corresponding variable value. A string that is
// exactly one placeholder is replaced by the value itself, which allows a
// variable to expand into a list of command tokens.
func (s *Scope) Resolve(value any) (any, error) {
	return resolve(value, s.vars, s.env, s.runtime)
}

// ApplySelf substitutes the scope's variables into each other, so variables
// declared in one block may reference their siblings. Resolution iterates to
// a fixed point (bounded), cyclic references are left unsubstituted.
func (s *Scope) ApplySelf() error {
	for i := 0; i < maxSelfApply; i++ {
		changed := false
		for k, v := range s.vars {
			resolved, err := resolve(v, s.vars, s.env, s.runtime)
			if err != nil {
				return err
			}
			if !equalValue(v, resolved) {
				s.vars[k] = resolved
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
	return nil
}

// Hotplug creates the mutable per-run overlay, seeded with a shallow copy of
// the declared variables.
func (s *Scope) Hotplug() *Hotplug {
	vars := make(map[string]any, len(s.vars))
	for k, v := range s.vars {
		vars[k] = v
	}
	return &Hotplug{vars: vars, env: s.env, runtime: s.runtime}
}

// Hotplug is the live variable overlay of one tree-walk. Extractors insert
// new variables into it and the engine publishes the previous command result
// through it. It is never shared across concurrent writers.
type Hotplug struct {
	vars    map[string]any
	env     map[string]string
	runtime map[string]any
	prev    any
}

// Fork takes the shallow copy handed to a subtree, so variables added below
// do not leak back into siblings of the forking tester.
func (h *Hotplug) Fork() *Hotplug {
	vars := make(map[string]any, len(h.vars))
	for k, v := range h.vars {
		vars[k] = v
	}
	return &Hotplug{vars: vars, env: h.env, runtime: h.runtime, prev: h.prev}
}

func (h *Hotplug) Set(name string, value any) {
	h.vars[name] = value
}

// SetAll merges a variable map into the overlay, e.g. the address variables
// exported by a started container.
func (h *Hotplug) SetAll(vars map[string]any) {
	for k, v := range vars {
		h.vars[k] = v
	}
}

func (h *Hotplug) Get(name string) (any, bool) {
	v, ok := h.vars[name]
	return v, ok
}

// SetPrev stores the opaque result of the last executed command.
func (h *Hotplug) SetPrev(result any) {
	h.prev = result
}

// Prev returns the stored previous command result, nil if no command ran yet
// in this branch.
func (h *Hotplug) Prev() any {
	return h.prev
}

// Resolve substitutes against the live overlay.
func (h *Hotplug) Resolve(value any) (any, error) {
	return resolve(value, h.vars, h.env, h.runtime)
}

func resolve(value any, vars map[string]any, env map[string]string, runtime map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, vars, env, runtime)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolve(item, vars, env, runtime)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := resolve(item, vars, env, runtime)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// resolveString walks all declared variables and substitutes their
// placeholders. Sentinel indirection happens first, so a chain such as
// `var: $runtime` followed by `${var}` in a command works.
func resolveString(candidate string, vars map[string]any, env map[string]string, runtime map[string]any) (any, error) {
	for name, raw := range vars {
		value, err := resolveSentinel(name, raw, env, runtime)
		if err != nil {
			return nil, err
		}

		placeholder := "${" + name + "}"
		if candidate == placeholder {
			if _, isString := value.(string); !isString {
				// Whole-value replacement: a variable may expand into a
				// list or keep its scalar type.
				return value, nil
			}
			candidate = value.(string)
			continue
		}

		if strings.Contains(candidate, placeholder) {
			candidate = strings.ReplaceAll(candidate, placeholder, stringify(value))
		}
	}
	return candidate, nil
}

func resolveSentinel(name string, value any, env map[string]string, runtime map[string]any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return value, nil
	}
	switch s {
	case "$runtime":
		v, ok := runtime[name]
		if !ok {
			return nil, &RuntimeVariableError{Name: name}
		}
		return v, nil
	case "$env":
		v, ok := env[name]
		if !ok {
			return nil, &EnvVariableError{Name: name}
		}
		return v, nil
	}
	return value, nil
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", value)
}

func equalValue(a, b any) bool {
	return fmt.Sprintf("%#v", a) == fmt.Sprintf("%#v", b)
}

func hostEnv() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.IndexByte(e, '='); i > 0 {
			env[e[:i]] = e[i+1:]
		}
	}
	return env
}
