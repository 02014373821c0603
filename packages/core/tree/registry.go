package tree

import "fmt"

// DuplicateIDError reports two nodes claiming the same ID anywhere in one
// run. It aborts construction before any test executes.
type DuplicateIDError struct {
	ID    string
	Path  string
	Other string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("the ID %q in %s was already assigned in %s", e.ID, e.Path, e.Other)
}

// Registry enforces run-wide ID uniqueness. It is populated during tree
// construction, which is sequential, so no locking is needed.
type Registry struct {
	ids map[string]string
}

// NewRegistry creates an empty ID registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]string)}
}

// Add claims an ID for the node declared in path.
func (r *Registry) Add(id, path string) error {
	if other, ok := r.ids[id]; ok {
		return &DuplicateIDError{ID: id, Path: path, Other: other}
	}
	r.ids[id] = path
	return nil
}
