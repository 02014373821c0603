package tree

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cmdspec/cmdspec/packages/containers"
	"github.com/cmdspec/cmdspec/packages/core/conds"
	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/groups"
	"github.com/cmdspec/cmdspec/packages/core/scope"
	"github.com/cmdspec/cmdspec/packages/extractors"
	"github.com/cmdspec/cmdspec/packages/plugins"
	"github.com/cmdspec/cmdspec/packages/requirements"
	"github.com/cmdspec/cmdspec/packages/validators"
)

// PatternError reports an invalid id_pattern declaration.
type PatternError struct {
	Path    string
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("tester attribute 'id_pattern' needs to contain exactly one '%%d' verb, got %q (%s)", e.Pattern, e.Path)
}

// Test is one executable leaf of the tree.
type Test struct {
	ID          string
	Title       string
	Description string

	// Command tokens with the declared scope already applied; the live
	// hotplug overlay is applied again at run time.
	Command   []any
	Timeout   time.Duration
	Shell     bool
	Env       map[string]string
	Gate      *conds.Gate
	Groups    [][]string
	ErrorMode string
	Output    string
	Logfile   string

	Validators []validators.Validator
	Extractors []extractors.Extractor

	// Path of the declaring document; the test's working directory is its
	// directory.
	Path string
}

// Dir returns the test's working directory.
func (t *Test) Dir() string {
	return filepath.Dir(t.Path)
}

// Tester is one document's node in the tree, owning its tests, nested
// testers and the collaborators wrapped around them.
type Tester struct {
	ID    string
	Name  string
	Title string

	Scope      *scope.Scope
	Conditions conds.Set
	Gate       *conds.Gate
	Groups     [][]string
	ErrorMode  string
	Env        map[string]string
	Output     string
	Logfile    string

	Containers []*containers.Container
	Plugins    []plugins.Plugin
	Tests      []*Test
	Children   []*Tester

	Path string

	// Runall is flipped by the selection filter once this node or an
	// ancestor matched an include selector; from then on every descendant is
	// included (exclusions still apply).
	Runall bool

	idPattern string
}

// Options configure tree construction.
type Options struct {
	// RuntimeVars populate the reserved $runtime namespace.
	RuntimeVars map[string]any
	// Version is the engine's own version for requires checks.
	Version string
}

// Build constructs the full tree from a root document. It returns the tree
// together with non-fatal warnings collected from nested documents.
func Build(doc *config.Document, opts Options) (*Tester, []string, error) {
	b := &builder{
		registry: NewRegistry(),
		opts:     opts,
	}
	root, err := b.tester(doc, nil, nil, nil, "", nil)
	if err != nil {
		return nil, b.warnings, err
	}
	return root, b.warnings, nil
}

type builder struct {
	registry *Registry
	opts     Options
	warnings []string
}

func (b *builder) tester(doc *config.Document, parentScope *scope.Scope, parentConds conds.Set,
	parentGroups [][]string, parentErrorMode string, parentEnv map[string]string) (*Tester, error) {

	spec := doc.Tester
	path := doc.Path

	sc, err := b.buildScope(doc, parentScope)
	if err != nil {
		return nil, err
	}

	own, err := conds.NewSet(path, spec.Conditionals)
	if err != nil {
		return nil, err
	}
	condSet := parentConds.Merge(own)

	if err := spec.Conditions.Validate(path, condSet); err != nil {
		return nil, err
	}

	groupPaths := mergeGroups(parentGroups, spec.Groups)

	errorMode := spec.ErrorMode
	if errorMode == "" {
		errorMode = parentErrorMode
	}
	if errorMode == "" {
		errorMode = config.DefaultErrorMode
	}

	env := mergeEnv(parentEnv, spec.Env)

	if err := validateIDPattern(path, spec.IDPattern); err != nil {
		return nil, err
	}

	if !spec.Requires.Empty() {
		if err := requirements.Check(path, spec.Requires, b.opts.Version); err != nil {
			return nil, err
		}
	}

	tester := &Tester{
		Name:       spec.Name,
		Title:      spec.Title,
		idPattern:  spec.IDPattern,
		Scope:      sc,
		Conditions: condSet,
		Gate:       spec.Conditions,
		Groups:     groupPaths,
		ErrorMode:  errorMode,
		Env:        env,
		Output:     spec.Output,
		Logfile:    spec.Logfile,
		Path:       path,
	}
	if tester.Title == "" {
		tester.Title = spec.Name
	}
	if tester.Name == "" {
		tester.Name = spec.Title
	}

	tester.ID = spec.ID
	if tester.ID == "" {
		tester.ID = tester.Name
	}
	if err := b.registry.Add(tester.ID, path); err != nil {
		return nil, err
	}

	tester.Containers, err = containers.FromSpecs(path, doc.Containers, sc)
	if err != nil {
		return nil, err
	}
	tester.Plugins, err = plugins.FromSpecs(path, doc.Plugins, sc)
	if err != nil {
		return nil, err
	}

	for i, testSpec := range doc.Tests {
		test, err := b.test(path, i+1, testSpec, tester)
		if err != nil {
			return nil, err
		}
		tester.Tests = append(tester.Tests, test)
	}

	children, err := b.children(doc, tester)
	if err != nil {
		return nil, err
	}
	tester.Children = children

	return tester, nil
}

// buildScope merges the parent's variables with the document's own, injects
// the reserved cwd variable and applies sibling references.
func (b *builder) buildScope(doc *config.Document, parent *scope.Scope) (*scope.Scope, error) {
	vars := make(map[string]any, len(doc.Variables)+1)
	for k, v := range doc.Variables {
		vars[k] = v
	}
	vars["cwd"] = filepath.Dir(doc.Path)

	var sc *scope.Scope
	if parent == nil {
		sc = scope.New(vars, scope.WithRuntime(b.opts.RuntimeVars))
	} else {
		sc = scope.Merge(parent, vars)
	}
	if err := sc.ApplySelf(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (b *builder) test(path string, number int, spec config.TestSpec, parent *Tester) (*Test, error) {
	sc := parent.Scope
	if len(spec.Variables) > 0 {
		sc = scope.Merge(parent.Scope, spec.Variables)
		if err := sc.ApplySelf(); err != nil {
			return nil, err
		}
	}

	if err := spec.Conditions.Validate(path, parent.Conditions); err != nil {
		return nil, err
	}

	command, err := resolveTokens(spec.Command, sc)
	if err != nil {
		return nil, err
	}
	arguments, err := resolveTokens(spec.Arguments, sc)
	if err != nil {
		return nil, err
	}
	command = append(command, arguments...)

	vs, err := validators.FromSpecs(path, spec.Validators, sc)
	if err != nil {
		return nil, err
	}
	es, err := extractors.FromSpecs(path, spec.Extractors, sc)
	if err != nil {
		return nil, err
	}

	errorMode := spec.ErrorMode
	if errorMode == "" {
		errorMode = parent.ErrorMode
	}

	output := spec.Output
	if output == "" {
		output = parent.Output
	}
	logfile := spec.Logfile
	if logfile == "" {
		logfile = parent.Logfile
	}

	test := &Test{
		ID:          spec.ID,
		Title:       spec.Title,
		Description: spec.Description,
		Command:     command,
		Timeout:     spec.TimeoutDuration(),
		Shell:       spec.Shell,
		Env:         mergeEnv(parent.Env, spec.Env),
		Gate:        spec.Conditions,
		Groups:      mergeGroups(parent.Groups, spec.Groups),
		ErrorMode:   errorMode,
		Output:      output,
		Logfile:     logfile,
		Validators:  vs,
		Extractors:  es,
		Path:        path,
	}

	if test.ID == "" {
		if parent.idPattern != "" {
			test.ID = fmt.Sprintf(parent.idPattern, number)
		} else {
			test.ID = test.Title
		}
	}
	if err := b.registry.Add(test.ID, path); err != nil {
		return nil, err
	}

	return test, nil
}

// children loads the documents referenced by the testers globs, relative to
// the including document's directory, in glob match order.
func (b *builder) children(doc *config.Document, parent *Tester) ([]*Tester, error) {
	var children []*Tester
	for _, pattern := range doc.Testers {
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(filepath.Dir(doc.Path), pattern)
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, &config.KeyError{Path: doc.Path, Message: fmt.Sprintf("invalid testers glob %q", pattern)}
		}
		sort.Strings(matches)

		for _, match := range matches {
			childDoc, warnings, err := config.Load(match)
			if err != nil {
				return nil, err
			}
			b.warnings = append(b.warnings, warnings...)

			child, err := b.tester(childDoc, parent.Scope, parent.Conditions,
				parent.Groups, parent.ErrorMode, parent.Env)
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
	}
	return children, nil
}

// resolveTokens applies the declared scope to a command or arguments list.
// A token that resolves to a list expands into several tokens.
func resolveTokens(tokens []any, sc *scope.Scope) ([]any, error) {
	var resolved []any
	for _, token := range tokens {
		value, err := sc.Resolve(token)
		if err != nil {
			return nil, err
		}
		if list, ok := value.([]any); ok {
			resolved = append(resolved, list...)
			continue
		}
		resolved = append(resolved, value)
	}
	return resolved, nil
}

func mergeEnv(parent, own map[string]string) map[string]string {
	merged := make(map[string]string, len(parent)+len(own))
	for k, v := range parent {
		merged[k] = v
	}
	for k, v := range own {
		merged[k] = v
	}
	return merged
}

// mergeGroups expands a node's raw group specs and appends each expansion to
// every inherited path.
func mergeGroups(parent [][]string, specs []string) [][]string {
	own := groups.Parse(specs)
	if len(own) == 0 {
		return groups.Merge(parent, nil)
	}

	base := parent
	if len(base) == 0 {
		base = [][]string{{}}
	}

	var merged [][]string
	for _, parentPath := range base {
		for _, ownPath := range own {
			path := make([]string, len(parentPath), len(parentPath)+len(ownPath))
			copy(path, parentPath)
			merged = append(merged, append(path, ownPath...))
		}
	}
	return merged
}

// validateIDPattern checks that a pattern contains exactly one %d verb and
// no other formatting verbs.
func validateIDPattern(path, pattern string) error {
	if pattern == "" {
		return nil
	}
	stripped := strings.ReplaceAll(pattern, "%%", "")
	if strings.Count(stripped, "%") != 1 || strings.Count(stripped, "%d") != 1 {
		return &PatternError{Path: path, Pattern: pattern}
	}
	return nil
}
