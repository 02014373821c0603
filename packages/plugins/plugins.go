package plugins

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// RunError wraps any failure raised by a plugin, keeping the plugin name and
// the document that declared it. The enclosing tester handles it according
// to its error mode.
type RunError struct {
	Original error
	Name     string
	Path     string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("plugin %q failed: %v (%s)", e.Name, e.Original, e.Path)
}

func (e *RunError) Unwrap() error {
	return e.Original
}

// Error reports an invalid plugin configuration.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Plugin is a setup/teardown pair wrapped around a tester's run. Stop must
// be idempotent; it is called even when Run failed halfway.
type Plugin interface {
	Name() string
	Run(hot *scope.Hotplug) error
	Stop() error
}

// Factory constructs a plugin from its raw document parameter.
type Factory func(path, name string, param any, sc *scope.Scope) (Plugin, error)

var registry = map[string]Factory{}

// Register makes a plugin available under the given name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names lists the registered plugin names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates a single plugin reference.
func New(path string, spec config.NamedSpec, sc *scope.Scope) (Plugin, error) {
	factory, ok := registry[spec.Name]
	if !ok {
		return nil, &Error{Path: path, Message: fmt.Sprintf("unable to find specified plugin %q", spec.Name)}
	}

	param, err := sc.Resolve(spec.Param)
	if err != nil {
		return nil, err
	}
	return factory(path, spec.Name, param, sc)
}

// FromSpecs instantiates a tester's plugin list in declaration order.
func FromSpecs(path string, specs config.SpecList, sc *scope.Scope) ([]Plugin, error) {
	plugins := make([]Plugin, 0, len(specs))
	for _, spec := range specs {
		p, err := New(path, spec, sc)
		if err != nil {
			return nil, err
		}
		plugins = append(plugins, p)
	}
	return plugins, nil
}

// Wrap turns a plugin failure into a RunError carrying its origin.
func Wrap(err error, name, path string) error {
	if err == nil {
		return nil
	}
	return &RunError{Original: err, Name: name, Path: path}
}

func decodeParam(path, name string, param, out any) error {
	data, err := yaml.Marshal(param)
	if err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("plugin %q: invalid parameter: %v", name, err)}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("plugin %q: invalid parameter: %v", name, err)}
	}
	return nil
}

func init() {
	Register("os_command", newOsCommandPlugin)
	Register("mkdir", newMkdirPlugin)
	Register("copy", newCopyPlugin)
	Register("cleanup", newCleanupPlugin)
	Register("cleanup_command", newCleanupCommandPlugin)
	Register("http_listener", newHTTPListenerPlugin)
	Register("tempfile", newTempfilePlugin)
}
