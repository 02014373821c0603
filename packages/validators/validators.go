package validators

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// Failure is the expected negative result of a validation. Everything else
// returned by a validator is reported as an unexpected validator bug.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

// Failuref builds a Failure from a format string.
func Failuref(format string, args ...any) *Failure {
	return &Failure{Message: fmt.Sprintf(format, args...)}
}

// Error reports an invalid validator configuration. It aborts tree
// construction before anything runs.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Validator checks one aspect of a command result.
type Validator interface {
	Name() string
	Run(result *command.Result, hot *scope.Hotplug) error
}

// Factory constructs a validator from its raw document parameter. The scope
// is applied to the parameter before type checks, so variables may shape
// validator configuration.
type Factory func(path, name string, param any, sc *scope.Scope) (Validator, error)

var registry = map[string]Factory{}

// Register makes a validator available under the given name. Embedding
// callers may add their own before building the tree.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names lists the registered validator names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates a single validator reference.
func New(path string, spec config.NamedSpec, sc *scope.Scope) (Validator, error) {
	factory, ok := registry[spec.Name]
	if !ok {
		return nil, &Error{Path: path, Message: fmt.Sprintf("unable to find specified validator %q", spec.Name)}
	}

	param, err := sc.Resolve(spec.Param)
	if err != nil {
		return nil, err
	}
	return factory(path, spec.Name, param, sc)
}

// FromSpecs instantiates a test's validator list in declaration order.
func FromSpecs(path string, specs config.SpecList, sc *scope.Scope) ([]Validator, error) {
	validators := make([]Validator, 0, len(specs))
	for _, spec := range specs {
		v, err := New(path, spec, sc)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}
	return validators, nil
}

// decodeParam maps a raw YAML parameter onto a typed parameter struct.
func decodeParam(path, name string, param, out any) error {
	data, err := yaml.Marshal(param)
	if err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("validator %q: invalid parameter: %v", name, err)}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("validator %q: invalid parameter: %v", name, err)}
	}
	return nil
}

// outputFor selects the stream a validator works on; both streams merged is
// the default.
func outputFor(result *command.Result, stream string) (string, error) {
	switch stream {
	case "", "both":
		return result.Output(), nil
	case "stdout":
		return result.Stdout, nil
	case "stderr":
		return result.Stderr, nil
	default:
		return "", fmt.Errorf("unexpected value for the 'stream' key: %s", stream)
	}
}

func init() {
	Register("status", newStatusValidator)
	Register("error", newErrorValidator)
	Register("contains", newContainsValidator)
	Register("match", newMatchValidator)
	Register("regex", newRegexValidator)
	Register("file_exists", newFileExistsValidator)
	Register("dir_exists", newDirExistsValidator)
	Register("file_contains", newFileContainsValidator)
	Register("json", newJSONValidator)
	Register("json_schema", newJSONSchemaValidator)
}
