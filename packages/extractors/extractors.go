package extractors

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// Policy decides how the pipeline reacts when an extractor finds nothing.
type Policy string

const (
	// PolicyContinue swallows the miss and moves on to the next extractor.
	PolicyContinue Policy = "continue"
	// PolicyWarn swallows the miss but surfaces a warning.
	PolicyWarn Policy = "warn"
	// PolicyBreak stops extracting and fails the test with the miss.
	PolicyBreak Policy = "break"
)

// ParsePolicy validates an on_miss value from a document.
func ParsePolicy(path, value string) (Policy, error) {
	switch value {
	case "":
		return PolicyContinue, nil
	case string(PolicyContinue), string(PolicyWarn), string(PolicyBreak):
		return Policy(value), nil
	default:
		return "", &Error{Path: path, Message: fmt.Sprintf("unexpected value for the 'on_miss' key: %s", value)}
	}
}

// Failure is the expected negative result of an extraction, handled
// according to the extractor's on_miss policy.
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

// Error reports an invalid extractor configuration.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Extractor pulls values out of a command result into the hotplug overlay.
type Extractor interface {
	Name() string
	OnMiss() Policy
	Extract(result *command.Result, hot *scope.Hotplug) error
}

// Factory constructs an extractor from its raw document parameter.
type Factory func(path, name string, param any, sc *scope.Scope) (Extractor, error)

var registry = map[string]Factory{}

// Register makes an extractor available under the given name.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// Names lists the registered extractor names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New instantiates a single extractor reference.
func New(path string, spec config.NamedSpec, sc *scope.Scope) (Extractor, error) {
	factory, ok := registry[spec.Name]
	if !ok {
		return nil, &Error{Path: path, Message: fmt.Sprintf("unable to find specified extractor %q", spec.Name)}
	}

	param, err := sc.Resolve(spec.Param)
	if err != nil {
		return nil, err
	}
	return factory(path, spec.Name, param, sc)
}

// FromSpecs instantiates a test's extractor list in declaration order.
func FromSpecs(path string, specs config.SpecList, sc *scope.Scope) ([]Extractor, error) {
	extractors := make([]Extractor, 0, len(specs))
	for _, spec := range specs {
		e, err := New(path, spec, sc)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, e)
	}
	return extractors, nil
}

func decodeParam(path, name string, param, out any) error {
	data, err := yaml.Marshal(param)
	if err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("extractor %q: invalid parameter: %v", name, err)}
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return &Error{Path: path, Message: fmt.Sprintf("extractor %q: invalid parameter: %v", name, err)}
	}
	return nil
}

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
	Register("regex", newRegexExtractor)
	Register("json", newJSONExtractor)
}
