package extractors

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

type regexParams struct {
	Pattern    string         `yaml:"pattern"`
	Variable   string         `yaml:"variable"`
	Default    map[string]any `yaml:"default"`
	IgnoreCase bool           `yaml:"ignore_case"`
	Multiline  bool           `yaml:"multiline"`
	DotAll     bool           `yaml:"dotall"`
	Stream     string         `yaml:"stream"`
	OnMiss     string         `yaml:"on_miss"`
}

// regexExtractor runs a pattern over the command output and stores every
// match in the hotplug overlay. The bare variable name holds the first
// match; 'name-<i>' the i-th match; 'name-<i>-<g>' its g-th capture group
// (group 0 is the whole match).
type regexExtractor struct {
	path    string
	pattern *regexp.Regexp
	params  regexParams
	onMiss  Policy
}

func newRegexExtractor(path, name string, param any, _ *scope.Scope) (Extractor, error) {
	var params regexParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Pattern == "" || params.Variable == "" {
		return nil, &Error{Path: path, Message: "extractor 'regex' requires a 'pattern' and a 'variable' key"}
	}

	var flags []string
	if params.IgnoreCase {
		flags = append(flags, "i")
	}
	if params.Multiline {
		flags = append(flags, "m")
	}
	if params.DotAll {
		flags = append(flags, "s")
	}
	expr := params.Pattern
	if len(flags) > 0 {
		expr = "(?" + strings.Join(flags, "") + ")" + expr
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, &Error{Path: path, Message: fmt.Sprintf("specified regex %q is invalid", params.Pattern)}
	}

	onMiss, err := ParsePolicy(path, params.OnMiss)
	if err != nil {
		return nil, err
	}

	return &regexExtractor{path: path, pattern: re, params: params, onMiss: onMiss}, nil
}

func (e *regexExtractor) Name() string { return "regex" }

func (e *regexExtractor) OnMiss() Policy { return e.onMiss }

func (e *regexExtractor) Extract(result *command.Result, hot *scope.Hotplug) error {
	output, err := outputFor(result, e.params.Stream)
	if err != nil {
		return err
	}

	for key, value := range e.params.Default {
		hot.Set(key, value)
	}

	matches := e.pattern.FindAllStringSubmatch(output, -1)
	for i, match := range matches {
		if i == 0 {
			hot.Set(e.params.Variable, match[0])
		}
		hot.Set(fmt.Sprintf("%s-%d", e.params.Variable, i), match[0])
		for g, group := range match {
			hot.Set(fmt.Sprintf("%s-%d-%d", e.params.Variable, i, g), group)
		}
	}

	if len(matches) == 0 {
		return Failuref("pattern %q was not found in command output", e.params.Pattern)
	}
	return nil
}

type jsonParams struct {
	Path     string `yaml:"path"`
	Variable string `yaml:"variable"`
	Default  any    `yaml:"default"`
	Stream   string `yaml:"stream"`
	OnMiss   string `yaml:"on_miss"`
}

// jsonExtractor queries JSON command output with a gjson path and stores the
// result under a variable.
type jsonExtractor struct {
	path   string
	params jsonParams
	onMiss Policy
}

func newJSONExtractor(path, name string, param any, _ *scope.Scope) (Extractor, error) {
	var params jsonParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Path == "" || params.Variable == "" {
		return nil, &Error{Path: path, Message: "extractor 'json' requires a 'path' and a 'variable' key"}
	}

	onMiss, err := ParsePolicy(path, params.OnMiss)
	if err != nil {
		return nil, err
	}
	return &jsonExtractor{path: path, params: params, onMiss: onMiss}, nil
}

func (e *jsonExtractor) Name() string { return "json" }

func (e *jsonExtractor) OnMiss() Policy { return e.onMiss }

func (e *jsonExtractor) Extract(result *command.Result, hot *scope.Hotplug) error {
	output, err := outputFor(result, e.params.Stream)
	if err != nil {
		return err
	}

	if e.params.Default != nil {
		hot.Set(e.params.Variable, e.params.Default)
	}

	if !gjson.Valid(output) {
		return Failuref("command output is not valid JSON")
	}

	value := gjson.Get(output, e.params.Path)
	if !value.Exists() {
		return Failuref("path %q was not found in command output", e.params.Path)
	}

	hot.Set(e.params.Variable, value.Value())
	return nil
}
