package validators

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

// resolvePath resolves a filesystem path relative to the document declaring
// the validator.
func resolvePath(docPath, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(docPath), p)
}

// hotString re-resolves a parameter string against the live overlay, so
// validators can check against values extracted by earlier tests.
func hotString(hot *scope.Hotplug, s string) (string, error) {
	resolved, err := hot.Resolve(s)
	if err != nil {
		return "", err
	}
	if str, ok := resolved.(string); ok {
		return str, nil
	}
	return fmt.Sprintf("%v", resolved), nil
}

// statusValidator checks the command's exit code.
type statusValidator struct {
	path     string
	expected int
}

func newStatusValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	expected, ok := param.(int)
	if !ok {
		return nil, &Error{Path: path, Message: "validator 'status' requires an integer parameter"}
	}
	return &statusValidator{path: path, expected: expected}, nil
}

func (v *statusValidator) Name() string { return "status" }

func (v *statusValidator) Run(result *command.Result, _ *scope.Hotplug) error {
	if result.Status != v.expected {
		return Failuref("obtained status code '%d' does not match the expected code '%d'", result.Status, v.expected)
	}
	return nil
}

// errorValidator checks whether the command failed or succeeded as a whole.
type errorValidator struct {
	path     string
	expected bool
}

func newErrorValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	expected, ok := param.(bool)
	if !ok {
		return nil, &Error{Path: path, Message: "validator 'error' requires a boolean parameter"}
	}
	return &errorValidator{path: path, expected: expected}, nil
}

func (v *errorValidator) Name() string { return "error" }

func (v *errorValidator) Run(result *command.Result, _ *scope.Hotplug) error {
	failed := result.Status != 0
	if v.expected && !failed {
		return Failuref("obtained no error, despite error was expected")
	}
	if !v.expected && failed {
		return Failuref("obtained error status '%d', despite success was expected", result.Status)
	}
	return nil
}

type containsParams struct {
	Values     []string `yaml:"values"`
	Invert     []string `yaml:"invert"`
	IgnoreCase bool     `yaml:"ignore_case"`
	Stream     string   `yaml:"stream"`
}

// containsValidator checks the command output for expected and forbidden
// substrings.
type containsValidator struct {
	path   string
	params containsParams
}

func newContainsValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params containsParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.Values) == 0 && len(params.Invert) == 0 {
		return nil, &Error{Path: path, Message: "validator 'contains' requires a 'values' or 'invert' key"}
	}
	return &containsValidator{path: path, params: params}, nil
}

func (v *containsValidator) Name() string { return "contains" }

func (v *containsValidator) Run(result *command.Result, hot *scope.Hotplug) error {
	output, err := outputFor(result, v.params.Stream)
	if err != nil {
		return err
	}
	if v.params.IgnoreCase {
		output = strings.ToLower(output)
	}

	for _, value := range v.params.Values {
		value, err := hotString(hot, value)
		if err != nil {
			return err
		}
		if v.params.IgnoreCase {
			value = strings.ToLower(value)
		}
		if !strings.Contains(output, value) {
			return Failuref("string %q was not found in command output", value)
		}
	}

	for _, value := range v.params.Invert {
		value, err := hotString(hot, value)
		if err != nil {
			return err
		}
		if v.params.IgnoreCase {
			value = strings.ToLower(value)
		}
		if strings.Contains(output, value) {
			return Failuref("string %q was found in command output", value)
		}
	}

	return nil
}

type matchParams struct {
	Value      string `yaml:"value"`
	IgnoreCase bool   `yaml:"ignore_case"`
	TrimSpace  bool   `yaml:"trim"`
	Stream     string `yaml:"stream"`
}

// matchValidator checks for an exact match of the whole command output.
type matchValidator struct {
	path   string
	params matchParams
}

func newMatchValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params matchParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Value == "" {
		return nil, &Error{Path: path, Message: "validator 'match' requires a 'value' key"}
	}
	return &matchValidator{path: path, params: params}, nil
}

func (v *matchValidator) Name() string { return "match" }

func (v *matchValidator) Run(result *command.Result, hot *scope.Hotplug) error {
	output, err := outputFor(result, v.params.Stream)
	if err != nil {
		return err
	}
	expected, err := hotString(hot, v.params.Value)
	if err != nil {
		return err
	}

	if v.params.TrimSpace {
		output = strings.TrimSpace(output)
		expected = strings.TrimSpace(expected)
	}
	if v.params.IgnoreCase {
		output = strings.ToLower(output)
		expected = strings.ToLower(expected)
	}

	if output != expected {
		return Failuref("string %q does not match command output", expected)
	}
	return nil
}

// regexValidator checks the command output against a regular expression.
// The pattern is compiled at construction time so invalid expressions fail
// the configuration, not the run.
type regexValidator struct {
	path    string
	pattern *regexp.Regexp
	invert  bool
}

func newRegexValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var pattern string
	var invert bool

	switch p := param.(type) {
	case string:
		pattern = p
	case map[string]any:
		var params struct {
			Pattern string `yaml:"pattern"`
			Invert  bool   `yaml:"invert"`
		}
		if err := decodeParam(path, name, param, &params); err != nil {
			return nil, err
		}
		pattern = params.Pattern
		invert = params.Invert
	default:
		return nil, &Error{Path: path, Message: "validator 'regex' requires a string or mapping parameter"}
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &Error{Path: path, Message: fmt.Sprintf("specified regex %q is invalid", pattern)}
	}
	return &regexValidator{path: path, pattern: re, invert: invert}, nil
}

func (v *regexValidator) Name() string { return "regex" }

func (v *regexValidator) Run(result *command.Result, _ *scope.Hotplug) error {
	found := v.pattern.MatchString(result.Output())
	if !found && !v.invert {
		return Failuref("regex %q was not found in command output", v.pattern.String())
	}
	if found && v.invert {
		return Failuref("regex %q was found in command output", v.pattern.String())
	}
	return nil
}

type fileExistsParams struct {
	Files   []string `yaml:"files"`
	Invert  []string `yaml:"invert"`
	Cleanup bool     `yaml:"cleanup"`
}

// fileExistsValidator checks files a test command is expected to create (or
// remove), optionally cleaning them up afterwards.
type fileExistsValidator struct {
	path   string
	params fileExistsParams
}

func newFileExistsValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params fileExistsParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.Files) == 0 && len(params.Invert) == 0 {
		return nil, &Error{Path: path, Message: "validator 'file_exists' requires a 'files' or 'invert' key"}
	}
	return &fileExistsValidator{path: path, params: params}, nil
}

func (v *fileExistsValidator) Name() string { return "file_exists" }

func (v *fileExistsValidator) Run(_ *command.Result, hot *scope.Hotplug) error {
	var missing []string

	for _, file := range v.params.Files {
		file, err := hotString(hot, file)
		if err != nil {
			return err
		}
		file = resolvePath(v.path, file)

		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			missing = append(missing, file)
			continue
		}
		if v.params.Cleanup {
			if err := os.Remove(file); err != nil {
				return err
			}
		}
	}
	if len(missing) > 0 {
		return Failuref("file(s) %s did not exist", strings.Join(missing, ", "))
	}

	for _, file := range v.params.Invert {
		file, err := hotString(hot, file)
		if err != nil {
			return err
		}
		file = resolvePath(v.path, file)
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			return Failuref("file %s does exist", file)
		}
	}
	return nil
}

type dirExistsParams struct {
	Dirs    []string `yaml:"dirs"`
	Invert  []string `yaml:"invert"`
	Cleanup bool     `yaml:"cleanup"`
	Force   bool     `yaml:"force"`
}

// dirExistsValidator is the directory counterpart of file_exists. With
// cleanup set, empty directories are removed; force removes recursively.
type dirExistsValidator struct {
	path   string
	params dirExistsParams
}

func newDirExistsValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params dirExistsParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if len(params.Dirs) == 0 && len(params.Invert) == 0 {
		return nil, &Error{Path: path, Message: "validator 'dir_exists' requires a 'dirs' or 'invert' key"}
	}
	return &dirExistsValidator{path: path, params: params}, nil
}

func (v *dirExistsValidator) Name() string { return "dir_exists" }

func (v *dirExistsValidator) Run(_ *command.Result, hot *scope.Hotplug) error {
	var missing []string

	for _, dir := range v.params.Dirs {
		dir, err := hotString(hot, dir)
		if err != nil {
			return err
		}
		dir = resolvePath(v.path, dir)

		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			missing = append(missing, dir)
			continue
		}
		if v.params.Cleanup {
			if err := os.Remove(dir); err != nil && v.params.Force {
				err = os.RemoveAll(dir)
				if err != nil {
					return err
				}
			}
		}
	}
	if len(missing) > 0 {
		return Failuref("directory(s) %s did not exist", strings.Join(missing, ", "))
	}

	for _, dir := range v.params.Invert {
		dir, err := hotString(hot, dir)
		if err != nil {
			return err
		}
		dir = resolvePath(v.path, dir)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return Failuref("directory %s does exist", dir)
		}
	}
	return nil
}

type fileContainsCheck struct {
	File     string   `yaml:"file"`
	Contains []string `yaml:"contains"`
	Invert   []string `yaml:"invert"`
}

// fileContainsValidator checks the content of files a command wrote.
type fileContainsValidator struct {
	path   string
	checks []fileContainsCheck
}

func newFileContainsValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var checks []fileContainsCheck
	if err := decodeParam(path, name, param, &checks); err != nil {
		return nil, err
	}
	for _, check := range checks {
		if check.File == "" {
			return nil, &Error{Path: path, Message: "validator 'file_contains' requires a 'file' key in each entry"}
		}
	}
	return &fileContainsValidator{path: path, checks: checks}, nil
}

func (v *fileContainsValidator) Name() string { return "file_contains" }

func (v *fileContainsValidator) Run(_ *command.Result, hot *scope.Hotplug) error {
	for _, check := range v.checks {
		file, err := hotString(hot, check.File)
		if err != nil {
			return err
		}
		file = resolvePath(v.path, file)

		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		content := string(data)

		for _, item := range check.Contains {
			item, err := hotString(hot, item)
			if err != nil {
				return err
			}
			if !strings.Contains(content, item) {
				return Failuref("string %q not found in %s", item, file)
			}
		}
		for _, item := range check.Invert {
			item, err := hotString(hot, item)
			if err != nil {
				return err
			}
			if strings.Contains(content, item) {
				return Failuref("string %q was found in %s", item, file)
			}
		}
	}
	return nil
}

type jsonParams struct {
	Path   string `yaml:"path"`
	Value  any    `yaml:"value"`
	Exists *bool  `yaml:"exists"`
	Stream string `yaml:"stream"`
}

// jsonValidator queries JSON command output with a gjson path and compares
// the result against an expected value or existence flag.
type jsonValidator struct {
	path   string
	params jsonParams
}

func newJSONValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params jsonParams
	if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Path == "" {
		return nil, &Error{Path: path, Message: "validator 'json' requires a 'path' key"}
	}
	if params.Value == nil && params.Exists == nil {
		return nil, &Error{Path: path, Message: "validator 'json' requires a 'value' or 'exists' key"}
	}
	return &jsonValidator{path: path, params: params}, nil
}

func (v *jsonValidator) Name() string { return "json" }

func (v *jsonValidator) Run(result *command.Result, hot *scope.Hotplug) error {
	output, err := outputFor(result, v.params.Stream)
	if err != nil {
		return err
	}
	if !gjson.Valid(output) {
		return Failuref("command output is not valid JSON")
	}

	value := gjson.Get(output, v.params.Path)

	if v.params.Exists != nil {
		if *v.params.Exists != value.Exists() {
			return Failuref("path %q exists=%v, expected exists=%v", v.params.Path, value.Exists(), *v.params.Exists)
		}
	}

	if v.params.Value != nil {
		if !value.Exists() {
			return Failuref("path %q was not found in command output", v.params.Path)
		}
		expected := v.params.Value
		if s, ok := expected.(string); ok {
			if expected, err = hot.Resolve(s); err != nil {
				return err
			}
		}
		if fmt.Sprintf("%v", value.Value()) != fmt.Sprintf("%v", expected) {
			return Failuref("path %q is %v, expected %v", v.params.Path, value.Value(), expected)
		}
	}

	return nil
}

type jsonSchemaParams struct {
	Schema string `yaml:"schema"`
	Stream string `yaml:"stream"`
}

// jsonSchemaValidator validates JSON command output against a schema file
// located relative to the declaring document.
type jsonSchemaValidator struct {
	path   string
	schema *gojsonschema.Schema
}

func newJSONSchemaValidator(path, name string, param any, _ *scope.Scope) (Validator, error) {
	var params jsonSchemaParams
	if s, ok := param.(string); ok {
		params.Schema = s
	} else if err := decodeParam(path, name, param, &params); err != nil {
		return nil, err
	}
	if params.Schema == "" {
		return nil, &Error{Path: path, Message: "validator 'json_schema' requires a 'schema' key"}
	}

	schemaPath := resolvePath(path, params.Schema)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewReferenceLoader("file://" + schemaPath))
	if err != nil {
		return nil, &Error{Path: path, Message: fmt.Sprintf("unable to load schema %s: %v", schemaPath, err)}
	}
	return &jsonSchemaValidator{path: path, schema: schema}, nil
}

func (v *jsonSchemaValidator) Name() string { return "json_schema" }

func (v *jsonSchemaValidator) Run(result *command.Result, _ *scope.Hotplug) error {
	res, err := v.schema.Validate(gojsonschema.NewStringLoader(result.Stdout))
	if err != nil {
		return Failuref("command output is not valid JSON: %v", err)
	}
	if !res.Valid() {
		var problems []string
		for _, desc := range res.Errors() {
			problems = append(problems, desc.String())
		}
		return Failuref("command output violates schema: %s", strings.Join(problems, "; "))
	}
	return nil
}
