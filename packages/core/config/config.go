package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cmdspec/cmdspec/packages/core/conds"
)

// DefaultErrorMode is applied when neither a test nor any of its ancestors
// configure one.
const DefaultErrorMode = "continue"

// ParseError wraps YAML syntax errors together with the offending document.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// KeyError reports a missing or malformed key in a document.
type KeyError struct {
	Path    string
	Message string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Path)
}

// Document is one parsed test definition file.
type Document struct {
	Tester     TesterSpec      `yaml:"tester"`
	Variables  map[string]any  `yaml:"variables"`
	Containers []ContainerSpec `yaml:"containers"`
	Plugins    SpecList        `yaml:"plugins"`
	Tests      []TestSpec      `yaml:"tests"`
	Testers    []string        `yaml:"testers"`

	// Path of the file this document was read from. Nested tester globs and
	// relative validator paths resolve against its directory.
	Path string `yaml:"-"`
}

// TesterSpec is the `tester:` section of a document.
type TesterSpec struct {
	Name         string            `yaml:"name"`
	Title        string            `yaml:"title"`
	ID           string            `yaml:"id"`
	IDPattern    string            `yaml:"id_pattern"`
	Conditionals map[string]any    `yaml:"conditionals"`
	Conditions   *conds.Gate       `yaml:"conditions"`
	ErrorMode    string            `yaml:"error_mode"`
	Requires     RequiresSpec      `yaml:"requires"`
	Groups       []string          `yaml:"groups"`
	Env          map[string]string `yaml:"env"`
	Output       string            `yaml:"output"`
	Logfile      string            `yaml:"logfile"`
}

// TestSpec is one entry of the `tests:` list.
type TestSpec struct {
	Title       string            `yaml:"title"`
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	Command     []any             `yaml:"command"`
	Arguments   []any             `yaml:"arguments"`
	Timeout     float64           `yaml:"timeout"`
	Shell       bool              `yaml:"shell"`
	Env         map[string]string `yaml:"env"`
	Variables   map[string]any    `yaml:"variables"`
	Conditions  *conds.Gate       `yaml:"conditions"`
	Groups      []string          `yaml:"groups"`
	ErrorMode   string            `yaml:"error_mode"`
	Validators  SpecList          `yaml:"validators"`
	Extractors  SpecList          `yaml:"extractors"`
	Output      string            `yaml:"output"`
	Logfile     string            `yaml:"logfile"`
}

// TimeoutDuration converts the timeout (seconds, fractions allowed) of a
// test into a duration. Zero means no timeout.
func (t *TestSpec) TimeoutDuration() time.Duration {
	return time.Duration(t.Timeout * float64(time.Second))
}

// ContainerSpec describes a container started for the duration of a tester.
type ContainerSpec struct {
	Name        string            `yaml:"name"`
	Image       string            `yaml:"image"`
	Env         map[string]string `yaml:"env"`
	Volumes     map[string]string `yaml:"volumes"`
	Aliases     map[string]string `yaml:"aliases"`
	NetworkMode string            `yaml:"network_mode"`
	Init        float64           `yaml:"init"`
}

// RequiresSpec lists preconditions checked before any test runs.
type RequiresSpec struct {
	Files    []FileRequirement `yaml:"files"`
	Commands []string          `yaml:"commands"`
	Version  string            `yaml:"version"`
}

// FileRequirement names a file that must exist, optionally pinned to one or
// more content digests.
type FileRequirement struct {
	Path   string `yaml:"path"`
	MD5    string `yaml:"md5"`
	SHA1   string `yaml:"sha1"`
	SHA256 string `yaml:"sha256"`
	SHA512 string `yaml:"sha512"`
}

// Empty reports whether nothing is required.
func (r *RequiresSpec) Empty() bool {
	return len(r.Files) == 0 && len(r.Commands) == 0 && r.Version == ""
}

// NamedSpec is a validator, extractor or plugin reference: the registered
// name plus its raw, implementation-defined parameter.
type NamedSpec struct {
	Name  string
	Param any
}

// SpecList decodes the list-of-single-key-maps layout used for validators,
// extractors and plugins:
//
//	validators:
//	  - status: 0
//	  - contains:
//	      values: [ok]
//
// Pairs are kept in document order; an item may carry several pairs.
type SpecList []NamedSpec

func (l *SpecList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: needs to be specified as a list", node.Line)
	}

	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: list entries need to be name -> parameter mappings", item.Line)
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			var name string
			if err := item.Content[i].Decode(&name); err != nil {
				return err
			}
			var param any
			if err := item.Content[i+1].Decode(&param); err != nil {
				return err
			}
			*l = append(*l, NamedSpec{Name: name, Param: param})
		}
	}
	return nil
}

// expectedTestKeys guards against silently ignored test configuration, the
// classic case being a mis-indented validators block.
var expectedTestKeys = map[string]bool{
	"title": true, "id": true, "description": true, "command": true,
	"arguments": true, "timeout": true, "shell": true, "env": true,
	"variables": true, "conditions": true, "groups": true,
	"error_mode": true, "validators": true, "extractors": true,
	"output": true, "logfile": true,
}

// Load reads and decodes one document. Warnings about unexpected test keys
// are returned alongside, they do not fail the load.
func Load(path string) (*Document, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return Parse(data, path)
}

// Parse decodes document bytes. Exposed separately for embedding callers
// that manage their own document sources.
func Parse(data []byte, path string) (*Document, []string, error) {
	doc := &Document{Path: path}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, nil, &ParseError{Path: path, Err: err}
	}

	if doc.Tester.Name == "" && doc.Tester.Title == "" {
		return nil, nil, &KeyError{
			Path:    path,
			Message: "test configuration requires either the 'name' or the 'title' key within the 'tester' section",
		}
	}
	if len(doc.Tests) == 0 && len(doc.Testers) == 0 {
		return nil, nil, &KeyError{
			Path:    path,
			Message: "test configuration requires either the 'tests' or the 'testers' key",
		}
	}
	for i, test := range doc.Tests {
		if test.Title == "" {
			return nil, nil, &KeyError{
				Path:    path,
				Message: fmt.Sprintf("test configuration misses required key 'title' in the %s test", ordinal(i+1)),
			}
		}
		if len(test.Command) == 0 {
			return nil, nil, &KeyError{
				Path:    path,
				Message: fmt.Sprintf("test configuration misses required key 'command' in the %s test", ordinal(i+1)),
			}
		}
	}

	warnings := unexpectedKeyWarnings(data, path)
	return doc, warnings, nil
}

// unexpectedKeyWarnings re-walks the raw tests section and reports keys the
// engine would ignore.
func unexpectedKeyWarnings(data []byte, path string) []string {
	var raw struct {
		Tests []map[string]any `yaml:"tests"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil
	}

	var warnings []string
	for i, test := range raw.Tests {
		for key := range test {
			if !expectedTestKeys[key] {
				warnings = append(warnings, fmt.Sprintf(
					"%s test in %s contains unexpected key: %s", ordinal(i+1), path, key))
			}
		}
	}
	return warnings
}

// ordinal renders 1 -> 1st, 2 -> 2nd, ... for error messages.
func ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
