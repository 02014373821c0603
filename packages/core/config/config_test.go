package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDocument = `
tester:
  name: example
  title: Example Tester
  error_mode: break
  conditionals:
    setup_done: false
  groups:
    - linux

variables:
  target: /etc/passwd

tests:
  - title: Read target
    id: read-target
    command:
      - cat
      - ${target}
    timeout: 2.5
    validators:
      - status: 0
      - contains:
          values:
            - root
    extractors:
      - regex:
          pattern: '^([^:]+):'
          variable: users

testers:
  - nested/*.yml
`

func TestParse(t *testing.T) {
	doc, warnings, err := Parse([]byte(sampleDocument), "example.yml")
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "example", doc.Tester.Name)
	assert.Equal(t, "break", doc.Tester.ErrorMode)
	assert.Equal(t, []string{"linux"}, doc.Tester.Groups)
	assert.Equal(t, map[string]any{"setup_done": false}, doc.Tester.Conditionals)
	assert.Equal(t, []string{"nested/*.yml"}, doc.Testers)

	require.Len(t, doc.Tests, 1)
	test := doc.Tests[0]
	assert.Equal(t, "read-target", test.ID)
	assert.Equal(t, []any{"cat", "${target}"}, test.Command)
	assert.Equal(t, 2500*time.Millisecond, test.TimeoutDuration())

	require.Len(t, test.Validators, 2)
	assert.Equal(t, "status", test.Validators[0].Name)
	assert.Equal(t, 0, test.Validators[0].Param)
	assert.Equal(t, "contains", test.Validators[1].Name)

	require.Len(t, test.Extractors, 1)
	assert.Equal(t, "regex", test.Extractors[0].Name)
}

func TestParse_SpecListKeepsDocumentOrder(t *testing.T) {
	doc, _, err := Parse([]byte(`
tester:
  name: order
tests:
  - title: t
    command: [true]
    validators:
      - status: 0
      - regex: first
      - regex: second
`), "order.yml")
	require.NoError(t, err)

	names := []string{}
	for _, v := range doc.Tests[0].Validators {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"status", "regex", "regex"}, names)
	assert.Equal(t, "first", doc.Tests[0].Validators[1].Param)
	assert.Equal(t, "second", doc.Tests[0].Validators[2].Param)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing tester name", "tests:\n  - title: t\n    command: [true]\n"},
		{"neither tests nor testers", "tester:\n  name: empty\n"},
		{"test without title", "tester:\n  name: x\ntests:\n  - command: [true]\n"},
		{"test without command", "tester:\n  name: x\ntests:\n  - title: t\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.body), "bad.yml")
			var kerr *KeyError
			require.ErrorAs(t, err, &kerr)
			assert.Equal(t, "bad.yml", kerr.Path)
		})
	}
}

func TestParse_SyntaxError(t *testing.T) {
	_, _, err := Parse([]byte("tester: [unbalanced"), "broken.yml")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "broken.yml", perr.Path)
}

func TestParse_WarnsOnUnexpectedTestKeys(t *testing.T) {
	_, warnings, err := Parse([]byte(`
tester:
  name: x
tests:
  - title: t
    command: [true]
    validator:
      - status: 0
`), "typo.yml")
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "validator")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDocument), 0644))

	doc, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Path)
}
