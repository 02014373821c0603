package validators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdspec/cmdspec/packages/command"
	"github.com/cmdspec/cmdspec/packages/core/config"
	"github.com/cmdspec/cmdspec/packages/core/scope"
)

func newValidator(t *testing.T, name string, param any) Validator {
	t.Helper()
	sc := scope.New(nil)
	v, err := New("test.yml", config.NamedSpec{Name: name, Param: param}, sc)
	require.NoError(t, err)
	return v
}

func emptyHotplug(t *testing.T) *scope.Hotplug {
	t.Helper()
	sc := scope.New(nil)
	return sc.Hotplug()
}

func TestNewUnknownValidator(t *testing.T) {
	sc := scope.New(nil)

	_, err := New("test.yml", config.NamedSpec{Name: "nope", Param: nil}, sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope")
}

func TestStatusValidator(t *testing.T) {
	v := newValidator(t, "status", 0)
	hot := emptyHotplug(t)

	assert.NoError(t, v.Run(&command.Result{Status: 0}, hot))

	err := v.Run(&command.Result{Status: 1}, hot)
	require.Error(t, err)
	assert.IsType(t, &Failure{}, err)
}

func TestStatusValidatorRejectsNonInteger(t *testing.T) {
	sc := scope.New(nil)

	_, err := New("test.yml", config.NamedSpec{Name: "status", Param: "zero"}, sc)
	require.Error(t, err)
}

func TestErrorValidator(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
		status   int
		wantFail bool
	}{
		{"expected error occurred", true, 1, false},
		{"expected error missing", true, 0, true},
		{"expected success occurred", false, 0, false},
		{"expected success missing", false, 7, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(t, "error", tc.expected)
			err := v.Run(&command.Result{Status: tc.status}, emptyHotplug(t))
			if tc.wantFail {
				assert.IsType(t, &Failure{}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContainsValidator(t *testing.T) {
	result := &command.Result{Stdout: "Hello World\n", Stderr: "warning: noise\n"}

	tests := []struct {
		name     string
		param    map[string]any
		wantFail bool
	}{
		{"value present", map[string]any{"values": []any{"Hello"}}, false},
		{"value missing", map[string]any{"values": []any{"Goodbye"}}, true},
		{"case folded", map[string]any{"values": []any{"hello WORLD"}, "ignore_case": true}, false},
		{"inverted hit", map[string]any{"invert": []any{"warning"}}, true},
		{"inverted miss", map[string]any{"invert": []any{"fatal"}}, false},
		{"stdout only", map[string]any{"values": []any{"warning"}, "stream": "stdout"}, true},
		{"stderr only", map[string]any{"values": []any{"warning"}, "stream": "stderr"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(t, "contains", tc.param)
			err := v.Run(result, emptyHotplug(t))
			if tc.wantFail {
				assert.IsType(t, &Failure{}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestContainsValidatorResolvesOverlayVariables(t *testing.T) {
	sc := scope.New(nil)
	hot := sc.Hotplug()
	hot.Set("token", "s3cret")

	v := newValidator(t, "contains", map[string]any{"values": []any{"${token}"}})
	assert.NoError(t, v.Run(&command.Result{Stdout: "issued s3cret ok"}, hot))
}

func TestMatchValidator(t *testing.T) {
	v := newValidator(t, "match", map[string]any{"value": "done", "trim": true})
	hot := emptyHotplug(t)

	assert.NoError(t, v.Run(&command.Result{Stdout: "done\n", Stderr: ""}, hot))

	err := v.Run(&command.Result{Stdout: "pending\n"}, hot)
	assert.IsType(t, &Failure{}, err)
}

func TestRegexValidator(t *testing.T) {
	v := newValidator(t, "regex", `user-\d+`)
	hot := emptyHotplug(t)

	assert.NoError(t, v.Run(&command.Result{Stdout: "created user-42"}, hot))
	assert.IsType(t, &Failure{}, v.Run(&command.Result{Stdout: "created nobody"}, hot))
}

func TestRegexValidatorInvalidPattern(t *testing.T) {
	sc := scope.New(nil)

	_, err := New("test.yml", config.NamedSpec{Name: "regex", Param: "("}, sc)
	require.Error(t, err)
	assert.IsType(t, &Error{}, err)
}

func TestRegexValidatorInverted(t *testing.T) {
	v := newValidator(t, "regex", map[string]any{"pattern": "panic", "invert": true})
	hot := emptyHotplug(t)

	assert.NoError(t, v.Run(&command.Result{Stdout: "all good"}, hot))
	assert.IsType(t, &Failure{}, v.Run(&command.Result{Stdout: "panic: oops"}, hot))
}

func TestFileExistsValidator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "artifact.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	v := newValidator(t, "file_exists", map[string]any{"files": []any{file}, "cleanup": true})
	hot := emptyHotplug(t)

	require.NoError(t, v.Run(&command.Result{}, hot))
	_, err := os.Stat(file)
	assert.True(t, os.IsNotExist(err), "cleanup should remove the file")

	assert.IsType(t, &Failure{}, v.Run(&command.Result{}, hot))
}

func TestFileExistsValidatorInvert(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "leftover.txt")

	v := newValidator(t, "file_exists", map[string]any{"invert": []any{file}})
	hot := emptyHotplug(t)

	assert.NoError(t, v.Run(&command.Result{}, hot))

	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.IsType(t, &Failure{}, v.Run(&command.Result{}, hot))
}

func TestDirExistsValidator(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "out")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), []byte("x"), 0o644))

	v := newValidator(t, "dir_exists", map[string]any{"dirs": []any{dir}, "cleanup": true, "force": true})
	require.NoError(t, v.Run(&command.Result{}, emptyHotplug(t)))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "force cleanup should remove non-empty directories")
}

func TestFileContainsValidator(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "report.log")
	require.NoError(t, os.WriteFile(file, []byte("status: ok\ncount: 3\n"), 0o644))

	v := newValidator(t, "file_contains", []any{
		map[string]any{"file": file, "contains": []any{"status: ok"}, "invert": []any{"status: fail"}},
	})
	assert.NoError(t, v.Run(&command.Result{}, emptyHotplug(t)))

	v = newValidator(t, "file_contains", []any{
		map[string]any{"file": file, "contains": []any{"status: fail"}},
	})
	assert.IsType(t, &Failure{}, v.Run(&command.Result{}, emptyHotplug(t)))
}

func TestJSONValidator(t *testing.T) {
	result := &command.Result{Stdout: `{"user":{"id":7,"name":"kim"},"tags":["a","b"]}`}

	tests := []struct {
		name     string
		param    map[string]any
		wantFail bool
	}{
		{"value matches", map[string]any{"path": "user.name", "value": "kim"}, false},
		{"value differs", map[string]any{"path": "user.name", "value": "jo"}, true},
		{"numeric value", map[string]any{"path": "user.id", "value": 7}, false},
		{"exists true", map[string]any{"path": "tags.1", "exists": true}, false},
		{"exists false violated", map[string]any{"path": "user.id", "exists": false}, true},
		{"missing path", map[string]any{"path": "user.email", "value": "x"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := newValidator(t, "json", tc.param)
			err := v.Run(result, emptyHotplug(t))
			if tc.wantFail {
				assert.IsType(t, &Failure{}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJSONValidatorRejectsInvalidJSON(t *testing.T) {
	v := newValidator(t, "json", map[string]any{"path": "a", "exists": true})
	err := v.Run(&command.Result{Stdout: "not json"}, emptyHotplug(t))
	assert.IsType(t, &Failure{}, err)
}

func TestJSONSchemaValidator(t *testing.T) {
	dir := t.TempDir()
	schema := filepath.Join(dir, "schema.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}}
	}`), 0o644))

	sc := scope.New(nil)
	v, err := New(filepath.Join(dir, "test.yml"), config.NamedSpec{
		Name:  "json_schema",
		Param: map[string]any{"schema": "schema.json"},
	}, sc)
	require.NoError(t, err)

	hot := emptyHotplug(t)
	assert.NoError(t, v.Run(&command.Result{Stdout: `{"name":"kim"}`}, hot))
	assert.IsType(t, &Failure{}, v.Run(&command.Result{Stdout: `{"name":42}`}, hot))
}

func TestFromSpecsPreservesOrder(t *testing.T) {
	sc := scope.New(nil)

	specs := config.SpecList{
		{Name: "status", Param: 0},
		{Name: "regex", Param: "ok"},
		{Name: "error", Param: false},
	}
	vs, err := FromSpecs("test.yml", specs, sc)
	require.NoError(t, err)
	require.Len(t, vs, 3)
	assert.Equal(t, "status", vs[0].Name())
	assert.Equal(t, "regex", vs[1].Name())
	assert.Equal(t, "error", vs[2].Name())
}
