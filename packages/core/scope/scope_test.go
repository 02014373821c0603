package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_TextualSubstitution(t *testing.T) {
	s := New(map[string]any{"a": "Pan", "b": "cake"})

	got, err := s.Resolve("${a}${b}")
	require.NoError(t, err)
	assert.Equal(t, "Pancake", got)
}

func TestResolve_ListExpansion(t *testing.T) {
	s := New(map[string]any{"cmd": []any{"echo", "hello"}})

	t.Run("exact placeholder expands into list", func(t *testing.T) {
		got, err := s.Resolve("${cmd}")
		require.NoError(t, err)
		assert.Equal(t, []any{"echo", "hello"}, got)
	})

	t.Run("embedded placeholder is stringified", func(t *testing.T) {
		got, err := s.Resolve("run ${cmd}")
		require.NoError(t, err)
		assert.Equal(t, "run [echo hello]", got)
	})
}

func TestResolve_NonStringValues(t *testing.T) {
	s := New(map[string]any{"port": 8000, "flag": true})

	got, err := s.Resolve("listen on ${port} (${flag})")
	require.NoError(t, err)
	assert.Equal(t, "listen on 8000 (true)", got)

	got, err = s.Resolve("${port}")
	require.NoError(t, err)
	assert.Equal(t, 8000, got)
}

func TestResolve_NestedStructures(t *testing.T) {
	s := New(map[string]any{"user": "root"})

	got, err := s.Resolve(map[string]any{
		"values": []any{"${user}:x", 7},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"values": []any{"root:x", 7}}, got)
}

func TestResolve_RuntimeSentinel(t *testing.T) {
	t.Run("resolves through the runtime namespace", func(t *testing.T) {
		s := New(
			map[string]any{"v": "$runtime"},
			WithRuntime(map[string]any{"v": []any{"a", "b"}}),
		)
		got, err := s.Resolve("${v}")
		require.NoError(t, err)
		assert.Equal(t, []any{"a", "b"}, got)
	})

	t.Run("missing runtime value fails", func(t *testing.T) {
		s := New(map[string]any{"v": "$runtime"})
		_, err := s.Resolve("${v}")
		var rerr *RuntimeVariableError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, "v", rerr.Name)
	})
}

func TestResolve_EnvSentinel(t *testing.T) {
	t.Run("resolves through the env namespace", func(t *testing.T) {
		s := New(
			map[string]any{"home": "$env"},
			WithEnv(map[string]string{"home": "/home/user"}),
		)
		got, err := s.Resolve("${home}/bin")
		require.NoError(t, err)
		assert.Equal(t, "/home/user/bin", got)
	})

	t.Run("missing env value fails", func(t *testing.T) {
		s := New(map[string]any{"home": "$env"}, WithEnv(map[string]string{}))
		_, err := s.Resolve("${home}")
		var eerr *EnvVariableError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, "home", eerr.Name)
	})
}

func TestMerge_ChildShadowsParent(t *testing.T) {
	parent := New(map[string]any{"a": "1", "b": "2"})
	child := Merge(parent, map[string]any{"b": "3", "c": "4"})

	got, err := child.Resolve("${a}${b}${c}")
	require.NoError(t, err)
	assert.Equal(t, "134", got)

	// The parent stays untouched.
	got, err = parent.Resolve("${b}")
	require.NoError(t, err)
	assert.Equal(t, "2", got)
}

func TestApplySelf_SiblingReferences(t *testing.T) {
	s := New(map[string]any{
		"base": "/opt/app",
		"bin":  "${base}/bin",
		"tool": "${bin}/run",
	})
	require.NoError(t, s.ApplySelf())

	got, err := s.Resolve("${tool}")
	require.NoError(t, err)
	assert.Equal(t, "/opt/app/bin/run", got)
}

func TestApplySelf_CyclicReferencesTerminate(t *testing.T) {
	s := New(map[string]any{"a": "${b}", "b": "${a}"})
	require.NoError(t, s.ApplySelf())
}

func TestHotplug(t *testing.T) {
	s := New(map[string]any{"a": "declared"})
	hot := s.Hotplug()

	t.Run("overlay values shadow and extend", func(t *testing.T) {
		hot.Set("extracted", "value")
		got, err := hot.Resolve("${a}/${extracted}")
		require.NoError(t, err)
		assert.Equal(t, "declared/value", got)
	})

	t.Run("fork isolates subtree additions", func(t *testing.T) {
		fork := hot.Fork()
		fork.Set("sub", "only-here")
		_, ok := hot.Get("sub")
		assert.False(t, ok)
		_, ok = fork.Get("extracted")
		assert.True(t, ok)
	})

	t.Run("prev result travels with the overlay", func(t *testing.T) {
		assert.Nil(t, hot.Prev())
		hot.SetPrev("result")
		assert.Equal(t, "result", hot.Prev())
		assert.Equal(t, "result", hot.Fork().Prev())
	})
}
