package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		specs []string
		want  [][]string
	}{
		{
			name:  "plain labels",
			specs: []string{"java8,networking,filter"},
			want:  [][]string{{"java8", "networking", "filter"}},
		},
		{
			name:  "single alternation",
			specs: []string{"a,b,{c,d},e"},
			want: [][]string{
				{"a", "b", "c", "e"},
				{"a", "b", "d", "e"},
			},
		},
		{
			name:  "two alternations cross-product",
			specs: []string{"a,{b,c},d,{e,f}"},
			want: [][]string{
				{"a", "b", "d", "e"},
				{"a", "c", "d", "e"},
				{"a", "b", "d", "f"},
				{"a", "c", "d", "f"},
			},
		},
		{
			name:  "multiple specs concatenate",
			specs: []string{"a,{b,c},d", "also,{with,using},orlike"},
			want: [][]string{
				{"a", "b", "d"},
				{"a", "c", "d"},
				{"also", "with", "orlike"},
				{"also", "using", "orlike"},
			},
		},
		{
			name:  "empty input",
			specs: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, Parse(tt.specs))
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		selectors  [][]string
		candidates [][]string
		want       bool
	}{
		{
			name:       "literal match",
			selectors:  [][]string{{"linux", "network", "tcp"}},
			candidates: [][]string{{"linux", "network", "tcp"}},
			want:       true,
		},
		{
			name:       "single wildcard consumes one label",
			selectors:  [][]string{{"lets", "add", "*", "some", "wildcards"}},
			candidates: [][]string{{"lets", "add", "hi", "some", "wildcards"}},
			want:       true,
		},
		{
			name:       "single wildcard needs its position filled",
			selectors:  [][]string{{"lets", "add", "*", "some", "wildcards"}},
			candidates: [][]string{{"lets", "hi", "some", "wildcards"}},
			want:       false,
		},
		{
			name:       "double wildcard greedily skips to match",
			selectors:  [][]string{{"**", "some", "wildcards"}},
			candidates: [][]string{{"aaaaa", "hi", "some", "wildcards"}},
			want:       true,
		},
		{
			name:       "double wildcard fails when target never recurs",
			selectors:  [][]string{{"**", "missing"}},
			candidates: [][]string{{"a", "b", "c"}},
			want:       false,
		},
		{
			name:       "trailing double wildcard matches any suffix",
			selectors:  [][]string{{"linux", "**"}},
			candidates: [][]string{{"linux", "network", "tcp"}},
			want:       true,
		},
		{
			name:       "candidate shorter than selector",
			selectors:  [][]string{{"a", "b", "c"}},
			candidates: [][]string{{"a", "b"}},
			want:       false,
		},
		{
			name:       "any selector against any candidate",
			selectors:  [][]string{{"x"}, {"linux", "*"}},
			candidates: [][]string{{"bsd", "io"}, {"linux", "io"}},
			want:       true,
		},
		{
			name:       "no selectors",
			selectors:  nil,
			candidates: [][]string{{"a"}},
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.selectors, tt.candidates))
		})
	}
}

func TestMerge(t *testing.T) {
	t.Run("no own labels inherits parent paths", func(t *testing.T) {
		parent := [][]string{{"linux", "network"}}
		assert.Equal(t, parent, Merge(parent, nil))
	})

	t.Run("own labels extend every parent path", func(t *testing.T) {
		parent := [][]string{{"linux"}, {"bsd"}}
		got := Merge(parent, []string{"tcp", "udp"})
		assert.ElementsMatch(t, [][]string{
			{"linux", "tcp"},
			{"linux", "udp"},
			{"bsd", "tcp"},
			{"bsd", "udp"},
		}, got)
	})

	t.Run("root node without parent", func(t *testing.T) {
		got := Merge(nil, []string{"top"})
		assert.Equal(t, [][]string{{"top"}}, got)
	})

	t.Run("merge does not alias parent slices", func(t *testing.T) {
		parent := [][]string{{"a"}}
		got := Merge(parent, []string{"b"})
		got[0][0] = "changed"
		assert.Equal(t, "a", parent[0][0])
	})
}
