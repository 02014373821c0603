package groups

import (
	"regexp"
	"strings"
)

var bracePattern = regexp.MustCompile(`\{([^}]+)\}`)

// alternationToken marks the position of an extracted brace group until its
// alternatives are expanded back in.
const alternationToken = "\x00alt\x00"

// Parse expands a list of group specifications into concrete label paths.
// Each specification is a comma separated label sequence; brace alternations
// compose as an ordered cross-product:
//
//	"a,{b,c},d" -> [a b d], [a c d]
//
// Multiple specifications concatenate their expansions.
func Parse(specs []string) [][]string {
	var paths [][]string

	for _, spec := range specs {
		alternations := bracePattern.FindAllStringSubmatch(spec, -1)
		replaced := bracePattern.ReplaceAllString(spec, alternationToken)

		expanded := [][]string{splitLabels(replaced)}

		for _, alternation := range alternations {
			alternatives := splitLabels(alternation[1])

			var next [][]string
			for _, path := range expanded {
				for _, alt := range alternatives {
					out := make([]string, len(path))
					copy(out, path)
					for i, label := range out {
						if label == alternationToken {
							out[i] = alt
							break
						}
					}
					next = append(next, out)
				}
			}
			expanded = next
		}

		paths = append(paths, expanded...)
	}

	return paths
}

// Matches reports whether any candidate path matches any selector path.
func Matches(selectors, candidates [][]string) bool {
	for _, candidate := range candidates {
		for _, selector := range selectors {
			if matchPath(selector, candidate) {
				return true
			}
		}
	}
	return false
}

// matchPath walks the selector token by token against the candidate labels.
// Running out of candidate labels while selector tokens remain is a
// non-match.
func matchPath(selector, candidate []string) bool {
	pos := 0

	for i := 0; i < len(selector); i++ {
		token := selector[i]

		if token == "**" {
			i++
			if i >= len(selector) {
				// A trailing ** swallows the rest of the candidate.
				return true
			}
			target := selector[i]
			for pos < len(candidate) && candidate[pos] != target {
				pos++
			}
			if pos == len(candidate) {
				return false
			}
			pos++
			continue
		}

		if pos >= len(candidate) {
			return false
		}
		if token == "*" || candidate[pos] == token {
			pos++
			continue
		}
		return false
	}

	return true
}

// Merge combines the group paths inherited from a parent node with the
// labels a node declares itself. Without own labels the parent paths pass
// through unchanged; otherwise every parent path is extended by every own
// label.
func Merge(parent [][]string, own []string) [][]string {
	if len(parent) == 0 {
		parent = [][]string{{}}
	}

	var merged [][]string
	for _, parentPath := range parent {
		if len(own) == 0 {
			out := make([]string, len(parentPath))
			copy(out, parentPath)
			merged = append(merged, out)
			continue
		}
		for _, label := range own {
			out := make([]string, len(parentPath), len(parentPath)+1)
			copy(out, parentPath)
			merged = append(merged, append(out, label))
		}
	}
	return merged
}

func splitLabels(s string) []string {
	var labels []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			labels = append(labels, part)
		}
	}
	return labels
}
