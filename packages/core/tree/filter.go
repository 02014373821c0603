package tree

import (
	"github.com/cmdspec/cmdspec/packages/core/groups"
)

// Selection restricts a built tree to the testers and tests a caller asked
// for. ID selectors match exactly, group selectors are parsed label paths
// supporting the usual wildcards.
type Selection struct {
	IDs           []string
	Groups        [][]string
	ExcludeIDs    []string
	ExcludeGroups [][]string
}

// NewSelection parses raw command line selectors into a Selection.
func NewSelection(ids, groupSpecs, excludeIDs, excludeGroupSpecs []string) Selection {
	return Selection{
		IDs:           ids,
		Groups:        groups.Parse(groupSpecs),
		ExcludeIDs:    excludeIDs,
		ExcludeGroups: groups.Parse(excludeGroupSpecs),
	}
}

// Empty reports whether no include selector was given. An empty selection
// includes everything, exclusions still apply.
func (s Selection) Empty() bool {
	return len(s.IDs) == 0 && len(s.Groups) == 0
}

// Apply prunes the tree in place and reports whether the root itself
// survived. A tester matched by an include selector pulls its whole subtree
// in; exclusions win over any include, inherited or direct.
func (s Selection) Apply(root *Tester) bool {
	return s.prune(root, s.Empty())
}

func (s Selection) prune(tester *Tester, runall bool) bool {
	if s.excluded(tester.ID, tester.Groups) {
		return false
	}

	if !runall {
		runall = s.matchesID(tester.ID) || groups.Matches(s.Groups, tester.Groups)
	}
	// A matching test pulls in the whole subtree from its owning tester,
	// exactly like a match on the tester itself.
	if !runall {
		for _, test := range tester.Tests {
			if s.excluded(test.ID, test.Groups) {
				continue
			}
			if s.matchesID(test.ID) || groups.Matches(s.Groups, test.Groups) {
				runall = true
				break
			}
		}
	}
	tester.Runall = runall

	var tests []*Test
	for _, test := range tester.Tests {
		if s.excluded(test.ID, test.Groups) {
			continue
		}
		if runall {
			tests = append(tests, test)
		}
	}
	tester.Tests = tests

	var children []*Tester
	for _, child := range tester.Children {
		if s.prune(child, runall) {
			children = append(children, child)
		}
	}
	tester.Children = children

	return len(tester.Tests) > 0 || len(tester.Children) > 0
}

func (s Selection) matchesID(id string) bool {
	for _, want := range s.IDs {
		if id == want {
			return true
		}
	}
	return false
}

func (s Selection) excluded(id string, paths [][]string) bool {
	for _, want := range s.ExcludeIDs {
		if id == want {
			return true
		}
	}
	return groups.Matches(s.ExcludeGroups, paths)
}
