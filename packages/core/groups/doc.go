// Package groups parses and matches hierarchical group paths for cmdspec.
//
// Group specifications are comma separated label sequences with optional
// {a,b} brace alternation. Selectors may additionally carry the wildcards
// * (exactly one label) and ** (skip labels until the next one matches).
package groups
