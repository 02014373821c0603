// Package tree builds the tester/test tree from configuration documents.
// The tree is fully constructed, including nested documents pulled in via
// glob references, before anything executes; configuration errors surface
// here and never mid-run.
package tree
