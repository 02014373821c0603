// Package config loads and models cmdspec's YAML test documents.
//
// A document holds one tester definition: metadata, variables, containers,
// plugins, its tests and file-glob references to nested documents. The
// package only decodes and sanity-checks the raw structure; tree
// construction and semantic validation live in packages/core/tree.
package config
