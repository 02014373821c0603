// Package scope implements layered variable resolution for cmdspec.
//
// It provides functionality for:
//   - Variable interpolation using ${variable} syntax
//   - Reserved namespaces: $env (host environment) and $runtime (injected)
//   - List expansion when a value is exactly one placeholder
//   - Parent/child scope merging for nested testers
//   - The mutable per-run hotplug overlay used by extractors and ${prev}
package scope
