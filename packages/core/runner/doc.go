// Package runner walks a built test tree and executes it. It owns the
// per-test pipeline of gating, command execution, extraction and validation,
// the lifecycle of containers and plugins wrapped around each tester, and
// the propagation rules of the configured error modes.
package runner
