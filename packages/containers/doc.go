// Package containers starts docker containers for the duration of a tester
// subtree and exposes their network details as variables.
package containers
