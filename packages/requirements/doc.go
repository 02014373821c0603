// Package requirements checks a tester's preconditions before anything
// runs: required files (optionally pinned to a digest), commands on PATH,
// and engine version compatibility.
package requirements
