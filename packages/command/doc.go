// Package command executes external test commands for cmdspec.
//
// It captures stdout, stderr, exit status and runtime of a command, enforces
// a per-command timeout by terminating the whole process group, and keeps
// user cancellation distinct from a timed-out command.
package command
