// Package validators provides the pluggable checks applied to command
// results in cmdspec.
//
// Built-in validators:
//   - status / error: exit code checks
//   - contains / match / regex: output content checks
//   - file_exists / dir_exists / file_contains: filesystem effects
//   - json: gjson path queries against JSON command output
//   - json_schema: JSON Schema validation of command output
//
// A validator signals an expected negative result by returning *Failure;
// any other error is treated as a broken validator, not a failed test.
package validators
