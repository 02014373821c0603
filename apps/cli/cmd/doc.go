// Package cmd implements the cmdspec CLI commands using Cobra.
//
// Available commands:
//   - run: Execute command tests from YAML documents
//   - validate: Check documents for configuration errors without executing
//   - list: Display the test tree defined by documents
//   - history: Show summaries of past runs
//   - init: Create a new cmdspec project with an example document
//   - version: Show cmdspec version information
//
// The CLI supports flags for selecting tests by id or group, output
// formatting, rate limiting, run history, and watch mode for development
// workflows.
package cmd
