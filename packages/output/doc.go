// Package output renders run progress and results.
//
// Supported outputs:
//   - Console: human-readable colored terminal output, written live while
//     tests run
//   - JSON: machine-readable report
//   - JUnit: JUnit XML for CI integration
//
// The console is an explicit sink threaded through the runner; nothing in
// this package touches process-global streams.
package output
