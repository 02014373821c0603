// Package plugins prepares and tears down the environment a tester's tests
// run in: starting background commands or listeners, creating directories,
// copying files and cleaning up afterwards.
package plugins
