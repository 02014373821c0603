package cmd

// Exit codes for the cmdspec CLI
const (
	// ExitSuccess indicates all tests passed
	ExitSuccess = 0

	// ExitTestFailure indicates one or more tests failed
	ExitTestFailure = 1

	// ExitConfigError indicates a document parsing or configuration error
	ExitConfigError = 2

	// ExitRunError indicates an unexpected runtime failure, such as a
	// container or plugin that could not start
	ExitRunError = 3

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
