package defaults

// Exit codes for the CLI.
const (
	ExitSuccess   = 0 // Run completed, even with degraded records
	ExitFailure   = 1 // Search failed or the run could not start
	ExitUserError = 2 // Invalid arguments or configuration
)
