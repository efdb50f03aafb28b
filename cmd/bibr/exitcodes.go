package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (unreadable or invalid config)
	ExitDataError   = 3 // Data error (missing or malformed BibTeX input)
	ExitAPIError    = 4 // DBLP error (record not found, network, rate limit)
)
