// Package apierrors defines sentinel errors shared by the API clients.
// The CLI maps them to exit codes so scripts can tell failure classes apart.
package apierrors

import "errors"

var (
	// ErrUnauthorized indicates the API rejected the credentials (401/403)
	// or none were configured. Maps to exit code 2.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the resource does not exist or is not visible
	// to the caller. Maps to exit code 2.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the API rate limit is exhausted and waiting
	// was not allowed. Maps to exit code 2.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUsage indicates invalid command-line input. Maps to exit code 2.
	ErrUsage = errors.New("usage error")

	// ErrNetwork indicates a connection problem. Maps to exit code 3.
	ErrNetwork = errors.New("network connection failed")
)

// Exit codes returned by the CLI.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUser    = 2
	ExitNetwork = 3
)

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	if errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUsage) {
		return ExitUser
	}

	if errors.Is(err, ErrNetwork) {
		return ExitNetwork
	}

	return ExitFailure
}
