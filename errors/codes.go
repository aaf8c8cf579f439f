// Package errors provides the structured error type used across reposync.
// It extends Go's standard error handling with string error codes that map
// one-to-one onto sync outcomes, plus optional key/value context.
package errors

// ErrorCode represents a specific failure condition of a synchronization.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Pipeline outcomes.

	// CodeAuthenticityFailure indicates a non-official remote failed the baseline tag check.
	CodeAuthenticityFailure ErrorCode = "AUTHENTICITY_FAILURE"

	// CodeResourceFetchFailure indicates the resource mirror could not be cloned, fetched or reset.
	CodeResourceFetchFailure ErrorCode = "RESOURCE_FETCH_FAILURE"

	// CodeIndexProtocolIncompatible indicates the remote descriptor uses a newer protocol.
	CodeIndexProtocolIncompatible ErrorCode = "INDEX_PROTOCOL_INCOMPATIBLE"

	// CodeIndexVersionRegression indicates the remote descriptor is older than the local one.
	CodeIndexVersionRegression ErrorCode = "INDEX_VERSION_REGRESSION"

	// CodeCommitFailure indicates durable storage could not be fully rewritten.
	CodeCommitFailure ErrorCode = "COMMIT_FAILURE"

	// CodeLocked indicates another synchronization holds the installation lock.
	CodeLocked ErrorCode = "LOCKED"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// Resource errors.

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// System errors.

	// CodeInternal indicates an internal system error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// String returns the string representation of the ErrorCode.
func (c ErrorCode) String() string {
	return string(c)
}
