// Package git provides sentinel errors for common git operations.
// All errors can be checked using errors.Is() for programmatic handling.
package git

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Common sentinel errors that can be checked with errors.Is().
// These wrap underlying go-git errors while providing a stable API for consumers.

// ErrAlreadyUpToDate is returned when a fetch results in no changes because the
// local and remote states are already synchronized.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrAuthRequired is returned when an operation requires authentication
// but no credentials were provided or available.
var ErrAuthRequired = errors.New("authentication required")

// ErrAuthFailed is returned when authentication was attempted but failed
// (invalid credentials, expired tokens, etc.).
var ErrAuthFailed = errors.New("authentication failed")

// ErrRefNotFound is returned when the remote does not advertise the requested
// branch or tag, or has no refs at all.
var ErrRefNotFound = errors.New("reference not found")

// ErrRepositoryNotFound is returned when the remote URL does not point at a repository.
var ErrRepositoryNotFound = errors.New("repository not found")

// ErrNotRepository is returned by Open when the workdir holds no git repository.
var ErrNotRepository = errors.New("not a git repository")

// ErrNetwork is returned for transport failures: unreachable hosts, refused
// connections and timeouts.
var ErrNetwork = errors.New("network error")

// ErrInvalidRef is returned when a reference name or revision specification
// is malformed or invalid according to git's reference naming rules.
var ErrInvalidRef = errors.New("invalid reference")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Classify maps an error returned by go-git onto this package's sentinels and
// wraps it with msg. Both the sentinel and the original error stay reachable
// through errors.Is. Errors that match no sentinel are wrapped unchanged.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if sentinel := sentinelFor(err); sentinel != nil {
		return fmt.Errorf("%s: %w: %w", msg, sentinel, err)
	}
	return WrapError(err, msg)
}

func sentinelFor(err error) error {
	var noMatch git.NoMatchingRefSpecError
	var netErr net.Error
	var urlErr *url.Error

	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.As(err, &noMatch),
		errors.Is(err, plumbing.ErrReferenceNotFound),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return ErrRefNotFound
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return ErrAuthRequired
	case errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return ErrAuthFailed
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return ErrRepositoryNotFound
	case errors.Is(err, git.ErrRepositoryNotExists):
		return ErrNotRepository
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return ErrNetwork
	default:
		return nil
	}
}
