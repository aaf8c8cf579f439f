// Package auth provides authentication helpers for git operations.
// It provides pattern matching on top of go-git's existing auth methods.
package auth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// HTTPSAuthProvider provides HTTP(S) basic authentication for git operations.
// It wraps go-git's http.BasicAuth with URL pattern matching.
type HTTPSAuthProvider struct {
	// The underlying go-git auth method
	auth *http.BasicAuth

	// AllowedHosts restricts authentication to specific host patterns.
	// If empty, authentication is allowed for all HTTP(S) URLs.
	// Supports glob patterns like "*.github.com" or "gitlab.*".
	AllowedHosts []string
}

// NewHTTPSAuthProvider creates a new HTTPS authentication provider.
// Username and password are sent as given; callers decide how token-only
// credentials are presented.
func NewHTTPSAuthProvider(username, password string) *HTTPSAuthProvider {
	return &HTTPSAuthProvider{
		auth: &http.BasicAuth{
			Username: username,
			Password: password,
		},
	}
}

// WithAllowedHosts sets the allowed hosts for this provider.
// Only URLs matching these patterns will be authenticated.
func (p *HTTPSAuthProvider) WithAllowedHosts(hosts ...string) *HTTPSAuthProvider {
	p.AllowedHosts = hosts
	return p
}

// Method returns the authentication method for the given remote URL.
// Non-HTTP URLs (local paths, file://) and hosts outside AllowedHosts get no
// authentication rather than an error, since basic auth cannot apply to them.
//
//nolint:ireturn // go-git requires returning transport.AuthMethod interface
func (p *HTTPSAuthProvider) Method(remoteURL string) (transport.AuthMethod, error) {
	parsedURL, err := url.Parse(remoteURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch parsedURL.Scheme {
	case "https", "http":
	case "ssh", "git":
		return nil, fmt.Errorf("basic auth cannot be used with %s:// URLs", parsedURL.Scheme)
	default:
		return nil, nil
	}

	// Check host restrictions if configured
	if len(p.AllowedHosts) > 0 && !p.isHostAllowed(parsedURL.Hostname()) {
		return nil, nil // No auth for restricted hosts
	}

	return p.auth, nil
}

// isHostAllowed checks if the given host matches any of the allowed host patterns.
func (p *HTTPSAuthProvider) isHostAllowed(host string) bool {
	for _, pattern := range p.AllowedHosts {
		if matchesPattern(host, pattern) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a host matches a pattern with "*" wildcards.
func matchesPattern(host, pattern string) bool {
	// Exact match
	if host == pattern {
		return true
	}

	// Only support patterns with exactly one "*"
	if strings.Count(pattern, "*") != 1 {
		return false
	}

	// Handle wildcard patterns
	if strings.HasPrefix(pattern, "*.") {
		suffix := strings.TrimPrefix(pattern, "*.")
		return strings.HasSuffix(host, "."+suffix) || host == suffix
	}

	if strings.HasSuffix(pattern, ".*") {
		prefix := strings.TrimSuffix(pattern, ".*")
		return strings.HasPrefix(host, prefix+".")
	}

	return false
}
