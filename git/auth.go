package git

import (
	"github.com/shiguang-schedule/reposync/git/internal/auth"
)

// NewBasicAuth returns an AuthProvider that presents username and password as
// HTTP basic credentials to http:// and https:// remotes. Local paths and
// file:// URLs are accessed anonymously; ssh:// URLs are rejected.
// If allowedHosts is non-empty, other hosts are accessed anonymously.
//
//nolint:ireturn // callers only need the AuthProvider contract
func NewBasicAuth(username, password string, allowedHosts ...string) AuthProvider {
	p := auth.NewHTTPSAuthProvider(username, password)
	if len(allowedHosts) > 0 {
		p = p.WithAllowedHosts(allowedHosts...)
	}
	return p
}
