// Package profile describes the remotes a synchronization can pull from.
package profile

import (
	"fmt"
	"strings"

	"github.com/shiguang-schedule/reposync/errors"
)

// TokenUsername is submitted as the username when a credential carries only
// a password (typically a personal access token).
const TokenUsername = "x-token-auth"

// Kind classifies a remote by how much it is trusted.
type Kind string

const (
	// Official is the project's own remote. It is never verified.
	Official Kind = "OFFICIAL"

	// PublicFork is a community mirror readable without credentials.
	PublicFork Kind = "PUBLIC_FORK"

	// PrivateFork is a community mirror that requires credentials.
	PrivateFork Kind = "PRIVATE_REPO"

	// Custom is any other remote configured by the user.
	Custom Kind = "CUSTOM"
)

// ParseKind accepts the canonical upper-case names as well as lower-case and
// dashed spellings ("public-fork", "private").
func ParseKind(s string) (Kind, error) {
	norm := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch norm {
	case string(Official):
		return Official, nil
	case string(PublicFork):
		return PublicFork, nil
	case string(PrivateFork), "PRIVATE_FORK", "PRIVATE":
		return PrivateFork, nil
	case string(Custom):
		return Custom, nil
	default:
		return "", errors.New(errors.CodeInvalidInput, fmt.Sprintf("unknown repository kind %q", s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Credentials is an optional username/password pair.
type Credentials struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Profile identifies one remote and branch to synchronize from.
// A Profile is treated as immutable for the duration of a synchronization.
type Profile struct {
	Name        string       `yaml:"name" json:"name"`
	Kind        Kind         `yaml:"type" json:"type"`
	URL         string       `yaml:"url" json:"url"`
	Branch      string       `yaml:"branch" json:"branch"`
	Editable    bool         `yaml:"editable" json:"editable"`
	Credentials *Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

// IsOfficial reports whether the profile points at the official remote.
func (p Profile) IsOfficial() bool {
	return p.Kind == Official
}

// Validate checks the fields required to start a synchronization.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return errors.New(errors.CodeInvalidInput, "profile url is required")
	}
	if strings.TrimSpace(p.Branch) == "" {
		return errors.New(errors.CodeInvalidInput, "profile branch is required")
	}
	if _, err := ParseKind(string(p.Kind)); err != nil {
		return err
	}
	return nil
}

// Auth derives the username/password presented to the remote.
// It returns ok=false when the remote should be accessed anonymously.
//
// Private forks with a password but no username get TokenUsername. For every
// kind, a credential whose username and password are both blank is anonymous.
func (p Profile) Auth() (username, password string, ok bool) {
	if p.Credentials == nil {
		return "", "", false
	}

	username = p.Credentials.Username
	password = p.Credentials.Password

	if p.Kind == PrivateFork && strings.TrimSpace(username) == "" && strings.TrimSpace(password) != "" {
		username = TokenUsername
	}

	if strings.TrimSpace(username) == "" && strings.TrimSpace(password) == "" {
		return "", "", false
	}
	return username, password, true
}

// String returns a log-friendly label that never includes credentials.
func (p Profile) String() string {
	if p.Name != "" {
		return fmt.Sprintf("%s (%s %s@%s)", p.Name, p.Kind, p.URL, p.Branch)
	}
	return fmt.Sprintf("%s %s@%s", p.Kind, p.URL, p.Branch)
}
