package git

import (
	"strings"

	"github.com/leodido/go-conventionalcommits"
	"github.com/leodido/go-conventionalcommits/parser"
)

// Summary is a one-line description of a commit message.
type Summary struct {
	// Conventional reports whether the subject follows the conventional commits format.
	Conventional bool

	// Type is the conventional commit type (feat, fix, ...). Empty otherwise.
	Type string

	// Scope is the optional conventional commit scope.
	Scope string

	// Subject is the description for conventional commits, or the first
	// line of the message otherwise.
	Subject string

	// Breaking reports a breaking change marker ("!" or BREAKING CHANGE footer).
	Breaking bool
}

// String renders the summary the way it appears in progress logs.
func (s Summary) String() string {
	if !s.Conventional {
		return s.Subject
	}

	var b strings.Builder
	b.WriteString(s.Type)
	if s.Scope != "" {
		b.WriteString("(" + s.Scope + ")")
	}
	if s.Breaking {
		b.WriteString("!")
	}
	b.WriteString(": ")
	b.WriteString(s.Subject)
	return b.String()
}

// Summarize parses a commit message. Messages that are not conventional
// commits fall back to their first line.
func Summarize(message string) Summary {
	subject, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	fallback := Summary{Subject: strings.TrimSpace(subject)}

	machine := parser.NewMachine(
		parser.WithTypes(conventionalcommits.TypesConventional),
	)

	msg, err := machine.Parse([]byte(strings.TrimSpace(message)))
	if err != nil || msg == nil || !msg.Ok() {
		return fallback
	}

	cc, ok := msg.(*conventionalcommits.ConventionalCommit)
	if !ok {
		return fallback
	}

	summary := Summary{
		Conventional: true,
		Type:         cc.Type,
		Subject:      cc.Description,
		Breaking:     cc.IsBreakingChange(),
	}
	if cc.Scope != nil {
		summary.Scope = *cc.Scope
	}
	return summary
}
