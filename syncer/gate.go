package syncer

import (
	"context"
	"log/slog"
	"time"

	"github.com/shiguang-schedule/reposync/git"
	"github.com/shiguang-schedule/reposync/profile"
)

// GateSettings configure the authenticity check.
type GateSettings struct {
	Enabled bool

	// TagName and TagHash are the baseline every legitimate fork carries.
	TagName string
	TagHash string

	// Timeout bounds the ref listing.
	Timeout time.Duration
}

// Gate decides whether a non-official remote is trustworthy enough to sync
// from. A remote passes if it advertises a tag named exactly TagName that
// points at exactly TagHash. This only shows the remote shares history with
// the official baseline; it is not a chain of trust.
type Gate struct {
	vcs      VCS
	settings GateSettings
	logger   *slog.Logger
}

// NewGate returns a Gate listing tags through vcs.
func NewGate(vcs VCS, settings GateSettings, logger *slog.Logger) *Gate {
	return &Gate{vcs: vcs, settings: settings, logger: orDiscard(logger)}
}

// Enabled reports whether non-official remotes are verified at all.
func (g *Gate) Enabled() bool {
	return g.settings.Enabled
}

// Check reports whether p may be synchronized. Official profiles pass without
// touching the network. Every listing error fails closed.
func (g *Gate) Check(ctx context.Context, p profile.Profile) bool {
	if p.IsOfficial() {
		return true
	}

	if !g.settings.Enabled {
		g.logger.WarnContext(ctx, "authenticity check disabled, trusting remote",
			"url", p.URL, "kind", p.Kind)
		return true
	}

	listCtx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	tags, err := g.vcs.ListTags(listCtx, p.URL, credentialsFor(p))
	if err != nil {
		g.logger.WarnContext(ctx, "failed to list remote tags",
			"url", p.URL, "error", err)
		return false
	}

	nameMatches := git.TagNameFilter(g.settings.TagName)
	targetMatches := git.TagTargetFilter(g.settings.TagHash)
	for _, tag := range tags {
		if nameMatches(tag) && targetMatches(tag) {
			g.logger.InfoContext(ctx, "baseline tag verified",
				"url", p.URL, "tag", tag.Name, "commit", tag.Target())
			return true
		}
	}

	g.logger.WarnContext(ctx, "baseline tag not found",
		"url", p.URL, "tag", g.settings.TagName, "tags", len(tags))
	return false
}
