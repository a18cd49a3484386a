// Package auth gates personality interactions: backend authentication
// and NSFW verification, decided fresh on every message.
package auth

import (
	"context"
	"log/slog"

	"github.com/tzurot/tzurot/internal/bus"
	"github.com/tzurot/tzurot/internal/personality"
	"github.com/tzurot/tzurot/internal/proxy"
	"github.com/tzurot/tzurot/internal/store"
)

// Denial reasons surfaced to the user.
const (
	ReasonNotAuthenticated = "not authenticated with the backend"
	ReasonUnresolvedProxy  = "proxied identity could not be resolved"
	ReasonNSFWChannelOnly  = "this personality only speaks in NSFW channels or DMs"
	ReasonNSFWVerification = "NSFW channels require age verification"
)

// Decision is the outcome of the gate for one message. Nothing here is
// cached; state changes take effect on the next message.
type Decision struct {
	Allowed       bool
	UserID        string
	Reason        string
	IsDM          bool
	IsProxy       bool
	IsNSFWChannel bool
}

// Gate checks whether a user may interact with a personality.
type Gate struct {
	auth       store.AuthStore
	classifier *proxy.Classifier
}

func NewGate(authStore store.AuthStore, classifier *proxy.Classifier) *Gate {
	return &Gate{auth: authStore, classifier: classifier}
}

// Check evaluates the gate for msg against the target personality.
func (g *Gate) Check(ctx context.Context, msg bus.InboundMessage, p personality.Personality) Decision {
	d := Decision{
		UserID:        msg.AuthorID,
		IsDM:          msg.IsDM(),
		IsNSFWChannel: msg.NSFWChannel,
	}

	nsfwVerified := false

	if g.classifier != nil && g.classifier.IsProxySystemWebhook(msg) {
		d.IsProxy = true
		userID, authed := g.classifier.CheckAuthentication(ctx, msg)
		if userID == "" {
			d.Reason = ReasonUnresolvedProxy
			return d
		}
		d.UserID = userID
		if !authed {
			d.Reason = ReasonNotAuthenticated
			return d
		}
		nsfwVerified = g.classifier.ShouldBypassNSFWVerification(ctx, msg)
	} else {
		userAuth, found, err := g.auth.GetUserAuth(ctx, d.UserID)
		if err != nil {
			slog.Warn("auth lookup failed", "user", d.UserID, "error", err)
		}
		if !found || !userAuth.Authenticated() {
			d.Reason = ReasonNotAuthenticated
			return d
		}
		nsfwVerified = userAuth.NSFWVerified
	}

	// NSFW personalities stay out of general channels. DMs are between
	// consenting adults who authenticated; they pass.
	if p.NSFW && !d.IsDM && !d.IsNSFWChannel {
		d.Reason = ReasonNSFWChannelOnly
		return d
	}

	if d.IsNSFWChannel && !nsfwVerified {
		d.Reason = ReasonNSFWVerification
		return d
	}

	d.Allowed = true
	return d
}
