package meetup

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

var ErrLoginRequired = errors.New("login required")

type GateState int

const (
	Authenticated GateState = iota
	LoginRequired
)

func (g GateState) String() string {
	if g == LoginRequired {
		return "login_required"
	}
	return "authenticated"
}

const loginTitlePrefix = "Login to Meetup"

var loginUrlMarkers = []string{"/login", "sign-in"}

// ClassifyGate decides whether the surface currently sits behind the
// login wall. It is a pure read, never mutating navigation state.
//
// Ambiguity defaults to Authenticated: a false LoginRequired blocks
// an otherwise fine run, while a false Authenticated just produces an
// empty listing that the loader catches anyway. An unreadable
// title/url fails closed to LoginRequired instead, scraping a login
// shell silently is the one outcome this check exists to prevent.
func (c *Client) ClassifyGate(ctx context.Context) GateState {
	title, err := c.surface.Title(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not read page title, assuming login wall", "err", err)
		return LoginRequired
	}
	currentUrl, err := c.surface.CurrentURL(ctx)
	if err != nil {
		slog.WarnContext(ctx, "could not read current url, assuming login wall", "err", err)
		return LoginRequired
	}

	if strings.HasPrefix(title, loginTitlePrefix) {
		return LoginRequired
	}
	lowerUrl := strings.ToLower(currentUrl)
	for _, marker := range loginUrlMarkers {
		if strings.Contains(lowerUrl, marker) {
			return LoginRequired
		}
	}
	return Authenticated
}
