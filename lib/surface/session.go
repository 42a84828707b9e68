package surface

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// SessionStore persists browser cookies between runs so a later run
// can skip the login gate entirely. The scraping core never looks
// inside it, it only learns "restored or not" and re-checks the gate.
type SessionStore struct {
	Path string
}

func (s SessionStore) Save(b *Browser) error {
	var cookies []*network.Cookie
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, raw, 0600)
}

// Restore loads saved cookies into the browser. Returns false when
// there is no saved session, corrupt state is treated the same way
// since the caller falls back to the interactive login path anyway.
func (s SessionStore) Restore(b *Browser) bool {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return false
	}

	var cookies []*network.Cookie
	err = json.Unmarshal(raw, &cookies)
	if err != nil {
		slog.Warn("discarding corrupt session state", "path", s.Path, "err", err)
		return false
	}

	params := make([]*network.CookieParam, len(cookies))
	for i, c := range cookies {
		params[i] = &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
	}

	err = chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		slog.Warn("failed to restore session cookies", "err", err)
		return false
	}
	return true
}
