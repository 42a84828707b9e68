package meetup

import (
	"context"
	"log/slog"
	"strings"

	"eventharvest-backend/lib/locator"

	"go.opentelemetry.io/otel/attribute"
)

const cancelledMarker = "cancelled"

// CacheCandidates is phase one: walk the materialized list items and
// pull out the minimal (url, cancelled) tuple per item, in document
// order. No detail navigation happens here, the whole point of the
// cache is to avoid per-item navigation for items that turn out to be
// invalid or filtered.
//
// Items without a resolvable url are dropped, not failed: partially
// rendered cards are expected noise on this site. The second return
// is the dropped count.
func (c *Client) CacheCandidates(ctx context.Context, max int) ([]Candidate, int, error) {
	ctx, span := tracer.Start(ctx, "client:CacheCandidates")
	defer span.End()

	items, err := c.surface.Locate(ctx, listItemSelector)
	if err != nil {
		return nil, 0, err
	}

	var candidates []Candidate
	dropped := 0

	for i, item := range items {
		if max > 0 && len(candidates) >= max {
			break
		}

		href, ok := locator.Resolve(ctx, item, []locator.Strategy{
			{Selector: "a", Attribute: "href"},
		})
		if !ok {
			// some layouts make the card itself the link
			own, err := item.Attribute(ctx, "href")
			if err == nil && strings.TrimSpace(own) != "" {
				href, ok = own, true
			}
		}
		if !ok {
			href, ok = locator.ResolveAll(ctx, item, []locator.Strategy{
				{Selector: `a[href*="/events/"]`, Attribute: "href"},
			})
		}
		if !ok {
			slog.WarnContext(ctx, "skipped list item, no resolvable url", "index", i)
			dropped++
			continue
		}

		cancelled := false
		hint := 0
		text, err := item.Text(ctx)
		if err == nil {
			cancelled = strings.Contains(strings.ToLower(text), cancelledMarker)
			hint, _ = ParseAttendeeCountHint(text)
		}

		candidates = append(candidates, Candidate{
			URL:          CanonicalEventURL(href),
			Cancelled:    cancelled,
			AttendeeHint: hint,
		})
	}

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("dropped", dropped),
	)
	return candidates, dropped, nil
}
