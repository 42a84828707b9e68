package meetup

import (
	"context"
	"log/slog"
	"time"

	"eventharvest-backend/lib/textutil"

	random "github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
)

const listItemSelector = `[id^="past-event-card-ep-"]`

// LoadProfile tunes the convergence loop. Exhaustive mode needs more
// patience since genuine lazy loading can stall for a while before
// producing new items.
type LoadProfile struct {
	// consecutive no-growth iterations before giving up
	Patience int
	// hard cap on total iterations
	MaxAttempts int
	Settle      time.Duration
}

var (
	BoundedLoad    = LoadProfile{Patience: 3, MaxAttempts: 20, Settle: time.Second * 2}
	ExhaustiveLoad = LoadProfile{Patience: 8, MaxAttempts: 120, Settle: time.Second * 2}
)

var noResultsMarkers = []string{"no events", "no upcoming events", "no past events"}
var loginTextMarkers = []string{"login", "sign in"}

// LoadListing scrolls until at least target list items are
// materialized, the count converges, or the attempt cap is hit.
// target <= 0 means load everything.
func (c *Client) LoadListing(ctx context.Context, target int, profile LoadProfile) (int, error) {
	ctx, span := tracer.Start(ctx, "client:LoadListing")
	defer span.End()

	c.surface.Wait(ctx, pageLoadSettle)

	count := 0
	previous := 0
	stalled := 0

	for attempt := 0; attempt < profile.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		c.scrollListing(ctx, attempt)
		c.surface.Wait(ctx, withJitter(profile.Settle))

		items, err := c.surface.Locate(ctx, listItemSelector)
		if err != nil {
			return count, err
		}
		count = len(items)
		slog.DebugContext(ctx, "materialized list items", "count", count, "attempt", attempt)

		if count == 0 && attempt == 0 && c.listingDefinitelyEmpty(ctx) {
			// a no-results or login page never converges upward,
			// don't burn the whole scroll budget on it
			span.SetAttributes(attribute.Bool("empty_listing", true))
			return 0, nil
		}

		if target > 0 && count >= target {
			break
		}
		if count == previous {
			stalled++
			if stalled >= profile.Patience {
				break
			}
		} else {
			stalled = 0
		}
		previous = count
	}

	span.SetAttributes(attribute.Int("materialized", count))
	return count, nil
}

// scrollListing rotates between scrolling the window and scrolling
// the last item into view, virtualized lists sometimes only
// materialize on direct intersection.
func (c *Client) scrollListing(ctx context.Context, attempt int) {
	if attempt%3 == 2 {
		items, err := c.surface.Locate(ctx, listItemSelector)
		if err == nil && len(items) > 0 {
			err = items[len(items)-1].ScrollIntoView(ctx)
			if err == nil {
				return
			}
		}
	}

	err := c.surface.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)")
	if err != nil {
		slog.DebugContext(ctx, "scroll script failed", "err", err)
	}
}

func (c *Client) listingDefinitelyEmpty(ctx context.Context) bool {
	bodies, err := c.surface.Locate(ctx, "body")
	if err != nil || len(bodies) == 0 {
		return false
	}
	text, err := bodies[0].Text(ctx)
	if err != nil {
		return false
	}

	if textutil.ContainsMarker(text, loginTextMarkers) {
		slog.WarnContext(ctx, "listing page contains login content, authentication required")
		return true
	}
	if textutil.ContainsMarker(text, noResultsMarkers) {
		slog.InfoContext(ctx, "listing page indicates there are no events")
		return true
	}
	return false
}

// withJitter spreads the settle waits a little so repeated scrolls
// don't look like a metronome.
func withJitter(d time.Duration) time.Duration {
	ms, err := random.IntRange(0, 500)
	if err != nil {
		return d
	}
	return d + time.Duration(ms)*time.Millisecond
}
