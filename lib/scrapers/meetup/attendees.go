package meetup

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"eventharvest-backend/lib/locator"
	"eventharvest-backend/lib/surface"

	"go.opentelemetry.io/otel/attribute"
)

var attendeeOpenSelectors = []string{
	`a[href$="/attendees/"]`,
	`[data-testid="attendees-link"]`,
	`a[href*="/attendees"]`,
}

var interstitialDismissSelectors = []string{
	`[data-testid="close-modal"]`,
	`button[aria-label="Close"]`,
	`[data-testid="paywall-dismiss"]`,
}

var attendeeEntrySelectors = []string{
	`[data-testid="attendee-card"]`,
	`[id^="attendee-item-"]`,
	".attendee-item",
	`ul[data-testid="attendees-list"] > li`,
}

var attendeeNameChain = []locator.Strategy{
	{Selector: `[data-testid="attendee-name"]`},
	{Selector: ".attendee-name"},
	{Selector: "span"},
}

const hostMarker = "host"

// attendee lists are capped and shallow, a few fixed scrolls load
// them fully, no convergence loop needed
const attendeeScrollRounds = 3

type attendeeKey struct {
	name   string
	isHost bool
}

// ExtractAttendees opens the attendee sub-view of the detail page
// currently on the surface and pulls out one record per entry,
// deduplicated by (name, isHost) with the first occurrence winning.
//
// A missing attendee control is a legitimate empty list, cancelled
// and attendee-hidden events simply have none.
func (c *Client) ExtractAttendees(ctx context.Context) []AttendeeRecord {
	ctx, span := tracer.Start(ctx, "client:ExtractAttendees")
	defer span.End()

	control, ok := locator.FirstElement(ctx, c.surface, attendeeOpenSelectors)
	if !ok {
		slog.DebugContext(ctx, "no attendee control on detail page, treating as zero attendees")
		return nil
	}
	err := control.Click(ctx)
	if err != nil {
		slog.WarnContext(ctx, "attendee control would not open", "err", err)
		return nil
	}
	c.surface.Wait(ctx, shortSettle)

	c.dismissInterstitial(ctx)

	for i := 0; i < attendeeScrollRounds; i++ {
		err := c.surface.Evaluate(ctx, "window.scrollTo(0, document.body.scrollHeight)")
		if err != nil {
			break
		}
		c.surface.Wait(ctx, time.Second)
	}

	entries := c.attendeeEntries(ctx)

	seen := map[attendeeKey]bool{}
	var records []AttendeeRecord
	for _, entry := range entries {
		record, ok := c.extractAttendee(ctx, entry)
		if !ok {
			continue
		}

		key := attendeeKey{name: record.Name, isHost: record.IsHost}
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, record)
	}

	span.SetAttributes(attribute.Int("attendees", len(records)))
	return records
}

// dismissInterstitial closes the paywall modal when it shows up.
// Absence is the normal case, not an error.
func (c *Client) dismissInterstitial(ctx context.Context) {
	dismiss, ok := locator.FirstElement(ctx, c.surface, interstitialDismissSelectors)
	if !ok {
		return
	}
	visible, err := dismiss.Visible(ctx)
	if err != nil || !visible {
		return
	}
	err = dismiss.Click(ctx)
	if err != nil {
		slog.DebugContext(ctx, "interstitial dismiss failed", "err", err)
		return
	}
	c.surface.Wait(ctx, shortSettle)
}

func (c *Client) attendeeEntries(ctx context.Context) []surface.Element {
	for _, sel := range attendeeEntrySelectors {
		entries, err := c.surface.Locate(ctx, sel)
		if err != nil {
			continue
		}
		if len(entries) > 0 {
			return entries
		}
	}
	return nil
}

func (c *Client) extractAttendee(ctx context.Context, entry surface.Element) (AttendeeRecord, bool) {
	name, ok := locator.Resolve(ctx, entry, attendeeNameChain)
	if !ok {
		return AttendeeRecord{}, false
	}

	text, err := entry.Text(ctx)
	if err != nil {
		text = ""
	}

	record := AttendeeRecord{
		Name:       name,
		IsHost:     strings.Contains(strings.ToLower(text), hostMarker),
		GuestCount: ParseGuestCount(text),
	}
	record.AvatarRef = c.resolveAvatar(ctx, entry, name)
	return record, true
}

// resolveAvatar hands the avatar url to the asset downloader and
// keeps whatever reference comes back. Download failures degrade the
// field to empty, they never cost us the attendee record.
func (c *Client) resolveAvatar(ctx context.Context, entry surface.Element, name string) string {
	src, ok := locator.Resolve(ctx, entry, []locator.Strategy{
		{Selector: "img", Attribute: "src"},
	})
	if !ok {
		return ""
	}
	if c.assets == nil {
		return src
	}

	ref, err := c.assets.Fetch(ctx, src, SanitizeIdentifier(name))
	if err != nil {
		slog.WarnContext(ctx, "avatar download failed", "name", name, "err", err)
		return ""
	}
	return ref
}
