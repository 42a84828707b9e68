package meetup

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"

	"eventharvest-backend/lib/locator"

	"go.opentelemetry.io/otel/codes"
)

// Sentinels make extraction gaps visible in the persisted output, a
// consumer can tell "missing on the page" from "silently dropped".
const (
	SentinelName     = "Name not found"
	SentinelHost     = "Host not found"
	SentinelLocation = "Location not found"
	SentinelDetails  = "Details not found"
)

var nameChain = []locator.Strategy{
	{Selector: `h1[data-testid="event-title"]`},
	{Selector: "main h1"},
	{Selector: "h1"},
}

var dateChain = []locator.Strategy{
	{Selector: `[data-testid="event-when-display"] time`},
	{Selector: "#event-info time"},
	{Selector: "main time"},
}

var hostChain = []locator.Strategy{
	{Selector: `[data-testid="event-host"]`},
	{Selector: `[data-event-label="hosted-by"]`},
	{Selector: `a[href*="/members/"] .font-medium`},
}

var locationChain = []locator.Strategy{
	{
		Selector: `#event-info > div > div:nth-child(1) > div.flex.flex-col > div > div.overflow-hidden.pl-4`,
		Validate: locator.MinLength(6),
	},
	{Selector: `[data-testid="event-location"]`, Validate: locator.MinLength(6)},
	{Selector: `[data-testid="venue-info"]`, Validate: locator.MinLength(6)},
	{Selector: ".venueDisplay", Validate: locator.MinLength(6)},
	{Selector: ".event-location", Validate: locator.MinLength(6)},
	{Selector: ".venue-info", Validate: locator.MinLength(6)},
	{Selector: `[class*="location"]`, Validate: locator.MinLength(6)},
	{Selector: `[class*="venue"]`, Validate: locator.MinLength(6)},
}

var detailsChain = []locator.Strategy{
	{Selector: "#event-details > div.break-words"},
	{Selector: "#event-details", Validate: locator.MinLength(50)},
	{Selector: `[data-testid="event-description"]`, Validate: locator.MinLength(50)},
	{Selector: ".event-description", Validate: locator.MinLength(50)},
	{Selector: ".description", Validate: locator.MinLength(50)},
	{Selector: `[class*="description"]`, Validate: locator.MinLength(50)},
	{Selector: "#details", Validate: locator.MinLength(50)},
	{Selector: ".event-details", Validate: locator.MinLength(50)},
}

var countDigitRegex = regexp.MustCompile(`\d+`)

var attendeeCountChain = []locator.Strategy{
	{Selector: `[data-testid="attendees-count"]`, Validate: containsDigit},
	{Selector: `a[href$="/attendees/"] h2`, Validate: containsDigit},
	{Selector: "#attendees h2", Validate: containsDigit},
	{Selector: `[data-event-label="event-attendees"]`, Validate: containsDigit},
}

func containsDigit(s string) bool {
	return countDigitRegex.MatchString(s)
}

// ExtractDetails is phase two: navigate to the candidate's detail
// page, run every field through its fallback chain and collect
// attendees. Field failures degrade to sentinels and never abort the
// candidate; a navigation failure does, the candidate is skipped by
// the caller.
//
// The surface is always navigated back to returnLocation before this
// returns, success or not — the caller reuses it for the next
// candidate.
func (c *Client) ExtractDetails(ctx context.Context, cand Candidate, returnLocation string) (EventRecord, error) {
	ctx, span := tracer.Start(ctx, "client:ExtractDetails")
	defer span.End()

	err := c.surface.Navigate(ctx, cand.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach detail page")
		c.returnTo(ctx, returnLocation)
		return EventRecord{}, err
	}
	c.surface.Wait(ctx, navigationSettle)
	defer c.returnTo(ctx, returnLocation)

	record := EventRecord{
		ID:        EventID(cand.URL),
		URL:       cand.URL,
		Cancelled: cand.Cancelled,
	}

	record.Name = resolveField(ctx, c, nameChain, SentinelName, "name")

	rawDate, ok := locator.Resolve(ctx, c.surface, dateChain)
	if !ok {
		slog.WarnContext(ctx, "no date on detail page, falling back to current date", "url", cand.URL)
	}
	datePart, timePart := SplitDateTime(rawDate)
	record.Date = ToISODate(datePart)
	record.Time = timePart

	record.Host = resolveField(ctx, c, hostChain, SentinelHost, "host")
	record.Location = resolveField(ctx, c, locationChain, SentinelLocation, "location")
	record.Details = resolveField(ctx, c, detailsChain, SentinelDetails, "details")

	// a cancelled event has zero attendees no matter what its markup
	// still claims
	if !cand.Cancelled {
		// read the headline count while still on the detail page,
		// ExtractAttendees navigates into the sub-view
		headline, hasHeadline := c.headlineAttendeeCount(ctx)
		record.Attendees = c.ExtractAttendees(ctx)
		switch {
		case hasHeadline:
			record.AttendeeCount = headline
		case len(record.Attendees) > 0:
			record.AttendeeCount = len(record.Attendees)
		default:
			// nothing on the detail page, fall back to the count the
			// listing card advertised
			record.AttendeeCount = cand.AttendeeHint
		}
	}

	return record, nil
}

func resolveField(ctx context.Context, c *Client, chain []locator.Strategy, sentinel, field string) string {
	value, ok := locator.Resolve(ctx, c.surface, chain)
	if !ok {
		slog.WarnContext(ctx, "field extraction degraded to sentinel", "field", field)
		return sentinel
	}
	return value
}

func (c *Client) headlineAttendeeCount(ctx context.Context) (int, bool) {
	text, ok := locator.Resolve(ctx, c.surface, attendeeCountChain)
	if !ok {
		return 0, false
	}
	digits := countDigitRegex.FindString(text)
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (c *Client) returnTo(ctx context.Context, returnLocation string) {
	err := c.surface.Navigate(ctx, returnLocation)
	if err != nil {
		slog.WarnContext(ctx, "failed to navigate back to listing", "err", err)
		return
	}
	c.surface.Wait(ctx, shortSettle)
}
