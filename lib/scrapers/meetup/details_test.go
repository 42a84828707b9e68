package meetup

import (
	"context"
	"strings"
	"testing"
	"time"

	"eventharvest-backend/lib/surface"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const eventURL = "https://www.meetup.com/go-group/events/111/"
const attendeesURL = "https://www.meetup.com/go-group/events/111/attendees/"

var eventHTML = `
<html><head><title>Go Talks July | Go Group</title></head><body>
<h1 data-testid="event-title">Go Talks July</h1>
<div id="event-info">
	<time>WED, JUL 16, 2025
10:00 AM BST</time>
	<div data-testid="event-host">Grace Hopper</div>
	<div data-testid="event-location">The Warehouse, 1 Main Street</div>
</div>
<div id="event-details"><div class="break-words">` + strings.Repeat("An evening of talks about Go. ", 4) + `</div></div>
<a href="` + attendeesURL + `"><h2>Attendees (3)</h2></a>
</body></html>`

const attendeesHTML = `
<html><body>
<ul data-testid="attendees-list">
	<li data-testid="attendee-card">
		<span data-testid="attendee-name">Grace Hopper</span>
		<span>Event Host</span>
		<img src="https://cdn.example.com/grace.png"/>
	</li>
	<li data-testid="attendee-card">
		<span data-testid="attendee-name">Ada Lovelace</span>
		<span>+2</span>
	</li>
	<li data-testid="attendee-card">
		<span data-testid="attendee-name">Ada Lovelace</span>
		<span>bringing 5</span>
	</li>
</ul>
</body></html>`

func newDetailFixture(t *testing.T) (*Client, *surface.Static) {
	t.Helper()
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	s.AddPage(eventURL, surface.StaticPage{HTML: eventHTML})
	s.AddPage(attendeesURL, surface.StaticPage{HTML: attendeesHTML})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	return NewClient(ClientOptions{Surface: s}), s
}

func TestExtractDetails(t *testing.T) {
	c, s := newDetailFixture(t)
	ctx := context.Background()

	record, err := c.ExtractDetails(ctx, Candidate{URL: eventURL}, listingURL)
	require.NoError(t, err)

	expect := EventRecord{
		ID:            "111",
		URL:           eventURL,
		Name:          "Go Talks July",
		Date:          "2025-07-16",
		Time:          "10:00 AM BST",
		AttendeeCount: 3,
		Host:          "Grace Hopper",
		Location:      "The Warehouse, 1 Main Street",
		Details:       strings.TrimSpace(strings.Repeat("An evening of talks about Go. ", 4)),
		Attendees: []AttendeeRecord{
			{Name: "Grace Hopper", IsHost: true, AvatarRef: "https://cdn.example.com/grace.png", GuestCount: 0},
			{Name: "Ada Lovelace", IsHost: false, AvatarRef: "", GuestCount: 2},
		},
	}
	diff := cmp.Diff(expect, record)
	require.Empty(t, diff)

	// the surface must be parked back on the listing for the next
	// candidate
	current, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	require.Equal(t, listingURL, current)
}

func TestExtractDetailsCancelledEventHasNoAttendees(t *testing.T) {
	c, _ := newDetailFixture(t)

	record, err := c.ExtractDetails(context.Background(), Candidate{URL: eventURL, Cancelled: true}, listingURL)
	require.NoError(t, err)
	require.True(t, record.Cancelled)
	require.Zero(t, record.AttendeeCount)
	require.Empty(t, record.Attendees)
}

func TestExtractDetailsDegradesToSentinels(t *testing.T) {
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	s.AddPage(eventURL, surface.StaticPage{HTML: `<html><body><p>nothing recognizable</p></body></html>`})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	c := NewClient(ClientOptions{Surface: s})

	record, err := c.ExtractDetails(context.Background(), Candidate{URL: eventURL}, listingURL)
	require.NoError(t, err)
	require.Equal(t, SentinelName, record.Name)
	// an unparseable date falls back to the day the scrape ran
	require.Equal(t, time.Now().Format("2006-01-02"), record.Date)
	require.Equal(t, SentinelHost, record.Host)
	require.Equal(t, SentinelLocation, record.Location)
	require.Equal(t, SentinelDetails, record.Details)
	require.Empty(t, record.Attendees)
	require.Zero(t, record.AttendeeCount)
}

func TestExtractDetailsFallsBackToListingHint(t *testing.T) {
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	s.AddPage(eventURL, surface.StaticPage{HTML: `
		<html><body><h1>Hint Only Event</h1></body></html>
	`})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	c := NewClient(ClientOptions{Surface: s})

	record, err := c.ExtractDetails(context.Background(), Candidate{URL: eventURL, AttendeeHint: 18}, listingURL)
	require.NoError(t, err)
	// no headline count and no attendee sub-view, the listing card's
	// count is all there is
	require.Equal(t, 18, record.AttendeeCount)
	require.Empty(t, record.Attendees)
}

func TestExtractDetailsNavigationFailureSkipsCandidate(t *testing.T) {
	c, s := newDetailFixture(t)
	ctx := context.Background()

	_, err := c.ExtractDetails(ctx, Candidate{URL: "https://www.meetup.com/go-group/events/999/"}, listingURL)
	var navErr *surface.NavigationError
	require.ErrorAs(t, err, &navErr)

	// even a failed candidate leaves the surface on the listing
	current, err := s.CurrentURL(ctx)
	require.NoError(t, err)
	require.Equal(t, listingURL, current)
}

func TestExtractDetailsShortLocationLosesToFallback(t *testing.T) {
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	s.AddPage(eventURL, surface.StaticPage{HTML: `
		<html><body>
		<div data-testid="event-location">x</div>
		<div class="venueDisplay">221B Baker Street, London</div>
		</body></html>
	`})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	c := NewClient(ClientOptions{Surface: s})

	record, err := c.ExtractDetails(context.Background(), Candidate{URL: eventURL}, listingURL)
	require.NoError(t, err)
	require.Equal(t, "221B Baker Street, London", record.Location)
}
