package meetup

import (
	"context"
	"testing"

	"eventharvest-backend/lib/surface"

	"github.com/stretchr/testify/require"
)

const listingURL = "https://www.meetup.com/go-group/events/past/"

const listingHTML = `
<html><head><title>Past events | Go Group</title></head><body>
<div id="past-event-card-ep-1">
	<a href="/go-group/events/111/?recId=abc">Go Talks July</a>
	<time>WED, JUL 16, 2025</time>
	<span>18 attendees</span>
</div>
<div id="past-event-card-ep-2">
	<a href="https://www.meetup.com/go-group/events/222/">August Social</a>
	<span>Cancelled</span>
</div>
<div id="past-event-card-ep-3">
	<span>half rendered card without any link</span>
</div>
</body></html>`

func newListingClient(t *testing.T) (*Client, *surface.Static) {
	t.Helper()
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	return NewClient(ClientOptions{Surface: s}), s
}

func TestCacheCandidates(t *testing.T) {
	c, _ := newListingClient(t)

	candidates, dropped, err := c.CacheCandidates(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Equal(t, []Candidate{
		{URL: "https://www.meetup.com/go-group/events/111/", Cancelled: false, AttendeeHint: 18},
		{URL: "https://www.meetup.com/go-group/events/222/", Cancelled: true},
	}, candidates)
}

func TestCacheCandidatesRespectsMax(t *testing.T) {
	c, _ := newListingClient(t)

	candidates, _, err := c.CacheCandidates(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "https://www.meetup.com/go-group/events/111/", candidates[0].URL)
}

func TestCacheCandidatesFallsBackToEventPathAnchor(t *testing.T) {
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: `
		<div id="past-event-card-ep-1">
			<a>no href here</a>
			<div><a href="/go-group/events/333/">nested</a></div>
		</div>
	`})
	err := s.Navigate(context.Background(), listingURL)
	require.NoError(t, err)
	c := NewClient(ClientOptions{Surface: s})

	candidates, dropped, err := c.CacheCandidates(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)
	require.Len(t, candidates, 1)
	require.Equal(t, "https://www.meetup.com/go-group/events/333/", candidates[0].URL)
}
