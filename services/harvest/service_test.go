package harvest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"eventharvest-backend/lib/eventstore"
	"eventharvest-backend/lib/scrapers/meetup"
	"eventharvest-backend/lib/surface"
	"eventharvest-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

const group = "go-group"

var listingURL = meetup.PastEventsURL(group)

const listingHTML = `
<html><head><title>Past events | Go Group</title></head><body>
<div id="past-event-card-ep-1">
	<a href="/go-group/events/111/">Go Talks July</a>
</div>
<div id="past-event-card-ep-2">
	<a href="/go-group/events/222/">August Social</a>
	<span>Cancelled</span>
</div>
<div id="past-event-card-ep-3">
	<a href="/go-group/events/333/">Hack Night</a>
</div>
</body></html>`

const talksHTML = `
<html><head><title>Go Talks July | Meetup</title></head><body>
<h1 data-testid="event-title">Go Talks July</h1>
<div id="event-info">
	<time>WED, JUL 16, 2025
10:00 AM BST</time>
	<div data-testid="event-host">Grace Hopper</div>
	<div data-testid="event-location">The Warehouse, 1 Main Street</div>
</div>
<div id="event-details"><div class="break-words">An evening of lightning talks about Go, generics and the runtime scheduler.</div></div>
<a href="https://www.meetup.com/go-group/events/111/attendees/"><h2>Attendees (2)</h2></a>
</body></html>`

const talksAttendeesHTML = `
<html><body>
<ul data-testid="attendees-list">
	<li data-testid="attendee-card"><span data-testid="attendee-name">Grace Hopper</span><span>Event Host</span></li>
	<li data-testid="attendee-card"><span data-testid="attendee-name">Ada Lovelace</span><span>+1</span></li>
</ul>
</body></html>`

const socialHTML = `
<html><head><title>August Social | Meetup</title></head><body>
<h1 data-testid="event-title">August Social</h1>
<div id="event-info"><time>WED, JUL 16, 2025</time></div>
</body></html>`

const hackNightHTML = `
<html><head><title>Hack Night | Meetup</title></head><body>
<h1 data-testid="event-title">Hack Night</h1>
<div id="event-info">
	<time>SAT, JUL 19, 2025
06:00 PM BST</time>
	<div data-testid="event-host">Rob</div>
	<div data-testid="event-location">Community Hall, 5 North Road</div>
</div>
</body></html>`

func newFixtureSurface() *surface.Static {
	s := surface.NewStatic()
	s.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	s.AddPage("https://www.meetup.com/go-group/events/111/", surface.StaticPage{HTML: talksHTML})
	s.AddPage("https://www.meetup.com/go-group/events/111/attendees/", surface.StaticPage{HTML: talksAttendeesHTML})
	s.AddPage("https://www.meetup.com/go-group/events/222/", surface.StaticPage{HTML: socialHTML})
	s.AddPage("https://www.meetup.com/go-group/events/333/", surface.StaticPage{HTML: hackNightHTML})
	return s
}

func TestRun(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	root := t.TempDir()
	store, err := eventstore.Open(root)
	require.NoError(t, err)
	defer store.Close()

	summary, err := Run(context.Background(), Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: newFixtureSurface()}),
		Store:  store,
		CSVLog: true,
	})
	require.NoError(t, err)

	require.Equal(t, 3, summary.Loaded)
	require.Equal(t, 3, summary.Candidates)
	require.Equal(t, 0, summary.Dropped)
	require.Equal(t, 3, summary.Extracted)
	require.Equal(t, 0, summary.Skipped)
	require.Equal(t, 3, summary.Saved)
	require.Equal(t, 0, summary.SaveFailures)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	// documents group under date-prefixed directories, two events share
	// a date so there are only two groups
	dirs, err := os.ReadDir(filepath.Join(root, "events"))
	require.NoError(t, err)
	require.Len(t, dirs, 2)

	raw, err := os.ReadFile(filepath.Join(root, "events", "2025-07-16_111", "data.json"))
	require.NoError(t, err)
	var talks meetup.EventRecord
	require.NoError(t, json.Unmarshal(raw, &talks))
	require.Equal(t, "Go Talks July", talks.Name)
	require.Equal(t, 2, talks.AttendeeCount)
	require.Len(t, talks.Attendees, 2)

	// cancelled events persist with zero attendees no matter the markup
	raw, err = os.ReadFile(filepath.Join(root, "events", "2025-07-16_222", "data.json"))
	require.NoError(t, err)
	var social meetup.EventRecord
	require.NoError(t, json.Unmarshal(raw, &social))
	require.True(t, social.Cancelled)
	require.Zero(t, social.AttendeeCount)
	require.Empty(t, social.Attendees)

	_, err = os.Stat(filepath.Join(root, "events.csv"))
	require.NoError(t, err)
}

func TestRunRespectsMaxEvents(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	store, err := eventstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	summary, err := Run(context.Background(), Options{
		Group:     group,
		MaxEvents: 1,
		Client:    meetup.NewClient(meetup.ClientOptions{Surface: newFixtureSurface()}),
		Store:     store,
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Candidates)
	require.Equal(t, 1, summary.Saved)
}

func TestRunSaveFailureDoesNotAbortRun(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	root := t.TempDir()
	store, err := eventstore.Open(root)
	require.NoError(t, err)
	defer store.Close()

	// a stray file where the first event's document directory should
	// go makes that save fail, the rest of the run must not care
	require.NoError(t, os.MkdirAll(filepath.Join(root, "events"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "events", "2025-07-16_111"), []byte("in the way"), 0644))

	summary, err := Run(context.Background(), Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: newFixtureSurface()}),
		Store:  store,
	})
	require.NoError(t, err)

	require.Equal(t, 3, summary.Extracted)
	require.Equal(t, 2, summary.Saved)
	require.Equal(t, 1, summary.SaveFailures)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	_, err = os.Stat(filepath.Join(root, "events", "2025-07-16_222", "data.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "events", "2025-07-19_333", "data.json"))
	require.NoError(t, err)
}

// cancelOnNavigate fires its cancel func when a navigation targets the
// given url, simulating an operator interrupt mid-candidate.
type cancelOnNavigate struct {
	*surface.Static
	target string
	cancel context.CancelFunc
}

func (s *cancelOnNavigate) Navigate(ctx context.Context, url string) error {
	if url == s.target {
		s.cancel()
	}
	return s.Static.Navigate(ctx, url)
}

func TestRunInterruptStopsBetweenCandidates(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	store, err := eventstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// the interrupt arrives as the first candidate's detail page is
	// being opened, in the middle of its extraction
	s := &cancelOnNavigate{
		Static: newFixtureSurface(),
		target: "https://www.meetup.com/go-group/events/111/",
		cancel: cancel,
	}

	summary, err := Run(ctx, Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: s}),
		Store:  store,
	})
	require.ErrorIs(t, err, context.Canceled)

	// the in-flight candidate finished and persisted, nothing after it
	// was touched
	require.Equal(t, 1, summary.Extracted)
	require.Equal(t, 1, summary.Saved)
	require.Equal(t, 0, summary.Skipped)

	entries, listErr := store.List(context.Background())
	require.NoError(t, listErr)
	require.Len(t, entries, 1)
	require.Equal(t, "111", entries[0].ID)

	// the surface is parked back on the listing, not mid-navigation
	current, urlErr := s.CurrentURL(context.Background())
	require.NoError(t, urlErr)
	require.Equal(t, listingURL, current)
}

const loginWallHTML = `
<html><head><title>Login to Meetup | Meetup</title></head><body>
<p>You must be logged in to see this page.</p>
</body></html>`

type scriptedLogin struct {
	surface *surface.Static
	calls   int
	err     error
}

func (l *scriptedLogin) RequestLogin(ctx context.Context) error {
	l.calls++
	if l.err != nil {
		return l.err
	}
	if l.surface != nil {
		// logging in makes the real listing render from here on
		l.surface.AddPage(listingURL, surface.StaticPage{HTML: listingHTML})
	}
	return nil
}

func TestRunAbortsAtGateWithoutPrompt(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	store, err := eventstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newFixtureSurface()
	s.AddPage(listingURL, surface.StaticPage{HTML: loginWallHTML})

	_, err = Run(context.Background(), Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: s}),
		Store:  store,
	})
	require.ErrorIs(t, err, meetup.ErrLoginRequired)
}

func TestRunDefersToLoginPromptOnce(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	store, err := eventstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newFixtureSurface()
	s.AddPage(listingURL, surface.StaticPage{HTML: loginWallHTML})
	login := &scriptedLogin{surface: s}

	summary, err := Run(context.Background(), Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: s}),
		Store:  store,
		Login:  login,
	})
	require.NoError(t, err)
	require.Equal(t, 1, login.calls)
	require.Equal(t, 3, summary.Saved)
}

func TestRunGateStillClosedAfterPrompt(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:harvest")
	defer cleanup()

	store, err := eventstore.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := newFixtureSurface()
	s.AddPage(listingURL, surface.StaticPage{HTML: loginWallHTML})
	// the prompt returns without actually logging in
	login := &scriptedLogin{surface: s}
	login.surface = nil

	_, err = Run(context.Background(), Options{
		Group:  group,
		Client: meetup.NewClient(meetup.ClientOptions{Surface: s}),
		Store:  store,
		Login:  login,
	})
	require.ErrorIs(t, err, meetup.ErrLoginRequired)
}
