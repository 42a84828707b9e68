// Package meetup scrapes past events of a meetup.com group off the
// rendered listing page. The site is javascript heavy, login gated
// and changes markup often, so every extraction goes through
// fallback-locator chains and degrades per field instead of failing
// the run.
package meetup

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"eventharvest-backend/lib/surface"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/meetup")

const BaseURL = "https://www.meetup.com"

const (
	navigationSettle = time.Second * 2
	shortSettle      = time.Second * 1
	pageLoadSettle   = time.Second * 3
)

// AssetFetcher downloads a binary asset and hands back a relative
// reference to it. The scraper never touches raw bytes itself.
type AssetFetcher interface {
	Fetch(ctx context.Context, assetUrl string, hint string) (string, error)
}

type Client struct {
	surface surface.Surface
	assets  AssetFetcher
}

type ClientOptions struct {
	Surface surface.Surface
	// optional, avatar references stay remote urls when unset
	Assets AssetFetcher
}

func NewClient(opts ClientOptions) *Client {
	return &Client{
		surface: opts.Surface,
		assets:  opts.Assets,
	}
}

type Candidate struct {
	URL       string
	Cancelled bool
	// rough attendee count read off the listing card, 0 when the card
	// text carried none. The detail page supersedes it.
	AttendeeHint int
}

type AttendeeRecord struct {
	Name       string `json:"name"`
	IsHost     bool   `json:"is_host"`
	AvatarRef  string `json:"avatar_ref"`
	GuestCount int    `json:"guest_count"`
}

type EventRecord struct {
	ID            string           `json:"id"`
	URL           string           `json:"url"`
	Name          string           `json:"name"`
	Date          string           `json:"date"`
	Time          string           `json:"time"`
	AttendeeCount int              `json:"attendee_count"`
	Host          string           `json:"host"`
	Location      string           `json:"location"`
	Details       string           `json:"details"`
	Cancelled     bool             `json:"cancelled"`
	Attendees     []AttendeeRecord `json:"attendees"`
}

// Key is the identity of the record in storage: the site-assigned id,
// or sanitized name + date when the url carried no id.
func (r EventRecord) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return fmt.Sprintf("%s-%s", SanitizeIdentifier(r.Name), r.Date)
}

func PastEventsURL(group string) string {
	return fmt.Sprintf("%s/%s/events/past/", BaseURL, group)
}

// NavigateToPastEvents points the surface at the group's past events
// listing. A failure here compromises the whole run, the caller
// should not continue.
func (c *Client) NavigateToPastEvents(ctx context.Context, group string) error {
	ctx, span := tracer.Start(ctx, "client:NavigateToPastEvents")
	defer span.End()

	err := c.surface.Navigate(ctx, PastEventsURL(group))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach past events listing")
		return fmt.Errorf("group %q may not exist: %w", group, err)
	}
	c.surface.Wait(ctx, navigationSettle)
	return nil
}

var eventIdRegex = regexp.MustCompile(`/events/(\d+)`)

// EventID extracts the site-assigned numeric id from an event url,
// empty when the url carries none.
func EventID(eventUrl string) string {
	groups := eventIdRegex.FindStringSubmatch(eventUrl)
	if len(groups) < 2 {
		return ""
	}
	return groups[1]
}

// CanonicalEventURL absolutizes relative hrefs, strips the query
// string and normalizes the trailing slash so the same event always
// maps to the same url.
func CanonicalEventURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if !strings.HasPrefix(href, "http") {
		href = BaseURL + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed.String()
}
