package surface

import (
	"context"
	"net/url"
	"strings"
	"time"

	"eventharvest-backend/lib/htmlutil"
	"eventharvest-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

type StaticPage struct {
	Title string
	HTML  string
	// zero means 200
	Status int
}

// Static is a Surface over server-rendered html. Pages can be
// preloaded (fixtures, snapshots) or fetched over http when a client
// is attached. There is no script engine, Evaluate and Wait are
// no-ops, which also makes it the fast path for extraction tests.
type Static struct {
	pages   map[string]StaticPage
	http    *resty.Client
	current string
	title   string
	doc     *goquery.Document
}

var _ Surface = (*Static)(nil)

func NewStatic() *Static {
	return &Static{pages: map[string]StaticPage{}}
}

// NewStaticClient returns a Static that fetches pages it does not
// have preloaded.
func NewStaticClient() *Static {
	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", defaultUserAgent)
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "surface/static")

	s := NewStatic()
	s.http = client
	return s
}

func (s *Static) AddPage(url string, page StaticPage) {
	s.pages[url] = page
}

func (s *Static) Navigate(ctx context.Context, url string) error {
	page, ok := s.pages[url]
	if !ok {
		if s.http == nil {
			return &NavigationError{URL: url, Status: 404}
		}

		res, err := s.http.R().SetContext(ctx).Get(url)
		if err != nil {
			return &NavigationError{URL: url, Err: err}
		}
		if res.StatusCode() >= 400 {
			return &NavigationError{URL: url, Status: res.StatusCode()}
		}
		page = StaticPage{HTML: string(res.Body())}
	}
	if page.Status >= 400 {
		return &NavigationError{URL: url, Status: page.Status}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}

	s.current = url
	s.doc = doc
	s.title = page.Title
	if s.title == "" {
		s.title = strings.TrimSpace(doc.Find("title").Text())
	}
	return nil
}

func (s *Static) CurrentURL(ctx context.Context) (string, error) {
	return s.current, nil
}

func (s *Static) Title(ctx context.Context) (string, error) {
	return s.title, nil
}

func (s *Static) Locate(ctx context.Context, selector string) ([]Element, error) {
	if s.doc == nil {
		return nil, nil
	}
	return splitSelection(s, s.doc.Find(selector)), nil
}

func (s *Static) Evaluate(ctx context.Context, script string) error {
	return nil
}

// resolve absolutizes a relative href against the current location so
// pages can carry site-realistic relative links.
func (s *Static) resolve(href string) string {
	base, err := url.Parse(s.current)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func (s *Static) Wait(ctx context.Context, d time.Duration) {}

func splitSelection(s *Static, sel *goquery.Selection) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, single *goquery.Selection) {
		elements = append(elements, &staticElement{surf: s, sel: single})
	})
	return elements
}

type staticElement struct {
	surf *Static
	sel  *goquery.Selection
}

func (e *staticElement) Text(ctx context.Context) (string, error) {
	if len(e.sel.Nodes) == 0 {
		return "", nil
	}
	return htmlutil.CleanText(htmlutil.GetText(e.sel.Nodes[0])), nil
}

func (e *staticElement) Attribute(ctx context.Context, name string) (string, error) {
	return e.sel.AttrOr(name, ""), nil
}

func (e *staticElement) Visible(ctx context.Context) (bool, error) {
	_, hidden := e.sel.Attr("hidden")
	return !hidden, nil
}

// Click follows the href when the element is a link, anything else is
// accepted silently since there is no script to run.
func (e *staticElement) Click(ctx context.Context) error {
	href := e.sel.AttrOr("href", "")
	if href == "" {
		return nil
	}
	return e.surf.Navigate(ctx, e.surf.resolve(href))
}

func (e *staticElement) ScrollIntoView(ctx context.Context) error {
	return nil
}

func (e *staticElement) Locate(ctx context.Context, selector string) ([]Element, error) {
	return splitSelection(e.surf, e.sel.Find(selector)), nil
}
