package surface

import (
	"context"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"

type BrowserOptions struct {
	// Profile directory, cookies and local storage survive restarts
	// when set. Empty means a throwaway profile.
	StateDir  string
	Headless  bool
	UserAgent string
	// Timeout applied to every navigation.
	NavigationTimeout time.Duration
}

// Browser is a chromedp backed Surface.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
	opts    BrowserOptions
}

var _ Surface = (*Browser)(nil)

func NewBrowser(ctx context.Context, opts BrowserOptions) (*Browser, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.NavigationTimeout == 0 {
		opts.NavigationTimeout = time.Second * 30
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(opts.UserAgent),
	)
	if opts.StateDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.StateDir))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// spawns the process eagerly so startup failures surface here
	// instead of on the first navigation
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	return &Browser{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
		opts:    opts,
	}, nil
}

func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}

func (b *Browser) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.NavigationTimeout)
	defer cancel()

	res, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	if res != nil && res.Status >= 400 {
		return &NavigationError{URL: url, Status: int(res.Status)}
	}
	return nil
}

func (b *Browser) CurrentURL(ctx context.Context) (string, error) {
	var loc string
	err := chromedp.Run(b.ctx, chromedp.Location(&loc))
	return loc, err
}

func (b *Browser) Title(ctx context.Context) (string, error) {
	var title string
	err := chromedp.Run(b.ctx, chromedp.Title(&title))
	return title, err
}

func (b *Browser) Locate(ctx context.Context, selector string) ([]Element, error) {
	return b.locateFrom(ctx, selector, nil)
}

func (b *Browser) locateFrom(ctx context.Context, selector string, from *cdp.Node) ([]Element, error) {
	// Nodes blocks until at least one match exists, AtLeast(0) turns
	// it into a plain query
	queryOpts := []chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}
	if from != nil {
		queryOpts = append(queryOpts, chromedp.FromNode(from))
	}

	var nodes []*cdp.Node
	err := chromedp.Run(b.ctx, chromedp.Nodes(selector, &nodes, queryOpts...))
	if err != nil {
		return nil, err
	}

	elements := make([]Element, len(nodes))
	for i, n := range nodes {
		elements[i] = &browserElement{browser: b, node: n}
	}
	return elements, nil
}

func (b *Browser) Evaluate(ctx context.Context, script string) error {
	return chromedp.Run(b.ctx, chromedp.Evaluate(script, nil))
}

func (b *Browser) Wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-b.ctx.Done():
	}
}

type browserElement struct {
	browser *Browser
	node    *cdp.Node
}

func (e *browserElement) ids() []cdp.NodeID {
	return []cdp.NodeID{e.node.NodeID}
}

func (e *browserElement) Text(ctx context.Context) (string, error) {
	var out string
	err := chromedp.Run(
		e.browser.ctx,
		chromedp.Text(e.ids(), &out, chromedp.ByNodeID),
	)
	return out, err
}

func (e *browserElement) Attribute(ctx context.Context, name string) (string, error) {
	var value string
	var ok bool
	err := chromedp.Run(
		e.browser.ctx,
		chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID),
	)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (e *browserElement) Visible(ctx context.Context) (bool, error) {
	timeout := time.Second * 3
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	runCtx, cancel := context.WithTimeout(e.browser.ctx, timeout)
	defer cancel()

	err := chromedp.Run(
		runCtx,
		chromedp.WaitVisible(e.ids(), chromedp.ByNodeID),
	)
	if err != nil {
		slog.DebugContext(ctx, "element not visible", "node", e.node.NodeID, "err", err)
		return false, nil
	}
	return true, nil
}

func (e *browserElement) Click(ctx context.Context) error {
	return chromedp.Run(
		e.browser.ctx,
		chromedp.Click(e.ids(), chromedp.ByNodeID),
	)
}

func (e *browserElement) ScrollIntoView(ctx context.Context) error {
	return chromedp.Run(
		e.browser.ctx,
		chromedp.ScrollIntoView(e.ids(), chromedp.ByNodeID),
	)
}

func (e *browserElement) Locate(ctx context.Context, selector string) ([]Element, error) {
	return e.browser.locateFrom(ctx, selector, e.node)
}
