// Package surface abstracts the rendered page a scraper drives: a
// single stateful navigation context that can be pointed at a url,
// queried with css selectors and poked with script.
//
// The scraping packages only ever talk to these interfaces so the same
// extraction code runs against a live browser, a static html snapshot
// or a scripted fixture in tests.
package surface

import (
	"context"
	"fmt"
	"time"
)

// Element is a handle to one located element on the current page.
// Handles are only valid until the surface navigates away.
type Element interface {
	Text(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Visible(ctx context.Context) (bool, error)
	Click(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	// Locate queries descendants of this element only.
	Locate(ctx context.Context, selector string) ([]Element, error)
}

// Locator is the part of Surface and Element shared by the
// fallback-chain resolver.
type Locator interface {
	Locate(ctx context.Context, selector string) ([]Element, error)
}

// Surface is a single navigation context. Its current location is
// shared mutable state, callers must not drive it concurrently.
type Surface interface {
	Locator

	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Evaluate(ctx context.Context, script string) error
	Wait(ctx context.Context, d time.Duration)
}

// NavigationError reports that a target could not be reached or
// answered with an error status.
type NavigationError struct {
	URL    string
	Status int
	Err    error
}

func (e *NavigationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("navigate %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("navigate %s: %s", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
