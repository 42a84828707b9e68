// Package locator implements prioritized fallback chains over a
// render surface: an ordered list of (locate, validate) strategies
// evaluated until one yields a validated, non-empty result. Scraping
// a change-prone site means every interesting field gets one of
// these instead of a single brittle selector.
package locator

import (
	"context"
	"strings"

	"eventharvest-backend/lib/surface"
)

type Strategy struct {
	Selector string
	// when set, the value is read from this attribute instead of the
	// element text
	Attribute string
	// nil defaults to NonEmpty
	Validate func(string) bool
}

func NonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// MinLength rejects near-empty boilerplate matches on free-text
// fields.
func MinLength(n int) func(string) bool {
	return func(s string) bool {
		return len(strings.TrimSpace(s)) >= n
	}
}

// Resolve evaluates the chain in order against scope and returns the
// first validated result. The boolean reports whether any strategy
// succeeded, strategy errors are swallowed, a failing strategy just
// means "try the next one".
func Resolve(ctx context.Context, scope surface.Locator, chain []Strategy) (string, bool) {
	for _, strat := range chain {
		elements, err := scope.Locate(ctx, strat.Selector)
		if err != nil || len(elements) == 0 {
			continue
		}

		value, err := read(ctx, elements[0], strat)
		if err != nil {
			continue
		}
		value = strings.TrimSpace(value)

		validate := strat.Validate
		if validate == nil {
			validate = NonEmpty
		}
		if validate(value) {
			return value, true
		}
	}
	return "", false
}

// ResolveAll is Resolve except it inspects every match of a strategy
// before moving on, the first validated match wins.
func ResolveAll(ctx context.Context, scope surface.Locator, chain []Strategy) (string, bool) {
	for _, strat := range chain {
		elements, err := scope.Locate(ctx, strat.Selector)
		if err != nil {
			continue
		}

		for _, el := range elements {
			value, err := read(ctx, el, strat)
			if err != nil {
				continue
			}
			value = strings.TrimSpace(value)

			validate := strat.Validate
			if validate == nil {
				validate = NonEmpty
			}
			if validate(value) {
				return value, true
			}
		}
	}
	return "", false
}

// FirstElement returns the first element any of the selectors
// matches. Used for controls that get clicked rather than read.
func FirstElement(ctx context.Context, scope surface.Locator, selectors []string) (surface.Element, bool) {
	for _, sel := range selectors {
		elements, err := scope.Locate(ctx, sel)
		if err != nil || len(elements) == 0 {
			continue
		}
		return elements[0], true
	}
	return nil, false
}

func read(ctx context.Context, el surface.Element, strat Strategy) (string, error) {
	if strat.Attribute != "" {
		return el.Attribute(ctx, strat.Attribute)
	}
	return el.Text(ctx)
}
