// Package harvest orchestrates a full extraction run: reach the
// listing, get past the auth gate, load the lazily rendered items,
// then extract and persist every candidate event.
package harvest

import (
	"context"
	"log/slog"

	"eventharvest-backend/lib/eventstore"
	"eventharvest-backend/lib/scrapers/meetup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/harvest")

// LoginPrompt lets the operator complete the site's login flow when
// the run hits the auth gate, for example by clicking through a
// headful browser window. Run blocks until it returns.
type LoginPrompt interface {
	RequestLogin(ctx context.Context) error
}

type Options struct {
	Group string
	// 0 loads and extracts everything the listing will render
	MaxEvents int
	Client    *meetup.Client
	Store     *eventstore.Store
	// appends one CSV row per saved record when set
	CSVLog bool
	// optional, the run aborts at the gate when unset
	Login LoginPrompt
}

type Summary struct {
	Loaded       int
	Candidates   int
	Dropped      int
	Extracted    int
	Skipped      int
	Saved        int
	SaveFailures int
}

// Run executes one harvest. Per-candidate failures are logged and
// counted, only listing-level failures abort the whole run.
func Run(ctx context.Context, opts Options) (Summary, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()
	span.SetAttributes(attribute.String("group", opts.Group))

	var summary Summary

	err := opts.Client.NavigateToPastEvents(ctx, opts.Group)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to reach listing")
		return summary, err
	}

	err = passGate(ctx, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "auth gate not passed")
		return summary, err
	}

	profile := meetup.ExhaustiveLoad
	if opts.MaxEvents > 0 {
		profile = meetup.BoundedLoad
	}
	summary.Loaded, err = opts.Client.LoadListing(ctx, opts.MaxEvents, profile)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load listing")
		return summary, err
	}

	candidates, dropped, err := opts.Client.CacheCandidates(ctx, opts.MaxEvents)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to cache candidates")
		return summary, err
	}
	summary.Candidates = len(candidates)
	summary.Dropped = dropped

	listing := meetup.PastEventsURL(opts.Group)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		record, err := opts.Client.ExtractDetails(ctx, cand, listing)
		if err != nil {
			slog.WarnContext(ctx, "skipping candidate", "url", cand.URL, "err", err)
			summary.Skipped++
			continue
		}
		summary.Extracted++

		// an interrupt aborts between candidates, the in-flight record
		// still persists
		persistCtx := context.WithoutCancel(ctx)
		err = opts.Store.Save(persistCtx, record)
		if err != nil {
			slog.ErrorContext(ctx, "failed to save record", "key", record.Key(), "err", err)
			summary.SaveFailures++
			continue
		}
		summary.Saved++

		if opts.CSVLog {
			err = opts.Store.AppendLog(record)
			if err != nil {
				slog.ErrorContext(ctx, "failed to append csv log", "key", record.Key(), "err", err)
				summary.SaveFailures++
			}
		}
	}

	slog.InfoContext(ctx, "harvest finished",
		"group", opts.Group,
		"loaded", summary.Loaded,
		"extracted", summary.Extracted,
		"skipped", summary.Skipped,
		"saved", summary.Saved,
		"save_failures", summary.SaveFailures,
	)
	return summary, nil
}

// passGate classifies the gate and gives the operator exactly one
// chance to log in. The second classification is final.
func passGate(ctx context.Context, opts Options) error {
	if opts.Client.ClassifyGate(ctx) == meetup.Authenticated {
		return nil
	}
	if opts.Login == nil {
		return meetup.ErrLoginRequired
	}

	slog.InfoContext(ctx, "login required, deferring to operator", "group", opts.Group)
	err := opts.Login.RequestLogin(ctx)
	if err != nil {
		return err
	}

	// the login flow navigates away, come back before re-checking
	err = opts.Client.NavigateToPastEvents(ctx, opts.Group)
	if err != nil {
		return err
	}
	if opts.Client.ClassifyGate(ctx) == meetup.Authenticated {
		return nil
	}
	return meetup.ErrLoginRequired
}
