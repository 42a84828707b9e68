// Package eventstore persists extraction results in three shapes: a
// JSON document per event grouped under a date-prefixed directory, an
// append-only CSV log, and a sqlite catalog for quick listing without
// walking the document tree.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"eventharvest-backend/lib/osutil"
	"eventharvest-backend/lib/scrapers/meetup"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("lib/eventstore")

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	key TEXT NOT NULL PRIMARY KEY,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	date TEXT NOT NULL,
	path TEXT NOT NULL,
	cancelled INTEGER NOT NULL,
	attendee_count INTEGER NOT NULL,
	scraped_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_date ON events (date);
`

// the log's column order is stable, downstream spreadsheets key on it
var logColumns = []string{
	"id", "url", "name", "date", "time",
	"attendees", "host", "location", "details", "cancelled",
}

const logFilename = "events.csv"

type Store struct {
	root string
	db   *sql.DB
}

// SaveError wraps a failure to persist a single record so callers can
// keep a partial-failure tally without parsing error strings.
type SaveError struct {
	Key string
	Err error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save event %q: %s", e.Key, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Open creates the root directory if needed and opens the catalog
// database inside it.
func Open(root string) (*Store, error) {
	err := osutil.EnsureDir(root)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Join(root, "catalog.db"))
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{root: root, db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DocumentPath reports where a record's JSON document lives relative
// to the store root. The directory name leads with the date so a plain
// directory listing sorts chronologically.
func (s *Store) DocumentPath(record meetup.EventRecord) string {
	return filepath.Join("events", fmt.Sprintf("%s_%s", isoDate(record), record.Key()), "data.json")
}

// Save writes the record's JSON document and upserts the catalog row.
// Saving the same record twice overwrites in place, re-running a
// scrape never duplicates output.
func (s *Store) Save(ctx context.Context, record meetup.EventRecord) error {
	ctx, span := tracer.Start(ctx, "store:Save")
	defer span.End()

	err := s.save(ctx, record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save record")
		return &SaveError{Key: record.Key(), Err: err}
	}
	return nil
}

func (s *Store) save(ctx context.Context, record meetup.EventRecord) error {
	rel := s.DocumentPath(record)
	abs := filepath.Join(s.root, rel)
	err := osutil.EnsureDir(filepath.Dir(abs))
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	err = os.WriteFile(abs, raw, 0644)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (key, id, name, date, path, cancelled, attendee_count, scraped_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			id = excluded.id,
			name = excluded.name,
			date = excluded.date,
			path = excluded.path,
			cancelled = excluded.cancelled,
			attendee_count = excluded.attendee_count,
			scraped_at = excluded.scraped_at`,
		record.Key(), record.ID, record.Name, isoDate(record), rel,
		record.Cancelled, record.AttendeeCount, time.Now().Unix(),
	)
	return err
}

// AppendLog appends one row per call to the CSV log, writing the
// header only when the file does not exist yet.
func (s *Store) AppendLog(record meetup.EventRecord) error {
	path := filepath.Join(s.root, logFilename)

	_, err := os.Stat(path)
	writeHeader := os.IsNotExist(err)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &SaveError{Key: record.Key(), Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if writeHeader {
		err = w.Write(logColumns)
		if err != nil {
			return &SaveError{Key: record.Key(), Err: err}
		}
	}
	err = w.Write([]string{
		record.ID,
		record.URL,
		record.Name,
		isoDate(record),
		record.Time,
		strconv.Itoa(record.AttendeeCount),
		record.Host,
		record.Location,
		record.Details,
		strconv.FormatBool(record.Cancelled),
	})
	if err != nil {
		return &SaveError{Key: record.Key(), Err: err}
	}
	w.Flush()
	if w.Error() != nil {
		return &SaveError{Key: record.Key(), Err: w.Error()}
	}
	return nil
}

type CatalogEntry struct {
	Key           string
	ID            string
	Name          string
	Date          string
	Path          string
	Cancelled     bool
	AttendeeCount int
	ScrapedAt     time.Time
}

// List reads the catalog back, newest event date first.
func (s *Store) List(ctx context.Context) ([]CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, id, name, date, path, cancelled, attendee_count, scraped_at
		FROM events
		ORDER BY date DESC, key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []CatalogEntry
	for rows.Next() {
		var e CatalogEntry
		var scrapedAt int64
		err = rows.Scan(
			&e.Key, &e.ID, &e.Name, &e.Date, &e.Path,
			&e.Cancelled, &e.AttendeeCount, &scrapedAt,
		)
		if err != nil {
			return nil, err
		}
		e.ScrapedAt = time.Unix(scrapedAt, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// records normally carry an ISO date already, anything else is
// normalized so the directory layout stays date-sortable
func isoDate(record meetup.EventRecord) string {
	_, err := time.Parse("2006-01-02", record.Date)
	if err == nil {
		return record.Date
	}
	return meetup.ToISODate(record.Date)
}
