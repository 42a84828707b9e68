package meetup

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// The normalizers in this file are total: they never fail, they
// degrade to a documented fallback instead.

// SplitDateTime splits raw date text into a date part and a time
// part. A newline wins over the literal " at " separator, without
// either the whole string is the date and the time is empty.
func SplitDateTime(raw string) (string, string) {
	raw = strings.Trim(raw, " \t\n")

	if date, rest, found := strings.Cut(raw, "\n"); found {
		return strings.TrimSpace(date), firstLine(rest)
	}
	if date, rest, found := strings.Cut(raw, " at "); found {
		return strings.TrimSpace(date), strings.TrimSpace(rest)
	}
	return raw, ""
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

var monthNumbers = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04",
	"MAY": "05", "JUN": "06", "JUL": "07", "AUG": "08",
	"SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

var isoDateRegex = regexp.MustCompile(`([A-Z]{3})\s+(\d{1,2}),\s+(\d{4})`)

// ToISODate parses date text like "WED, JUL 16, 2025, 10:00 AM BST"
// into "2025-07-16". Unparseable input falls back to the current
// date.
func ToISODate(raw string) string {
	return toISODateAt(raw, time.Now())
}

func toISODateAt(raw string, now time.Time) string {
	groups := isoDateRegex.FindStringSubmatch(strings.ToUpper(raw))
	if len(groups) == 4 {
		month, ok := monthNumbers[groups[1]]
		if !ok {
			month = "01"
		}
		day := groups[2]
		if len(day) == 1 {
			day = "0" + day
		}
		return fmt.Sprintf("%s-%s-%s", groups[3], month, day)
	}
	return now.Format("2006-01-02")
}

var unsafeCharRegex = regexp.MustCompile(`[^\w\s-]`)
var separatorRunRegex = regexp.MustCompile(`[-\s]+`)

// SanitizeIdentifier makes a string filesystem-safe: characters
// outside word characters, space and hyphen are stripped, runs of
// space and hyphen collapse to a single hyphen.
func SanitizeIdentifier(s string) string {
	s = unsafeCharRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	return separatorRunRegex.ReplaceAllString(s, "-")
}

var attendeeHintRegex = regexp.MustCompile(`(?i)(\d+)\s+(?:attendees?|members?|people|going)`)

// ParseAttendeeCountHint pulls a rough attendee count out of listing
// card text like "18 attendees" or "42 going". Listing cards are less
// reliable than the detail page, callers treat this as a hint only.
func ParseAttendeeCountHint(text string) (int, bool) {
	groups := attendeeHintRegex.FindStringSubmatch(text)
	if len(groups) < 2 {
		return 0, false
	}
	n := 0
	_, err := fmt.Sscanf(groups[1], "%d", &n)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

var guestCountRegexes = []*regexp.Regexp{
	regexp.MustCompile(`\+\s*(\d+)`),
	regexp.MustCompile(`(?i)plus\s+(\d+)`),
	regexp.MustCompile(`(?i)(\d+)\s+guests?`),
	regexp.MustCompile(`(?i)bringing\s+(\d+)`),
}

var guestVocabulary = []string{"guest", "bringing", "plus one", "+1"}

// ParseGuestCount extracts how many extra guests an attendee brings
// from their entry text. Numeric captures win, guest vocabulary
// without an extractable number counts as one, anything else is zero.
func ParseGuestCount(text string) int {
	for _, re := range guestCountRegexes {
		groups := re.FindStringSubmatch(text)
		if len(groups) < 2 {
			continue
		}
		n := 0
		_, err := fmt.Sscanf(groups[1], "%d", &n)
		if err != nil || n < 0 {
			continue
		}
		return n
	}

	lower := strings.ToLower(text)
	for _, word := range guestVocabulary {
		if strings.Contains(lower, word) {
			return 1
		}
	}
	return 0
}
