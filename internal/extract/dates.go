package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// monthAlt matches a month name or abbreviation as a whole word, so "Mayfair"
// is not read as May.
const monthAlt = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Sept|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\b`

// yearAlt accepts two or four digit years only.
const yearAlt = `(?:\d{4}|\d{2})`

// maxYearsBack bounds how far before the clock a dated row may fall.
const maxYearsBack = 10

// Leading date patterns, tried in order. Each captures the date text.
var (
	dateSlash = regexp.MustCompile(`^(\d{1,2}[/.]\d{1,2}[/.]` + yearAlt + `)(?:\s|$)`)
	dateISO   = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})(?:\s|$)`)
	dateText  = regexp.MustCompile(`(?i)^(\d{1,2}\s+` + monthAlt + `\.?\s+` + yearAlt + `)(?:\s|$)`)
	dateDash  = regexp.MustCompile(`(?i)^(\d{1,2}-` + monthAlt + `-` + yearAlt + `)(?:\s|$)`)
	dateShort = regexp.MustCompile(`(?i)^(\d{1,2}\s+` + monthAlt + `\.?)(?:\s|$)`)

	// anyFullDate finds dated text anywhere on a line, for year inference.
	anyFullDate = regexp.MustCompile(`(?i)\b(\d{1,2}[/.]\d{1,2}[/.]\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}[\s-]+` + monthAlt + `[\s-]+\d{4})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// leadingDate splits a line into its leading date text and the remainder.
// yearless reports a "D Mon" date that needs year inference.
func leadingDate(line string) (raw, rest string, yearless bool, ok bool) {
	for _, re := range []*regexp.Regexp{dateSlash, dateISO, dateText, dateDash} {
		if m := re.FindStringSubmatchIndex(line); m != nil {
			return line[m[2]:m[3]], strings.TrimSpace(line[m[3]:]), false, true
		}
	}
	return yearlessDate(line)
}

// yearlessDate matches only a leading "D Mon" date.
func yearlessDate(line string) (raw, rest string, yearless bool, ok bool) {
	if m := dateShort.FindStringSubmatchIndex(line); m != nil {
		return line[m[2]:m[3]], strings.TrimSpace(line[m[3]:]), true, true
	}
	return "", line, false, false
}

// shortTextYear reports a "D Mon YY" date, whose year digits may instead
// start the description on statements that omit years.
func shortTextYear(raw string) bool {
	parts := strings.Fields(raw)
	return len(parts) == 3 && len(parts[2]) == 2
}

// mostlyYearless reports whether more dated rows omit the year than carry one.
func mostlyYearless(lines []string) bool {
	withYear, without := 0, 0
	for _, line := range lines {
		_, _, yearless, ok := leadingDate(cleanLine(line))
		switch {
		case !ok:
		case yearless:
			without++
		default:
			withYear++
		}
	}
	return without > withYear
}

// plausibleYear rejects years too far from now to be statement dates.
func plausibleYear(t, now time.Time) bool {
	year := now.UTC().Year()
	return t.Year() >= year-maxYearsBack && t.Year() <= year+1
}

// ParseDate normalizes a UK-style statement date to UTC midnight. Dates without
// a year take the year of reference, rolling back one year if that would place
// them after reference.
func ParseDate(raw string, reference time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "."))
	if raw == "" {
		return time.Time{}, false
	}

	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}

	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '/' || r == '.' || r == '-' || r == ' '
	})

	switch len(parts) {
	case 3:
		day, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, false
		}
		month, ok := parseMonth(parts[1])
		if !ok {
			return time.Time{}, false
		}
		year, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, false
		}
		switch {
		case year < 100:
			year += 2000
		case year < 1000:
			return time.Time{}, false
		}
		return buildDate(year, month, day)
	case 2:
		day, err := strconv.Atoi(parts[0])
		if err != nil {
			return time.Time{}, false
		}
		month, ok := parseMonth(parts[1])
		if !ok {
			return time.Time{}, false
		}
		ref := reference.UTC()
		t, ok := buildDate(ref.Year(), month, day)
		if !ok {
			return time.Time{}, false
		}
		if t.After(ref) {
			return buildDate(ref.Year()-1, month, day)
		}
		return t, true
	}
	return time.Time{}, false
}

func parseMonth(s string) (time.Month, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	if len(s) < 3 {
		return 0, false
	}
	m, ok := months[strings.ToLower(s[:3])]
	return m, ok
}

func buildDate(year int, month time.Month, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject overflow such as 31/02.
	if t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// latestFullDate returns the latest plausible fully dated value in lines.
func latestFullDate(lines []string, now time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, line := range lines {
		for _, m := range anyFullDate.FindAllString(line, -1) {
			t, ok := ParseDate(m, time.Time{})
			if ok && plausibleYear(t, now) && (!found || t.After(latest)) {
				latest = t
				found = true
			}
		}
	}
	return latest, found
}
