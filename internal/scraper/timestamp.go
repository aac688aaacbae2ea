package scraper

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampPrefix precedes every post date in the topic hover title.
const TimestampPrefix = "Wysłany: "

const timestampLayout = "02 01 2006 15:04"

var (
	ErrTimestampFormat = errors.New("timestamp does not have four fields")
	ErrUnknownMonth    = errors.New("unknown month name")
	ErrTimestampValue  = errors.New("invalid timestamp value")
)

// polishMonths maps the forum's abbreviated month names to month numbers.
var polishMonths = map[string]time.Month{
	"Sty": time.January,
	"Lut": time.February,
	"Mar": time.March,
	"Kwi": time.April,
	"Maj": time.May,
	"Cze": time.June,
	"Lip": time.July,
	"Sie": time.August,
	"Wrz": time.September,
	"Paź": time.October,
	"Lis": time.November,
	"Gru": time.December,
}

// ParseForumTimestamp converts "Wysłany: 05 Sty 2025 14:30" into an absolute
// time in loc (UTC when loc is nil).
func ParseForumTimestamp(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	parts := strings.Fields(strings.ReplaceAll(raw, TimestampPrefix, ""))
	if len(parts) != 4 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampFormat, raw)
	}
	day, monthName, year, clock := parts[0], parts[1], parts[2], parts[3]

	month, ok := polishMonths[monthName]
	if !ok {
		return time.Time{}, fmt.Errorf("%w %q in %q", ErrUnknownMonth, monthName, raw)
	}
	if len(day) == 1 {
		day = "0" + day
	}

	reassembled := fmt.Sprintf("%s %02d %s %s", day, int(month), year, clock)
	t, err := time.ParseInLocation(timestampLayout, reassembled, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q: %v", ErrTimestampValue, raw, err)
	}
	return t, nil
}
