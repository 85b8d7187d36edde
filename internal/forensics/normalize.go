package forensics

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/gema-proctor/internal/models"
)

// ErrMalformedEvent marks an activity whose timestamp could not be parsed.
var ErrMalformedEvent = errors.New("forensics: malformed event")

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
}

// Entry is an activity with its parsed time and event kind.
type Entry struct {
	models.Activity
	At    time.Time
	Event Event
}

// Timeline is a chronologically ordered activity log ready for the detectors.
type Timeline struct {
	Name    string
	Entries []Entry
}

// ParseTimestamp converts a client timestamp to a UTC time with millisecond
// precision. Layouts without a zone are read as UTC.
func ParseTimestamp(raw models.Timestamp) (time.Time, error) {
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrMalformedEvent)
	}

	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(millis).UTC(), nil
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC().Truncate(time.Millisecond), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: unparseable timestamp %q", ErrMalformedEvent, value)
}

// NormalizeIP reduces a reported address to its IPv4 form when possible.
// Missing or unparseable values become models.UnknownIP.
func NormalizeIP(raw string) string {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "", "unknown", "undefined", "null", strings.ToLower(models.UnknownIP):
		return models.UnknownIP
	}

	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap().String()
	}
	if addr, err := netip.ParseAddr(strings.Trim(value, "[]")); err == nil {
		return addr.Unmap().String()
	}
	return models.UnknownIP
}

// Normalize sorts the log by timestamp, keeping the original order for equal
// timestamps. Activities with malformed timestamps are dropped and reported.
func Normalize(log models.ActivityLog) (Timeline, []error) {
	entries := make([]Entry, 0, len(log.Activities))
	var dropped []error

	for idx, activity := range log.Activities {
		at, err := ParseTimestamp(activity.Timestamp)
		if err != nil {
			dropped = append(dropped, fmt.Errorf("activity %d (%q): %w", idx, activity.Status, err))
			continue
		}
		activity.IP = NormalizeIP(activity.IP)
		entries = append(entries, Entry{
			Activity: activity,
			At:       at,
			Event:    ParseStatus(activity.Status),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.Before(entries[j].At)
	})

	return Timeline{Name: log.Name, Entries: entries}, dropped
}
