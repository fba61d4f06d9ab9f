package parser

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// The valid-hours endpoint returns the hour <select> options inside a
// scripted fragment. Depending on how the response was encoded the
// value attributes arrive doubly escaped, singly escaped or plain; the
// patterns are tried in that fixed order and the first one that yields
// any match wins.
var validHourPatterns = []*regexp.Regexp{
	regexp.MustCompile(regexp.QuoteMeta(`value=\\\"`) + `(\d{1,2}:\d{2})`),
	regexp.MustCompile(regexp.QuoteMeta(`value=\"`) + `(\d{1,2}:\d{2})`),
	regexp.MustCompile(regexp.QuoteMeta(`value="`) + `(\d{1,2}:\d{2})`),
}

// ParseValidHours extracts the bookable start times from a raw
// valid-hours response, normalized and sorted ascending. Empty slice
// when nothing matches.
func ParseValidHours(raw string) []string {
	for _, pattern := range validHourPatterns {
		matches := pattern.FindAllStringSubmatch(raw, -1)
		if len(matches) == 0 {
			continue
		}
		seen := make(map[string]bool, len(matches))
		hours := make([]string, 0, len(matches))
		for _, m := range matches {
			h := NormalizeTime(m[1])
			if !seen[h] {
				hours = append(hours, h)
				seen[h] = true
			}
		}
		sort.Strings(hours)
		return hours
	}
	return nil
}

// FilterHalfHours drops a half-hour mark when its following full hour
// is also offered: the portal exposes half-hour starts solely to fill
// gaps in the schedule.
func FilterHalfHours(hours []string) []string {
	offered := make(map[string]bool, len(hours))
	for _, h := range hours {
		offered[h] = true
	}
	out := make([]string, 0, len(hours))
	for _, h := range hours {
		if strings.HasSuffix(h, ":30") {
			hh, err := strconv.Atoi(strings.SplitN(h, ":", 2)[0])
			if err == nil && offered[fmt.Sprintf("%02d:00", hh+1)] {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}
