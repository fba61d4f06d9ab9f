// Package parser turns the portal's raw HTML and scripted-HTML
// payloads into typed results. Every function here is pure: no I/O,
// deterministic on identical input, and "not found" comes back as an
// empty value rather than an error so a markup change degrades to
// "no data" instead of crashing a scan.
package parser

import (
	"html"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"itec-bot/types"
)

// The search endpoint answers with a JavaScript statement that injects
// the result fragment into the page as an escaped string literal:
//
//	$("#court_search_results").html("<div class=\"panel\">...<\/div>");
const (
	fragmentOpen  = `.html("`
	fragmentClose = `")`
)

// Textual markers the portal renders inside result fragments. The
// markup around them drifts; the phrases themselves have been stable.
const (
	markerChooseCourt = "בחר מגרש"           // success: court list rendered
	markerNoCourts    = "אין מגרשים פנויים"  // explicit "no free courts"
	markerReserved    = "שמורות לפעילות פרטית" // slot blocked for private use
)

var noCourtPhrases = []string{
	"לא נמצאו מגרשים",
	"לא נמצאו תוצאות",
	"אנא בחר מועד אחר",
}

// ExtractFragment recovers the literal HTML from a scripted-injection
// response. Returns "" when the pattern is absent; callers must treat
// that as "could not parse", not as a legitimately empty fragment.
func ExtractFragment(raw string) string {
	start := strings.Index(raw, fragmentOpen)
	if start < 0 {
		return ""
	}
	rest := raw[start+len(fragmentOpen):]
	end := closeIndex(rest)
	if end < 0 {
		return ""
	}
	frag := rest[:end]
	frag = strings.ReplaceAll(frag, `\n`, "")
	frag = strings.ReplaceAll(frag, `\"`, `"`)
	frag = strings.ReplaceAll(frag, `\/`, "/")
	return frag
}

// closeIndex finds the first unescaped `")`. Every quote inside the
// string literal arrives escaped, so an unescaped one terminates it;
// a later `")` belongs to whatever statement follows the injection.
func closeIndex(s string) int {
	from := 0
	for {
		idx := strings.Index(s[from:], fragmentClose)
		if idx < 0 {
			return -1
		}
		pos := from + idx
		if pos == 0 || s[pos-1] != '\\' {
			return pos
		}
		from = pos + 1
	}
}

// ClassifyAvailability is total: every input maps to exactly one
// status. A fragment carrying the success marker is never no-courts,
// whatever else it contains; the reserved marker is only honoured in
// its absence.
func ClassifyAvailability(fragment string) types.Availability {
	if strings.Contains(fragment, markerChooseCourt) {
		return types.StatusAvailable
	}
	if strings.Contains(fragment, markerReserved) {
		return types.StatusReserved
	}
	if strings.Contains(fragment, markerNoCourts) {
		return types.StatusNoCourts
	}
	for _, phrase := range noCourtPhrases {
		if strings.Contains(fragment, phrase) {
			return types.StatusNoCourts
		}
	}
	return types.StatusAvailable
}

var (
	courtNumberRe = regexp.MustCompile(`מגרש:\s*(\d+)`)
	bookingLinkRe = regexp.MustCompile(`href="([^"]*court_id=[^"]*)"`)
)

// ExtractCourtSlots scans the fragment for court rows: a court-number
// marker followed, within the same row, by a booking-action link whose
// query string carries court_id, duration, end_time and start_time.
func ExtractCourtSlots(fragment string) []types.CourtSlot {
	marks := courtNumberRe.FindAllStringSubmatchIndex(fragment, -1)
	slots := make([]types.CourtSlot, 0, len(marks))
	for i, mark := range marks {
		rowEnd := len(fragment)
		if i+1 < len(marks) {
			rowEnd = marks[i+1][0]
		}
		row := fragment[mark[0]:rowEnd]
		number, err := strconv.Atoi(fragment[mark[2]:mark[3]])
		if err != nil {
			continue
		}
		link := bookingLinkRe.FindStringSubmatch(row)
		if link == nil {
			continue
		}
		slot, ok := decodeBookingLink(link[1])
		if !ok {
			continue
		}
		slot.CourtNumber = number
		slots = append(slots, slot)
	}
	return slots
}

// decodeBookingLink unescapes the href's HTML entities and decodes its
// query string. Times arrive percent-encoded with "+" standing for a
// literal space, which url.ParseQuery already honours.
func decodeBookingLink(href string) (types.CourtSlot, bool) {
	u, err := url.Parse(html.UnescapeString(href))
	if err != nil {
		return types.CourtSlot{}, false
	}
	q := u.Query()
	if q.Get("court_id") == "" || q.Get("start_time") == "" {
		return types.CourtSlot{}, false
	}
	courtID, err := strconv.Atoi(q.Get("court_id"))
	if err != nil {
		return types.CourtSlot{}, false
	}
	duration, err := strconv.ParseFloat(q.Get("duration"), 64)
	if err != nil {
		return types.CourtSlot{}, false
	}
	return types.CourtSlot{
		CourtID:   courtID,
		Duration:  duration,
		StartTime: q.Get("start_time"),
		EndTime:   q.Get("end_time"),
	}, true
}

var (
	headingRe   = regexp.MustCompile(`(?s)<h[1-6][^>]*>(.*?)</h[1-6]>`)
	timeRangeRe = regexp.MustCompile(`(\d{1,2}:\d{2})-\d{1,2}:\d{2}`)
)

// ExtractSuggestedTimes pulls the start times out of the alternative
// time ranges ("HH:MM-HH:MM") the portal renders inside headings when
// the requested slot is taken. First-seen order, deduplicated.
func ExtractSuggestedTimes(fragment string) []string {
	var times []string
	seen := make(map[string]bool)
	for _, heading := range headingRe.FindAllStringSubmatch(fragment, -1) {
		for _, rng := range timeRangeRe.FindAllStringSubmatch(heading[1], -1) {
			start := NormalizeTime(rng[1])
			if !seen[start] {
				times = append(times, start)
				seen[start] = true
			}
		}
	}
	return times
}

// ParseAvailability composes fragment extraction, classification and
// slot extraction into one AvailabilityResult. A fragment that
// classifies as available but yields zero court rows is downgraded to
// no-courts: everything is already booked by other users, and the
// classifier's optimism was markup noise.
func ParseAvailability(raw string) types.AvailabilityResult {
	fragment := ExtractFragment(raw)
	status := ClassifyAvailability(fragment)

	if status != types.StatusAvailable {
		res := types.AvailabilityResult{Status: status}
		if suggested := ExtractSuggestedTimes(fragment); len(suggested) > 0 {
			res.SuggestedTimes = suggested
		}
		return res
	}

	slots := ExtractCourtSlots(fragment)
	if len(slots) == 0 {
		res := types.AvailabilityResult{Status: types.StatusNoCourts}
		if suggested := ExtractSuggestedTimes(fragment); len(suggested) > 0 {
			res.SuggestedTimes = suggested
		}
		return res
	}

	return types.AvailabilityResult{
		Status: types.StatusAvailable,
		Courts: courtNumbers(slots),
		Slots:  slots,
	}
}

func courtNumbers(slots []types.CourtSlot) []int {
	seen := make(map[int]bool)
	courts := make([]int, 0, len(slots))
	for _, s := range slots {
		if !seen[s.CourtNumber] {
			courts = append(courts, s.CourtNumber)
			seen[s.CourtNumber] = true
		}
	}
	sort.Ints(courts)
	return courts
}

// NormalizeTime pads "8:00" to "08:00" so lexicographic order matches
// time-of-day order.
func NormalizeTime(t string) string {
	parts := strings.SplitN(t, ":", 2)
	if len(parts) != 2 {
		return t
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	if len(parts[1]) == 1 {
		parts[1] = "0" + parts[1]
	}
	return parts[0] + ":" + parts[1]
}
