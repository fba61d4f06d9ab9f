package types

import "time"

// Credentials identify the portal account. Supplied by configuration,
// passed by value, never mutated.
type Credentials struct {
	Email    string
	IDNumber string // national ID, used as the portal password
}

// SessionToken is the pair the portal requires on authenticated calls:
// the anti-forgery token as a form field, the session id as a cookie.
type SessionToken struct {
	AuthenticityToken string
	SessionID         string
}

func (t SessionToken) Valid() bool {
	return t.AuthenticityToken != "" && t.SessionID != ""
}

// TimeSlotQuery describes one availability probe.
type TimeSlotQuery struct {
	UnitID    string
	Date      string  // "2006-01-02"
	StartHour string  // "15:04"
	Duration  float64 // hours: 1, 1.5, 2 or 3
}

// CourtSlot is one bookable court offer decoded from a booking-action
// link. Start/end times are kept exactly as the portal returns them
// (UTC-labelled text, e.g. "2025-12-04 21:00:00 UTC").
type CourtSlot struct {
	CourtNumber int
	CourtID     int
	Duration    float64
	StartTime   string
	EndTime     string
}

type Availability string

const (
	StatusAvailable Availability = "available"
	StatusNoCourts  Availability = "no-courts"
	// StatusReserved means the portal explicitly marked the slot as
	// blocked for a private activity, as opposed to "all courts already
	// taken by other users" which is StatusNoCourts.
	StatusReserved Availability = "reserved"
)

type AvailabilityResult struct {
	Status         Availability
	Courts         []int // sorted ascending, deduplicated
	Slots          []CourtSlot
	SuggestedTimes []string // alternate start times the portal proposed
}

// TimeStatus is one row of a day scan.
type TimeStatus struct {
	Time   string
	Result *AvailabilityResult
	Err    error

	// Range consolidation: a run of two or more consecutive no-courts
	// rows is folded into its first row for display.
	IsRangeStart bool
	RangeEnd     string
}

// Rental is one row of the personal rental history. AllocationID is
// empty once the portal no longer allows cancellation.
type Rental struct {
	Date         string
	ParsedDate   time.Time
	TimeRange    string
	CourtLabel   string
	AllocationID string
}

func (r Rental) Cancellable() bool { return r.AllocationID != "" }
