package storage

import (
	"fmt"
	"time"
)

const (
	// KeyAuthToken holds the current anti-forgery token.
	KeyAuthToken = "itec:auth_token"
	// KeySessionID holds the current portal session cookie value.
	KeySessionID = "itec:session_id"
	// KeyPrefixHours is the prefix for cached hour-lists.
	KeyPrefixHours = "itec:hours:"
)

// HoursKey returns the cache key for the hour-list of a unit on a given
// weekday. The portal's opening-hours schedule is weekday-periodic, so
// the calendar date is deliberately not part of the key.
func HoursKey(unitID string, weekday time.Weekday) string {
	return fmt.Sprintf("%s%s:%d", KeyPrefixHours, unitID, int(weekday))
}
