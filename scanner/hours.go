package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"itec-bot/parser"
	"itec-bot/session"
	"itec-bot/storage"
	"itec-bot/types"
)

// ValidTimes returns the candidate start times for a unit on a date.
// Entries are cached per (unit, weekday): the portal's opening-hours
// schedule repeats weekly, so a hit for any Tuesday answers every
// Tuesday in the scan horizon. Entries never expire; only ClearCache
// invalidates them.
func (s *Scanner) ValidTimes(ctx context.Context, unitID, date string, creds types.Credentials) ([]string, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", date, err)
	}
	key := storage.HoursKey(unitID, day.Weekday())

	if cached, err := s.store.Get(ctx, key); err == nil && cached != "" {
		var hours []string
		if json.Unmarshal([]byte(cached), &hours) == nil {
			return hours, nil
		}
	}

	raw, err := s.fetchValidHours(ctx, unitID, date, creds)
	if err != nil {
		// A login failure dooms every subsequent probe too; the fallback
		// only papers over network trouble and markup drift.
		var authErr *session.AuthError
		if errors.As(err, &authErr) {
			return nil, err
		}
		s.log.Warnw("valid-hours fetch failed, using opening-hours table", "unit", unitID, "err", err)
		return DefaultHours(day.Weekday()), nil
	}
	hours := parser.FilterHalfHours(parser.ParseValidHours(raw))
	if len(hours) == 0 {
		// Markup drift or an empty fragment. Fall back without caching
		// so the next scan retries the portal.
		s.log.Warnw("no hours parsed, using opening-hours table", "unit", unitID)
		return DefaultHours(day.Weekday()), nil
	}

	if data, err := json.Marshal(hours); err == nil {
		if err := s.store.Set(ctx, key, string(data)); err != nil {
			s.log.Warnw("caching hours failed", "key", key, "err", err)
		}
	}
	return hours, nil
}

func (s *Scanner) fetchValidHours(ctx context.Context, unitID, date string, creds types.Credentials) (string, error) {
	tok, err := s.session.Acquire(ctx, creds)
	if err != nil {
		return "", err
	}
	form := url.Values{}
	form.Set("authenticity_token", tok.AuthenticityToken)
	form.Set("unit_id", unitID)
	form.Set("date", date)
	return s.post(ctx, hoursPath, form, tok)
}

// ClearCache drops every cached hour-list.
func (s *Scanner) ClearCache(ctx context.Context) error {
	return s.store.DelPrefix(ctx, storage.KeyPrefixHours)
}

// DefaultHours is the published opening-hours table, used when the
// portal's own hour-list cannot be read. Start times run hourly from
// opening until one hour before closing.
func DefaultHours(weekday time.Weekday) []string {
	switch weekday {
	case time.Friday:
		return hourly(7, 16)
	case time.Saturday:
		return append(hourly(7, 12), hourly(16, 21)...)
	default: // Sunday through Thursday
		return hourly(8, 22)
	}
}

func hourly(open, close int) []string {
	hours := make([]string, 0, close-open)
	for h := open; h < close; h++ {
		hours = append(hours, fmt.Sprintf("%02d:00", h))
	}
	return hours
}
