package handlers

import (
	"fmt"
	"sort"
	"strings"

	"itec-bot/booking"
	"itec-bot/types"
)

func renderScan(date string, rows []types.TimeStatus) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎾 %s\n\n", date)
	for _, row := range rows {
		switch {
		case row.Err != nil:
			fmt.Fprintf(&b, "%s ⚠️ check failed\n", row.Time)
		case row.IsRangeStart:
			fmt.Fprintf(&b, "%s-%s ❌ fully booked\n", row.Time, row.RangeEnd)
		case row.Result.Status == types.StatusReserved:
			fmt.Fprintf(&b, "%s 🔒 reserved for private activity\n", row.Time)
		case row.Result.Status == types.StatusNoCourts:
			fmt.Fprintf(&b, "%s ❌ fully booked\n", row.Time)
		default:
			fmt.Fprintf(&b, "%s ✅ courts %s\n", row.Time, joinInts(row.Result.Courts))
		}
	}
	return b.String()
}

func renderDurations(date, hour string, byCourt map[int]float64) string {
	if len(byCourt) == 0 {
		return fmt.Sprintf("No court is free at %s on %s.", hour, date)
	}
	courts := make([]int, 0, len(byCourt))
	for c := range byCourt {
		courts = append(courts, c)
	}
	sort.Ints(courts)

	var b strings.Builder
	fmt.Fprintf(&b, "⏱ %s %s\n\n", date, hour)
	for _, c := range courts {
		fmt.Fprintf(&b, "court %d: up to %s\n", c, formatHours(byCourt[c]))
	}
	return b.String()
}

func renderRentals(rentals []types.Rental) string {
	if len(rentals) == 0 {
		return "No rentals on record."
	}
	var b strings.Builder
	b.WriteString("📋 Your rentals:\n\n")
	for _, r := range rentals {
		fmt.Fprintf(&b, "%s %s — %s", r.Date, r.TimeRange, r.CourtLabel)
		if r.Cancellable() {
			fmt.Fprintf(&b, " (cancel: /cancelrental %s)", r.AllocationID)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderProgress(ev booking.ProgressEvent) string {
	switch ev.Phase {
	case booking.PhaseSearchSubmitted:
		return "🔍 Search submitted"
	case booking.PhaseCourtSelected:
		return "🎾 Court selected"
	case booking.PhaseOrderConfirmed:
		return "📝 Order confirmed"
	case booking.PhaseVerified:
		return "✅ " + ev.Message
	case booking.PhaseAborted:
		return "❌ Booking failed: " + ev.Err.Error()
	default:
		return string(ev.Phase)
	}
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

func formatHours(h float64) string {
	if h == float64(int(h)) {
		return fmt.Sprintf("%dh", int(h))
	}
	return fmt.Sprintf("%.1fh", h)
}
