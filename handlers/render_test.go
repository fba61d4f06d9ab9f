package handlers

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"itec-bot/booking"
	"itec-bot/types"
)

func TestRenderScan(t *testing.T) {
	rows := []types.TimeStatus{
		{Time: "08:00", Result: &types.AvailabilityResult{Status: types.StatusAvailable, Courts: []int{1, 4}}},
		{Time: "09:00", Result: &types.AvailabilityResult{Status: types.StatusNoCourts}, IsRangeStart: true, RangeEnd: "11:00"},
		{Time: "12:00", Result: &types.AvailabilityResult{Status: types.StatusReserved}},
		{Time: "13:00", Err: errors.New("boom")},
	}

	out := renderScan("2025-12-02", rows)
	assert.Contains(t, out, "08:00 ✅ courts 1, 4")
	assert.Contains(t, out, "09:00-11:00 ❌ fully booked")
	assert.Contains(t, out, "12:00 🔒 reserved")
	assert.Contains(t, out, "13:00 ⚠️ check failed")
}

func TestRenderDurations(t *testing.T) {
	out := renderDurations("2025-12-02", "18:00", map[int]float64{4: 2, 1: 1.5})
	assert.Contains(t, out, "court 1: up to 1.5h")
	assert.Contains(t, out, "court 4: up to 2h")
	// courts listed in ascending order
	assert.Less(t, strings.Index(out, "court 1"), strings.Index(out, "court 4"))

	assert.Equal(t, "No court is free at 18:00 on 2025-12-02.",
		renderDurations("2025-12-02", "18:00", nil))
}

func TestRenderRentals(t *testing.T) {
	rentals := []types.Rental{
		{Date: "04/12/2025", TimeRange: "21:00-22:00", CourtLabel: "מגרש 4", AllocationID: "99321"},
		{Date: "01/12/2025", TimeRange: "18:00-19:00", CourtLabel: "מגרש 2"},
	}
	out := renderRentals(rentals)
	assert.Contains(t, out, "/cancelrental 99321")
	assert.Contains(t, out, "01/12/2025 18:00-19:00 — מגרש 2\n")

	assert.Equal(t, "No rentals on record.", renderRentals(nil))
}

func TestRenderProgress(t *testing.T) {
	assert.Equal(t, "🔍 Search submitted",
		renderProgress(booking.ProgressEvent{Phase: booking.PhaseSearchSubmitted}))
	assert.Equal(t, "✅ reservation confirmed",
		renderProgress(booking.ProgressEvent{Phase: booking.PhaseVerified, Message: "reservation confirmed"}))
	assert.Equal(t, "❌ Booking failed: boom",
		renderProgress(booking.ProgressEvent{Phase: booking.PhaseAborted, Err: errors.New("boom")}))
}
