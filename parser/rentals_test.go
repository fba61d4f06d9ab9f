package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rentalsPage = `
<html><body>
<table class="table">
  <tr><th>תאריך</th><th>שעות</th><th>מגרש</th><th></th></tr>
  <tr>
    <td>04/12/2025</td>
    <td>21:00-22:00</td>
    <td>מגרש 4 (חוץ)</td>
    <td><a href="/allocations/cancel?allocation_id=99321">ביטול</a></td>
  </tr>
  <tr>
    <td>01/12/2025</td>
    <td>18:00-19:00</td>
    <td>מגרש 2 (אולם)</td>
    <td></td>
  </tr>
</table>
</body></html>`

func TestParseRentalHistory(t *testing.T) {
	rentals := ParseRentalHistory(rentalsPage)
	require.Len(t, rentals, 2)

	assert.Equal(t, "04/12/2025", rentals[0].Date)
	assert.Equal(t, time.Date(2025, 12, 4, 0, 0, 0, 0, time.UTC), rentals[0].ParsedDate)
	assert.Equal(t, "21:00-22:00", rentals[0].TimeRange)
	assert.Equal(t, "מגרש 4 (חוץ)", rentals[0].CourtLabel)
	assert.Equal(t, "99321", rentals[0].AllocationID)
	assert.True(t, rentals[0].Cancellable())

	// no cancellation link: too close to start time to cancel
	assert.Equal(t, "01/12/2025", rentals[1].Date)
	assert.Empty(t, rentals[1].AllocationID)
	assert.False(t, rentals[1].Cancellable())
}

func TestParseRentalHistoryEmptyPage(t *testing.T) {
	assert.Empty(t, ParseRentalHistory("<html><body>no table</body></html>"))
	assert.Empty(t, ParseRentalHistory(""))
}
