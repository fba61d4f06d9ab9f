package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"itec-bot/types"
)

func wrapFragment(escaped string) string {
	return `$("#court_search_results").html("` + escaped + `");`
}

func TestExtractFragmentReversesEscaping(t *testing.T) {
	raw := wrapFragment(`<div class=\"panel\">\n  <a href=\"\/reserve\">book<\/a>\n<\/div>`)
	want := `<div class="panel">  <a href="/reserve">book</a></div>`
	assert.Equal(t, want, ExtractFragment(raw))
}

func TestExtractFragmentIgnoresTrailingStatements(t *testing.T) {
	// the injection is often followed by further scripted statements;
	// their argument lists must not drag the terminator rightward
	raw := `$("#court_search_results").html("<div>בחר מגרש<\/div>");$("#court_search_notice").show("slow")`
	assert.Equal(t, `<div>בחר מגרש</div>`, ExtractFragment(raw))
}

func TestExtractFragmentSkipsEscapedCloser(t *testing.T) {
	raw := wrapFragment(`<a onclick=\"track(\"x\")\">book<\/a>`)
	assert.Equal(t, `<a onclick="track("x")">book</a>`, ExtractFragment(raw))
}

func TestExtractFragmentMissingPattern(t *testing.T) {
	assert.Equal(t, "", ExtractFragment("<html><body>plain page</body></html>"))
	assert.Equal(t, "", ExtractFragment(""))
	assert.Equal(t, "", ExtractFragment(`.html("never closed`))
}

func TestClassifyAvailability(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		want     types.Availability
	}{
		{"empty input", "", types.StatusAvailable},
		{"success marker", "<div>בחר מגרש</div>", types.StatusAvailable},
		{
			// the success marker wins over every other marker present
			"success marker beats no-court phrase",
			"<div>בחר מגרש</div><p>לא נמצאו מגרשים</p>",
			types.StatusAvailable,
		},
		{"explicit no-courts marker", "<div>אין מגרשים פנויים</div>", types.StatusNoCourts},
		{"no-court phrase", "<p>לא נמצאו תוצאות</p>", types.StatusNoCourts},
		{"alternate phrase", "<p>אנא בחר מועד אחר</p>", types.StatusNoCourts},
		{"reserved marker", "<div>השעות שמורות לפעילות פרטית</div>", types.StatusReserved},
		{"unrecognized markup", "<div>something else entirely</div>", types.StatusAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAvailability(tt.fragment))
			// total and idempotent: same input, same answer
			assert.Equal(t, tt.want, ClassifyAvailability(tt.fragment))
		})
	}
}

func TestExtractCourtSlots(t *testing.T) {
	fragment := `<div class="row">מגרש: 4 <a class="btn" href="/court_searches/reserve?court_id=112&amp;duration=1.0&amp;end_time=2025-12-04+22%3A00%3A00+UTC&amp;start_time=2025-12-04+21%3A00%3A00+UTC">הזמן</a></div>`

	slots := ExtractCourtSlots(fragment)
	require.Len(t, slots, 1)
	assert.Equal(t, types.CourtSlot{
		CourtNumber: 4,
		CourtID:     112,
		Duration:    1.0,
		StartTime:   "2025-12-04 21:00:00 UTC",
		EndTime:     "2025-12-04 22:00:00 UTC",
	}, slots[0])
}

func TestExtractCourtSlotsMultipleRows(t *testing.T) {
	fragment := `
		<tr>מגרש: 2 <td><span class="label"></span></td><a href="/reserve?court_id=58&amp;duration=1.5&amp;end_time=2025-11-20+19%3A30%3A00+UTC&amp;start_time=2025-11-20+18%3A00%3A00+UTC">book</a></tr>
		<tr>מגרש: 7 <a href="/reserve?court_id=63&amp;duration=1.5&amp;end_time=2025-11-20+19%3A30%3A00+UTC&amp;start_time=2025-11-20+18%3A00%3A00+UTC">book</a></tr>
		<tr>מגרש: 9 (no link in this row)</tr>`

	slots := ExtractCourtSlots(fragment)
	require.Len(t, slots, 2)
	assert.Equal(t, 2, slots[0].CourtNumber)
	assert.Equal(t, 58, slots[0].CourtID)
	assert.Equal(t, 7, slots[1].CourtNumber)
	assert.Equal(t, 63, slots[1].CourtID)
}

func TestExtractSuggestedTimes(t *testing.T) {
	fragment := `
		<h4>18:00-19:00</h4>
		<h4>20:00-21:00</h4>
		<h4>18:00-19:30</h4>
		<h5>9:00-10:00</h5>`

	assert.Equal(t, []string{"18:00", "20:00", "09:00"}, ExtractSuggestedTimes(fragment))
}

func TestExtractSuggestedTimesNone(t *testing.T) {
	assert.Empty(t, ExtractSuggestedTimes("<div>אין מגרשים פנויים</div>"))
}

func TestParseAvailabilityAvailable(t *testing.T) {
	raw := wrapFragment(`<div>בחר מגרש<\/div><div>מגרש: 4 <a href=\"\/court_searches\/reserve?court_id=112&amp;duration=1.0&amp;end_time=2025-12-04+22%3A00%3A00+UTC&amp;start_time=2025-12-04+21%3A00%3A00+UTC\">הזמן<\/a><\/div>`)

	res := ParseAvailability(raw)
	assert.Equal(t, types.StatusAvailable, res.Status)
	assert.Equal(t, []int{4}, res.Courts)
	require.Len(t, res.Slots, 1)
	assert.Equal(t, "2025-12-04 21:00:00 UTC", res.Slots[0].StartTime)
	assert.Empty(t, res.SuggestedTimes)
}

func TestParseAvailabilityCourtsSortedUnique(t *testing.T) {
	raw := wrapFragment(`בחר מגרש` +
		`<div>מגרש: 9 <a href=\"\/r?court_id=3&amp;duration=1.0&amp;end_time=e&amp;start_time=s\">x<\/a><\/div>` +
		`<div>מגרש: 2 <a href=\"\/r?court_id=1&amp;duration=1.0&amp;end_time=e&amp;start_time=s\">x<\/a><\/div>` +
		`<div>מגרש: 9 <a href=\"\/r?court_id=3&amp;duration=1.0&amp;end_time=e&amp;start_time=s\">x<\/a><\/div>`)

	res := ParseAvailability(raw)
	assert.Equal(t, types.StatusAvailable, res.Status)
	assert.Equal(t, []int{2, 9}, res.Courts)
}

func TestParseAvailabilityDowngradesEmptySuccess(t *testing.T) {
	// classifier says available but no court rows were extracted:
	// everything is taken by other users, not a real offer
	raw := wrapFragment(`<div>בחר מגרש<\/div><p>nothing bookable here<\/p>`)

	res := ParseAvailability(raw)
	assert.Equal(t, types.StatusNoCourts, res.Status)
	assert.Empty(t, res.Courts)
	assert.Empty(t, res.Slots)
}

func TestParseAvailabilityNoCourtsWithSuggestions(t *testing.T) {
	raw := wrapFragment(`<div>אין מגרשים פנויים<\/div><h4>19:00-20:00<\/h4><h4>21:00-22:00<\/h4>`)

	res := ParseAvailability(raw)
	assert.Equal(t, types.StatusNoCourts, res.Status)
	assert.Equal(t, []string{"19:00", "21:00"}, res.SuggestedTimes)
}

func TestParseAvailabilityUnparseableResponse(t *testing.T) {
	res := ParseAvailability("<html>totally different page</html>")
	assert.Equal(t, types.StatusNoCourts, res.Status)
	assert.Empty(t, res.Slots)
}

func TestNormalizeTime(t *testing.T) {
	assert.Equal(t, "08:00", NormalizeTime("8:00"))
	assert.Equal(t, "08:05", NormalizeTime("8:5"))
	assert.Equal(t, "18:00", NormalizeTime("18:00"))
	assert.Equal(t, "nonsense", NormalizeTime("nonsense"))
}
