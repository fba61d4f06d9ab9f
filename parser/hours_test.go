package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValidHoursPlain(t *testing.T) {
	raw := `<select><option value="8:00">8:00</option><option value="09:00">09:00</option></select>`
	assert.Equal(t, []string{"08:00", "09:00"}, ParseValidHours(raw))
}

func TestParseValidHoursSinglyEscaped(t *testing.T) {
	raw := `$("#court_search_hour").html("<option value=\"10:00\">10:00<\/option><option value=\"11:00\">11:00<\/option>");`
	assert.Equal(t, []string{"10:00", "11:00"}, ParseValidHours(raw))
}

func TestParseValidHoursDoublyEscaped(t *testing.T) {
	raw := `{"html":"<option value=\\\"16:00\\\">16:00<\\/option><option value=\\\"17:00\\\">17:00<\\/option>"}`
	assert.Equal(t, []string{"16:00", "17:00"}, ParseValidHours(raw))
}

func TestParseValidHoursFirstMatchingEncodingWins(t *testing.T) {
	// a doubly-escaped payload that also happens to contain a plain
	// value attribute elsewhere: the doubly-escaped pattern matched
	// first, so only its hours are returned
	raw := `<input value="07:00">` + `payload: value=\\\"12:00\\\"`
	assert.Equal(t, []string{"12:00"}, ParseValidHours(raw))
}

func TestParseValidHoursSortedDeduplicated(t *testing.T) {
	raw := `value="9:00" value="8:00" value="9:00"`
	assert.Equal(t, []string{"08:00", "09:00"}, ParseValidHours(raw))
}

func TestParseValidHoursNoMatch(t *testing.T) {
	assert.Empty(t, ParseValidHours("<div>no options here</div>"))
}

func TestFilterHalfHours(t *testing.T) {
	tests := []struct {
		name  string
		hours []string
		want  []string
	}{
		{
			"half hour dropped when following full hour offered",
			[]string{"08:00", "08:30", "09:00"},
			[]string{"08:00", "09:00"},
		},
		{
			"half hour kept when no following full hour",
			[]string{"08:00", "08:30"},
			[]string{"08:00", "08:30"},
		},
		{
			"full hours untouched",
			[]string{"08:00", "09:00", "10:00"},
			[]string{"08:00", "09:00", "10:00"},
		},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterHalfHours(tt.hours))
		})
	}
}
