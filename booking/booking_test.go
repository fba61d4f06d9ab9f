package booking

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"itec-bot/types"
)

func TestVerifyOutcome(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{
			"success phrase",
			`<div id="step_4"><p>ההזמנה בוצעה בהצלחה</p></div>`,
			nil,
		},
		{
			"success alert class",
			`<div id="step_4"><div class="alert-success">ok</div></div>`,
			nil,
		},
		{
			"danger alert",
			`<div id="step_4"><div class="alert-danger">bad</div></div>`,
			ErrRejected,
		},
		{
			// a failure marker on the page wins even next to a success one
			"failure beats success",
			`<div class="alert-danger">שגיאה</div><p>בוצעה בהצלחה</p>`,
			ErrRejected,
		},
		{
			"hebrew failure text",
			`<div id="step_4">לא ניתן להשלים את ההזמנה</div>`,
			ErrRejected,
		},
		{
			"no marker at all",
			`<div id="step_4"><p>something unexpected</p></div>`,
			ErrInconclusive,
		},
		{"empty", "", ErrInconclusive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyOutcome(tt.content)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestBookRejectsConcurrentAttempt(t *testing.T) {
	r := New(nil, "http://example.invalid", true, zap.NewNop().Sugar())

	// simulate an attempt already holding the wizard
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.Book(context.Background(), Request{}, types.Credentials{}, nil)
	require.ErrorIs(t, err, ErrInFlight)
}

func TestStepErrorWrapsCause(t *testing.T) {
	e := &StepError{Step: PhaseCourtSelected, Err: ErrInconclusive}
	assert.ErrorIs(t, e, ErrInconclusive)
	assert.Contains(t, e.Error(), string(PhaseCourtSelected))
}
