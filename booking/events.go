package booking

// Phase names one stage of the reservation wizard. The runner walks
// them strictly in order; Verified and Aborted are terminal.
type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseSearchSubmitted Phase = "search-submitted"
	PhaseCourtSelected   Phase = "court-selected"
	PhaseOrderConfirmed  Phase = "order-confirmed"
	PhaseVerified        Phase = "verified"
	PhaseAborted         Phase = "aborted"
)

// ProgressEvent is emitted once per phase transition. The state machine
// itself performs no user-facing notification; whoever drives a booking
// subscribes with an Observer and renders these as it sees fit.
type ProgressEvent struct {
	Phase   Phase
	Message string
	Err     error
}

type Observer func(ProgressEvent)
