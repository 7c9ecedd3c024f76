package join

// State tracks a join attempt through its lifecycle. Terminal states are
// StateSuccess and StateFailed; StateAwaitingCallback holds until the
// merchant's out-of-band callback arrives, potentially forever.
type State int

const (
	StateNotStarted State = iota
	StateOutboundSent
	StateSyncComplete
	StateAwaitingCallback
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateOutboundSent:
		return "OUTBOUND_SENT"
	case StateSyncComplete:
		return "SYNC_COMPLETE"
	case StateAwaitingCallback:
		return "AWAITING_CALLBACK"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Outcome is the consent-confirmation value. OutcomePending is only ever an
// interim report while a callback is outstanding, never a terminal one.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
)
