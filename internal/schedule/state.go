package schedule

// State enumerates the schedule request lifecycle on the controller
// side. Exactly one run view drives a coordinator, so at most one
// non-ready state exists per run at a time.
type State string

const (
	// StateReady accepts a new submission.
	StateReady State = "ready"
	// StateRequesting has a submit round trip in flight.
	StateRequesting State = "requesting"
	// StateWaiting counts down the pre-schedule delay.
	StateWaiting State = "waiting"
	// StateScheduling polls the backend until a terminal status.
	StateScheduling State = "scheduling"
	// StateAborting has an abort round trip in flight.
	StateAborting State = "aborting"
)

func (s State) String() string {
	return string(s)
}

// Active reports whether a submission is somewhere between submit and
// terminal outcome.
func (s State) Active() bool {
	return s != StateReady
}

// Abortable reports whether Abort is a valid transition from s.
func (s State) Abortable() bool {
	return s == StateWaiting || s == StateScheduling
}
