package schedule

// singleFlight is a capacity-1 semaphore guaranteeing at most one
// in-flight operation of a kind at a time. Acquisition never blocks:
// a tick that finds the slot taken is coalesced, not queued.
type singleFlight struct {
	slot chan struct{}
}

func newSingleFlight() *singleFlight {
	return &singleFlight{slot: make(chan struct{}, 1)}
}

// TryAcquire claims the slot if it is free.
func (f *singleFlight) TryAcquire() bool {
	select {
	case f.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the slot. Releasing an unheld slot panics, which
// would indicate a paired-call bug.
func (f *singleFlight) Release() {
	select {
	case <-f.slot:
	default:
		panic("schedule: release of unheld single-flight slot")
	}
}

// InFlight reports whether the slot is currently held.
func (f *singleFlight) InFlight() bool {
	return len(f.slot) == 1
}
