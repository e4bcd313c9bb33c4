package traverse

// RunState folds a stream of slots, arriving in non-increasing order, into the longest run of slots without a gap
// greater than one. A zero PreviousSlot means nothing was observed yet.
//
// The length of a run is the distance between its first and last slot. A run only competes for BestRunLength once
// a gap closes it, so the run in progress when the stream ends is not counted unless Flush is called.
type RunState struct {
	PreviousSlot        uint64
	CurrentRunStartSlot uint64
	BestRunLength       uint64
	BestRunStartSlot    uint64
	Count               uint64
}

// Observe returns the state after seeing slot.
func (s RunState) Observe(slot uint64) RunState {
	gap := s.PreviousSlot > slot && s.PreviousSlot-slot > 1

	if gap && s.currentRunLength() > s.BestRunLength {
		s.BestRunLength = s.currentRunLength()
		s.BestRunStartSlot = s.PreviousSlot
	}

	if s.PreviousSlot == 0 || gap {
		s.CurrentRunStartSlot = slot
	}

	s.PreviousSlot = slot
	s.Count++
	return s
}

// Flush returns the state with the run in progress compared against the best run.
func (s RunState) Flush() RunState {
	if s.Count == 0 {
		return s
	}
	if s.currentRunLength() > s.BestRunLength {
		s.BestRunLength = s.currentRunLength()
		s.BestRunStartSlot = s.PreviousSlot
	}
	return s
}

// currentRunLength is zero for out-of-order input, where the run start lies below the previous slot.
func (s RunState) currentRunLength() uint64 {
	if s.CurrentRunStartSlot < s.PreviousSlot {
		return 0
	}
	return s.CurrentRunStartSlot - s.PreviousSlot
}
