package setup

// State is an immutable snapshot of every phase record seen so far.
// Apply returns a new State and never mutates the receiver.
type State struct {
	records map[Phase]Progress
}

// NewState returns the empty state used at session start.
func NewState() State {
	return State{}
}

// Get returns the record for a phase and whether one has been received.
func (s State) Get(p Phase) (Progress, bool) {
	r, ok := s.records[p]
	return r, ok
}

// Has reports whether any record has been received for the phase.
func (s State) Has(p Phase) bool {
	_, ok := s.records[p]
	return ok
}

// IsComplete reports whether the phase has completed. Missing phases are
// not complete.
func (s State) IsComplete(p Phase) bool {
	return s.records[p].IsComplete
}

// Apply folds one update into the state.
//
// Within a phase progress never decreases and completion never reverts. An
// update that is not complete arriving after completion is stale and ignored.
func (s State) Apply(u Update) State {
	phase := u.Phase()
	incoming := u.Payload
	incoming.PhaseTitle = phase
	incoming.Progress = clampProgress(incoming.Progress)
	incoming.TitleParams = cloneParams(incoming.TitleParams)

	prev, seen := s.records[phase]
	if seen {
		if prev.IsComplete && !incoming.IsComplete {
			return s
		}
		if incoming.Progress < prev.Progress {
			incoming.Progress = prev.Progress
		}
		incoming.IsComplete = incoming.IsComplete || prev.IsComplete
	}

	next := make(map[Phase]Progress, len(s.records)+1)
	for k, v := range s.records {
		next[k] = v
	}
	next[phase] = incoming
	return State{records: next}
}

// cascadeRule shows Show once After has completed and Show has started
// reporting.
type cascadeRule struct {
	After Phase
	Show  Phase
}

// cascade is evaluated top to bottom; the first satisfied rule wins. Phases
// run Core, Node, Hardware, then Unknown, and the earliest incomplete phase
// is displayed so a later phase reporting early cannot cause flicker.
var cascade = []cascadeRule{
	{After: PhaseHardware, Show: PhaseUnknown},
	{After: PhaseNode, Show: PhaseHardware},
	{After: PhaseCore, Show: PhaseNode},
}

// defaultPhase is displayed when no rule matches, even with no record.
const defaultPhase = PhaseCore

// Current returns the phase that should be displayed.
func (s State) Current() Phase {
	for _, r := range cascade {
		if s.IsComplete(r.After) && s.Has(r.Show) {
			return r.Show
		}
	}
	return defaultPhase
}

// Displayed returns the record for Current. A phase without a record yields
// a zero record tagged with the phase.
func (s State) Displayed() Progress {
	p := s.Current()
	if r, ok := s.records[p]; ok {
		return r
	}
	return Progress{PhaseTitle: p}
}

// Complete reports whether every listed phase has completed. With no
// arguments RequiredPhases is used.
func (s State) Complete(phases ...Phase) bool {
	if len(phases) == 0 {
		phases = RequiredPhases
	}
	for _, p := range phases {
		if !s.IsComplete(p) {
			return false
		}
	}
	return true
}

// Overall returns the mean progress of RequiredPhases. Completed phases
// count as MaxProgress.
func (s State) Overall() float64 {
	var sum float64
	for _, p := range RequiredPhases {
		r := s.records[p]
		if r.IsComplete {
			sum += MaxProgress
			continue
		}
		sum += r.Progress
	}
	return sum / float64(len(RequiredPhases))
}

// Records returns a copy of every record, keyed by phase.
func (s State) Records() map[Phase]Progress {
	out := make(map[Phase]Progress, len(s.records))
	for k, v := range s.records {
		out[k] = v
	}
	return out
}
