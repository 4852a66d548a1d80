package ir

// Table is one logical sheet read: header row first, then data rows.
// Cells are raw strings; an absent trailing cell is the same as "".
type Table [][]string

// RawSnapshot is what a source adapter returns for one poll.
//
// Participants is always present. Event is nil when the event state is
// embedded among the participant rows (merged layout). Control is an
// optional secondary table used only for the coherence check.
type RawSnapshot struct {
	Source       string `json:"source"`
	Participants Table  `json:"participants"`
	Event        Table  `json:"event,omitempty"`
	Control      Table  `json:"control,omitempty"`

	// Signature is a source-provided structural signature. When set it is
	// used instead of computing one locally.
	Signature string `json:"signature,omitempty"`
}

// ParticipantRecord is one typed leaderboard row.
// Identity is the trimmed display name and the join key across polls.
type ParticipantRecord struct {
	Identity string `json:"identity"`
	ToPar    *int64 `json:"to_par"`
	Gross    string `json:"gross"`
}

// Equal reports whether two records carry the same identity and values.
func (r ParticipantRecord) Equal(o ParticipantRecord) bool {
	return r.Identity == o.Identity && EqualInt(r.ToPar, o.ToPar) && r.Gross == o.Gross
}

// Clone returns a copy that shares no pointers with r.
func (r ParticipantRecord) Clone() ParticipantRecord {
	r.ToPar = cloneInt(r.ToPar)
	return r
}

// EventState is the single current-state row (hole, par, course).
type EventState struct {
	Progress *int64 `json:"progress"`
	Par      *int64 `json:"par"`
	Label    string `json:"label"`
}

// Equal reports whether all three fields match.
func (e EventState) Equal(o EventState) bool {
	return EqualInt(e.Progress, o.Progress) && EqualInt(e.Par, o.Par) && e.Label == o.Label
}

// IsZero reports whether no field carries a value.
func (e EventState) IsZero() bool {
	return e.Progress == nil && e.Par == nil && e.Label == ""
}

// Candidate is a normalized snapshot proposed for commit in one cycle.
type Candidate struct {
	Source       string              `json:"source"`
	Participants []ParticipantRecord `json:"participants"`
	Event        EventState          `json:"event"`
	Control      *EventState         `json:"control,omitempty"`
	Signature    string              `json:"signature,omitempty"`
}

// Identities returns the candidate's identity set.
func (c Candidate) Identities() map[string]bool {
	set := make(map[string]bool, len(c.Participants))
	for _, p := range c.Participants {
		set[p.Identity] = true
	}
	return set
}

// Pending tracks a proposed value that has not been committed yet.
type Pending[T any] struct {
	Value        T   `json:"value"`
	Observations int `json:"observations"`
}

// Standing is a committed participant with its dense rank.
// Rank is 0 for entries without a numeric score.
type Standing struct {
	ParticipantRecord
	Rank int `json:"rank,omitempty"`
}

// CommittedState is the last externally visible board.
// It is the sole input to rendering and is mutated only by the engine.
type CommittedState struct {
	Seq       int64      `json:"seq"`
	Standings []Standing `json:"standings"`
	Event     EventState `json:"event"`
	Signature string     `json:"signature,omitempty"`
}

// Empty reports whether nothing has been committed yet.
func (s CommittedState) Empty() bool {
	return s.Seq == 0 && len(s.Standings) == 0 && s.Event.IsZero()
}

// Identities returns the committed identity set.
func (s CommittedState) Identities() map[string]bool {
	set := make(map[string]bool, len(s.Standings))
	for _, st := range s.Standings {
		set[st.Identity] = true
	}
	return set
}

// Lookup returns the committed record for identity.
func (s CommittedState) Lookup(identity string) (ParticipantRecord, bool) {
	for _, st := range s.Standings {
		if st.Identity == identity {
			return st.ParticipantRecord, true
		}
	}
	return ParticipantRecord{}, false
}

// Clone returns a deep copy so sinks can never alias engine state.
func (s CommittedState) Clone() CommittedState {
	out := s
	out.Standings = make([]Standing, len(s.Standings))
	for i, st := range s.Standings {
		st.ToPar = cloneInt(st.ToPar)
		out.Standings[i] = st
	}
	out.Event = s.Event.Clone()
	return out
}

// Clone returns a deep copy of the event state.
func (e EventState) Clone() EventState {
	return EventState{Progress: cloneInt(e.Progress), Par: cloneInt(e.Par), Label: e.Label}
}

// Records returns the committed records in standing order.
func (s CommittedState) Records() []ParticipantRecord {
	out := make([]ParticipantRecord, len(s.Standings))
	for i, st := range s.Standings {
		out[i] = st.ParticipantRecord
	}
	return out
}

// Names returns the committed identities in standing order.
func (s CommittedState) Names() []string {
	names := make([]string, len(s.Standings))
	for i, st := range s.Standings {
		names[i] = st.Identity
	}
	return names
}

// Int returns a pointer to n. Convenience for nullable fields.
func Int(n int64) *int64 {
	return &n
}

// EqualInt compares two nullable integers by value.
func EqualInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func cloneInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
