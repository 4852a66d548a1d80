package ir

// Outcome is how one poll cycle ended.
type Outcome string

const (
	// OutcomeCommitted means at least one field or participant was committed.
	OutcomeCommitted Outcome = "committed"

	// OutcomeUnchanged means the candidate matched the committed state.
	OutcomeUnchanged Outcome = "unchanged"

	// OutcomePending means proposals are waiting for more observations.
	OutcomePending Outcome = "pending"

	// OutcomeRejected means the guard refused the candidate.
	OutcomeRejected Outcome = "rejected"

	// OutcomeFailed means no candidate was produced (transport or shape error).
	OutcomeFailed Outcome = "failed"
)

// ChangeKind classifies a committed transition.
type ChangeKind string

const (
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeRemoved ChangeKind = "removed"
	ChangeEvent   ChangeKind = "event"
)

// Change is one transition committed in a cycle.
//
// Participant changes carry Before/After records (Before is nil for an
// addition, After is nil for a removal). An event change carries the
// event state before and after.
type Change struct {
	Kind     ChangeKind         `json:"kind"`
	Identity string             `json:"identity,omitempty"`
	Before   *ParticipantRecord `json:"before,omitempty"`
	After    *ParticipantRecord `json:"after,omitempty"`

	EventBefore *EventState `json:"event_before,omitempty"`
	EventAfter  *EventState `json:"event_after,omitempty"`
}

// Veto records a transition the monotonic rules refused.
// Identity is empty for the event progress counter.
type Veto struct {
	Field     string `json:"field"`
	Identity  string `json:"identity,omitempty"`
	Committed int64  `json:"committed"`
	Candidate int64  `json:"candidate"`
}

// Cycle is the record of one poll cycle: what was read, what the guard
// decided, and what was committed. It is the unit of the cycle log.
type Cycle struct {
	ID           string   `json:"id"`
	Seq          int64    `json:"seq"`
	Source       string   `json:"source"`
	Outcome      Outcome  `json:"outcome"`
	Reason       string   `json:"reason,omitempty"`
	Signature    string   `json:"signature,omitempty"`
	Participants int      `json:"participants"`
	Pending      int      `json:"pending"`
	Changes      []Change `json:"changes,omitempty"`
	Vetoes       []Veto   `json:"vetoes,omitempty"`
}

// Committed reports whether the cycle changed the committed state.
func (c Cycle) Committed() bool {
	return c.Outcome == OutcomeCommitted
}

// ChangeObject renders a change for canonical JSON.
func ChangeObject(ch Change) map[string]any {
	obj := map[string]any{"kind": string(ch.Kind)}
	if ch.Identity != "" {
		obj["identity"] = ch.Identity
	}
	if ch.Before != nil {
		obj["before"] = recordObject(*ch.Before)
	}
	if ch.After != nil {
		obj["after"] = recordObject(*ch.After)
	}
	if ch.EventBefore != nil {
		obj["event_before"] = EventObject(*ch.EventBefore)
	}
	if ch.EventAfter != nil {
		obj["event_after"] = EventObject(*ch.EventAfter)
	}
	return obj
}

// CycleObject renders a cycle for canonical JSON. The cycle ID is left out
// so traces stay stable across runs.
func CycleObject(c Cycle) map[string]any {
	changes := make([]any, len(c.Changes))
	for i, ch := range c.Changes {
		changes[i] = ChangeObject(ch)
	}
	vetoes := make([]any, len(c.Vetoes))
	for i, v := range c.Vetoes {
		vetoes[i] = map[string]any{
			"field":     v.Field,
			"identity":  v.Identity,
			"committed": v.Committed,
			"candidate": v.Candidate,
		}
	}
	return map[string]any{
		"seq":          c.Seq,
		"outcome":      string(c.Outcome),
		"reason":       c.Reason,
		"participants": c.Participants,
		"pending":      c.Pending,
		"changes":      changes,
		"vetoes":       vetoes,
	}
}

func recordObject(r ParticipantRecord) map[string]any {
	return map[string]any{
		"identity": r.Identity,
		"to_par":   r.ToPar,
		"gross":    r.Gross,
	}
}
