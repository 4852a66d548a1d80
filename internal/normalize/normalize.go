// Package normalize maps raw header-first tables onto the canonical
// participant and event-state records.
//
// Header resolution goes through a declarative synonym table consulted once
// per table. Rows without an identity are dropped silently. When the event
// state is embedded in the participant rows, each event field is chosen by
// majority vote across rows.
package normalize

import (
	"fmt"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/score"
)

// Normalizer converts raw snapshots into candidates.
// It holds no per-poll state and is safe for concurrent use.
type Normalizer struct {
	synonyms Synonyms
}

// New creates a Normalizer. A nil synonym table means DefaultSynonyms.
func New(synonyms Synonyms) *Normalizer {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	return &Normalizer{synonyms: synonyms}
}

// Normalize converts one raw snapshot into a candidate.
//
// A participant table with a header but no resolvable identity column is a
// shape error: the read is ambiguous, not merely empty. A table with no
// rows at all yields an empty candidate, which the guard rejects.
func (n *Normalizer) Normalize(raw ir.RawSnapshot) (ir.Candidate, error) {
	cand := ir.Candidate{
		Source:       raw.Source,
		Participants: []ir.ParticipantRecord{},
		Signature:    raw.Signature,
	}

	if len(raw.Participants) == 0 {
		return cand, nil
	}

	cols := n.synonyms.resolve(raw.Participants[0])
	if !cols.has(FieldIdentity) {
		return ir.Candidate{}, ir.NewShapeError(raw.Source,
			fmt.Sprintf("participant header has no identity column: %q", raw.Participants[0]))
	}

	rows := raw.Participants[1:]
	cand.Participants = participants(cols, rows)

	if raw.Event != nil {
		ev, err := n.eventTable(raw.Source, "event", raw.Event)
		if err != nil {
			return ir.Candidate{}, err
		}
		cand.Event = ev
	} else {
		cand.Event = majorityEvent(cols, rows)
	}

	if raw.Control != nil {
		ctl, err := n.eventTable(raw.Source, "control", raw.Control)
		if err != nil {
			return ir.Candidate{}, err
		}
		cand.Control = &ctl
	}

	return cand, nil
}

// participants builds records in first-seen order. Duplicate identities
// collapse to the last row's values.
func participants(cols columns, rows [][]string) []ir.ParticipantRecord {
	out := make([]ir.ParticipantRecord, 0, len(rows))
	seen := make(map[string]int, len(rows))

	for _, row := range rows {
		identity := cols.cell(row, FieldIdentity)
		if identity == "" {
			continue
		}
		rec := ir.ParticipantRecord{
			Identity: identity,
			ToPar:    score.ParseToPar(cols.cell(row, FieldToPar)),
			Gross:    cols.cell(row, FieldGross),
		}
		if i, dup := seen[identity]; dup {
			out[i] = rec
			continue
		}
		seen[identity] = len(out)
		out = append(out, rec)
	}
	return out
}

// eventTable reads a dedicated event-state table: header plus first row.
// A header-only table is a valid read with no observation.
func (n *Normalizer) eventTable(source, name string, t ir.Table) (ir.EventState, error) {
	if len(t) == 0 {
		return ir.EventState{}, nil
	}
	cols := n.synonyms.resolve(t[0])
	if !cols.has(FieldProgress) && !cols.has(FieldPar) && !cols.has(FieldLabel) {
		return ir.EventState{}, ir.NewShapeError(source,
			fmt.Sprintf("%s header has no event columns: %q", name, t[0]))
	}
	if len(t) < 2 {
		return ir.EventState{}, nil
	}
	row := t[1]
	return ir.EventState{
		Progress: score.ParseInteger(cols.cell(row, FieldProgress)),
		Par:      score.ParseInteger(cols.cell(row, FieldPar)),
		Label:    cols.cell(row, FieldLabel),
	}, nil
}
