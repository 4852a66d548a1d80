package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/steadyboard/internal/ir"
)

// marshalState converts a committed state to canonical JSON TEXT.
// The signature is stored in its own column.
func marshalState(s ir.CommittedState) (string, error) {
	data, err := ir.MarshalCanonical(ir.StateObject(s))
	if err != nil {
		return "", fmt.Errorf("marshal state: %w", err)
	}
	return string(data), nil
}

// unmarshalState parses state JSON TEXT back into a committed state.
func unmarshalState(data, signature string) (ir.CommittedState, error) {
	var s ir.CommittedState
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return ir.CommittedState{}, fmt.Errorf("unmarshal state: %w", err)
	}
	if s.Standings == nil {
		s.Standings = []ir.Standing{}
	}
	s.Signature = signature
	return s, nil
}

// marshalChange converts a change to canonical JSON TEXT.
func marshalChange(ch ir.Change) (string, error) {
	data, err := ir.MarshalCanonical(ir.ChangeObject(ch))
	if err != nil {
		return "", fmt.Errorf("marshal change: %w", err)
	}
	return string(data), nil
}

// unmarshalChange parses change JSON TEXT.
func unmarshalChange(data string) (ir.Change, error) {
	var ch ir.Change
	if err := json.Unmarshal([]byte(data), &ch); err != nil {
		return ir.Change{}, fmt.Errorf("unmarshal change: %w", err)
	}
	return ch, nil
}

// marshalVetoes converts vetoes to canonical JSON TEXT. Empty is "[]".
func marshalVetoes(vetoes []ir.Veto) (string, error) {
	arr := make([]any, len(vetoes))
	for i, v := range vetoes {
		arr[i] = map[string]any{
			"field":     v.Field,
			"identity":  v.Identity,
			"committed": v.Committed,
			"candidate": v.Candidate,
		}
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal vetoes: %w", err)
	}
	return string(data), nil
}

// unmarshalVetoes parses vetoes JSON TEXT. Returns nil for an empty list.
func unmarshalVetoes(data string) ([]ir.Veto, error) {
	var vetoes []ir.Veto
	if err := json.Unmarshal([]byte(data), &vetoes); err != nil {
		return nil, fmt.Errorf("unmarshal vetoes: %w", err)
	}
	if len(vetoes) == 0 {
		return nil, nil
	}
	return vetoes, nil
}
