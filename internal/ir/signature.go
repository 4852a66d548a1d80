package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// Domain prefixes for content-addressed signatures.
// Version suffix enables future algorithm migration.
const (
	DomainSnapshot  = "steadyboard/snapshot/v1"
	DomainCommitted = "steadyboard/committed/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CandidateSignature computes the structural signature of a candidate:
// the (identity, score, gross) tuple of every participant followed by the
// event fields. Participants are ordered by identity so that a re-sorted
// sheet with identical content yields the same signature.
//
// A source-provided signature takes precedence.
func CandidateSignature(c Candidate) (string, error) {
	if c.Signature != "" {
		return c.Signature, nil
	}
	return signRecords(DomainSnapshot, c.Participants, c.Event)
}

// StateSignature computes the signature of a committed state. Rank is
// derived data and is not part of it.
func StateSignature(s CommittedState) (string, error) {
	return signRecords(DomainCommitted, s.Records(), s.Event)
}

func signRecords(domain string, records []ParticipantRecord, ev EventState) (string, error) {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b ParticipantRecord) int {
		return strings.Compare(a.Identity, b.Identity)
	})

	rows := make([]any, len(sorted))
	for i, r := range sorted {
		rows[i] = []any{r.Identity, r.ToPar, r.Gross}
	}
	obj := map[string]any{
		"participants": rows,
		"event":        EventObject(ev),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("signature: failed to marshal: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// EventObject converts an event state to a canonical-JSON friendly map.
func EventObject(ev EventState) map[string]any {
	return map[string]any{
		"progress": ev.Progress,
		"par":      ev.Par,
		"label":    ev.Label,
	}
}

// StateObject converts a committed state to a canonical-JSON friendly map.
// Used for persistence and golden traces.
func StateObject(s CommittedState) map[string]any {
	standings := make([]any, len(s.Standings))
	for i, st := range s.Standings {
		standings[i] = map[string]any{
			"identity": st.Identity,
			"to_par":   st.ToPar,
			"gross":    st.Gross,
			"rank":     st.Rank,
		}
	}
	return map[string]any{
		"seq":       s.Seq,
		"standings": standings,
		"event":     EventObject(s.Event),
	}
}

// MustCandidateSignature is like CandidateSignature but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCandidateSignature(c Candidate) string {
	sig, err := CandidateSignature(c)
	if err != nil {
		panic(err)
	}
	return sig
}
