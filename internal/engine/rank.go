package engine

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/steadyboard/internal/ir"
)

// DefaultCollation is the language used to order tied names.
const DefaultCollation = "en"

// Ranker orders committed records and assigns dense ranks.
//
// Order: ascending score to par, entries without a score last. Ties (and
// all unscored entries) are ordered by name with a locale-aware collator,
// falling back to byte order so the result is total.
//
// Thread-safety: a Ranker is NOT safe for concurrent use; the collator
// keeps internal buffers. The engine owns one per instance.
type Ranker struct {
	collator *collate.Collator
}

// NewRanker creates a ranker collating names per the BCP 47 tag.
// An empty tag means DefaultCollation.
func NewRanker(tag string) (*Ranker, error) {
	if tag == "" {
		tag = DefaultCollation
	}
	lang, err := language.Parse(tag)
	if err != nil {
		return nil, fmt.Errorf("invalid collation %q: %w", tag, err)
	}
	return &Ranker{collator: collate.New(lang)}, nil
}

// Rank returns standings in display order.
//
// Equal consecutive scores share a rank and the next distinct score gets
// the following integer (1, 1, 2, 3). Entries without a score get rank 0.
// The input slice is not modified.
func (r *Ranker) Rank(records []ir.ParticipantRecord) []ir.Standing {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, r.compare)

	out := make([]ir.Standing, len(sorted))
	rank := 0
	var prev *int64
	for i, rec := range sorted {
		st := ir.Standing{ParticipantRecord: rec.Clone()}
		if rec.ToPar != nil {
			if prev == nil || *rec.ToPar != *prev {
				rank++
				prev = rec.ToPar
			}
			st.Rank = rank
		}
		out[i] = st
	}
	return out
}

func (r *Ranker) compare(a, b ir.ParticipantRecord) int {
	switch {
	case a.ToPar == nil && b.ToPar == nil:
		return r.compareNames(a.Identity, b.Identity)
	case a.ToPar == nil:
		return 1
	case b.ToPar == nil:
		return -1
	}
	if c := cmp.Compare(*a.ToPar, *b.ToPar); c != 0 {
		return c
	}
	return r.compareNames(a.Identity, b.Identity)
}

func (r *Ranker) compareNames(a, b string) int {
	if c := r.collator.CompareString(a, b); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
