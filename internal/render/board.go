package render

import (
	"strconv"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/score"
)

// Board is the viewer-facing form of the committed state.
type Board struct {
	Seq   int64  `json:"seq"`
	Hole  string `json:"hole"`
	Par   string `json:"par"`
	Label string `json:"label"`
	Rows  []Row  `json:"rows"`
}

// Row is one formatted standing.
type Row struct {
	Rank     string `json:"rank"`
	Identity string `json:"identity"`
	ToPar    string `json:"to_par"`
	Gross    string `json:"gross"`
}

// NewBoard formats s. Header parts the sheet never supplied stay blank,
// except the label which falls back to defaultLabel.
func NewBoard(s ir.CommittedState, defaultLabel string) Board {
	b := Board{
		Seq:   s.Seq,
		Label: s.Event.Label,
		Rows:  make([]Row, 0, len(s.Standings)),
	}
	if s.Event.Progress != nil {
		b.Hole = strconv.FormatInt(*s.Event.Progress, 10)
	}
	if s.Event.Par != nil {
		b.Par = "PAR " + strconv.FormatInt(*s.Event.Par, 10)
	}
	if b.Label == "" {
		b.Label = defaultLabel
	}

	for _, st := range s.Standings {
		row := Row{
			Identity: st.Identity,
			ToPar:    score.FormatToPar(st.ToPar),
			Gross:    st.Gross,
		}
		if st.Rank > 0 {
			row.Rank = strconv.Itoa(st.Rank)
		}
		b.Rows = append(b.Rows, row)
	}
	return b
}

// Header returns the non-empty header parts in display order.
func (b Board) Header() []string {
	var parts []string
	for _, p := range []string{b.Hole, b.Par, b.Label} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
