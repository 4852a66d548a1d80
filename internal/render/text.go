package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/width"

	"github.com/roach88/steadyboard/internal/ir"
)

// WriteText writes b as an aligned plain-text table.
func WriteText(w io.Writer, b Board) error {
	var sb strings.Builder

	if h := b.Header(); len(h) > 0 {
		sb.WriteString(strings.Join(h, "  "))
		sb.WriteByte('\n')
	}

	header := Row{Rank: "#", Identity: "NAME", ToPar: "SPT", Gross: "GS"}
	rows := append([]Row{header}, b.Rows...)

	var rankW, nameW, scoreW int
	for _, r := range rows {
		rankW = max(rankW, displayWidth(r.Rank))
		nameW = max(nameW, displayWidth(r.Identity))
		scoreW = max(scoreW, displayWidth(r.ToPar))
	}

	for _, r := range rows {
		line := padLeft(r.Rank, rankW) + "  " +
			padRight(r.Identity, nameW) + "  " +
			padLeft(r.ToPar, scoreW) + "  " +
			r.Gross
		sb.WriteString(strings.TrimRight(line, " "))
		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// displayWidth counts terminal cells: wide and fullwidth runes take two.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func padRight(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func padLeft(s string, w int) string {
	if d := w - displayWidth(s); d > 0 {
		return strings.Repeat(" ", d) + s
	}
	return s
}

// TextSink writes the full board to w on every cycle.
type TextSink struct {
	mu           sync.Mutex
	w            io.Writer
	defaultLabel string
}

// NewTextSink creates a TextSink.
func NewTextSink(w io.Writer, defaultLabel string) *TextSink {
	return &TextSink{w: w, defaultLabel: defaultLabel}
}

// Name implements engine.Sink.
func (s *TextSink) Name() string { return "text" }

// Render implements engine.Sink.
func (s *TextSink) Render(_ context.Context, state ir.CommittedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteText(s.w, NewBoard(state, s.defaultLabel)); err != nil {
		return fmt.Errorf("write board: %w", err)
	}
	return nil
}
