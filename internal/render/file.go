package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"

	"github.com/roach88/steadyboard/internal/ir"
)

// FileSink replaces a JSON board file on every cycle. Readers never see a
// partially written file.
type FileSink struct {
	path         string
	defaultLabel string
}

// NewFileSink creates a FileSink writing to path.
func NewFileSink(path, defaultLabel string) *FileSink {
	return &FileSink{path: path, defaultLabel: defaultLabel}
}

// Name implements engine.Sink.
func (s *FileSink) Name() string { return "file" }

// Render implements engine.Sink.
func (s *FileSink) Render(_ context.Context, state ir.CommittedState) error {
	data, err := json.MarshalIndent(NewBoard(state, s.defaultLabel), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal board: %w", err)
	}
	data = append(data, '\n')

	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	return nil
}
