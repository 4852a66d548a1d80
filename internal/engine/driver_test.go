package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/normalize"
)

// scriptSource replays a fixed list of reads, repeating the last one.
type scriptSource struct {
	mu    sync.Mutex
	reads []scriptRead
	calls int
	delay time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

type scriptRead struct {
	table ir.Table
	err   error
}

func (s *scriptSource) Name() string { return "script" }

func (s *scriptSource) Fetch(ctx context.Context) (ir.RawSnapshot, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		m := s.maxActive.Load()
		if n <= m || s.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return ir.RawSnapshot{}, ctx.Err()
		case <-time.After(s.delay):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.reads)-1)
	s.calls++
	r := s.reads[i]
	return ir.RawSnapshot{Participants: r.table}, r.err
}

type recordingSink struct {
	mu     sync.Mutex
	states []ir.CommittedState
	err    error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Render(_ context.Context, state ir.CommittedState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, state)
	return s.err
}

type memoryJournal struct {
	cycles []ir.Cycle
}

func (j *memoryJournal) RecordCycle(_ context.Context, c ir.Cycle, _ ir.CommittedState) error {
	j.cycles = append(j.cycles, c)
	return nil
}

type countingMetrics struct {
	cycles       atomic.Int32
	skipped      atomic.Int32
	disagreed    atomic.Int32
	renderFailed atomic.Int32
}

func (m *countingMetrics) CycleCompleted(ir.Cycle, time.Duration) { m.cycles.Add(1) }
func (m *countingMetrics) TickSkipped()                           { m.skipped.Add(1) }
func (m *countingMetrics) RenderFailed(string)                    { m.renderFailed.Add(1) }
func (m *countingMetrics) ConfirmationChecked(agreed bool) {
	if !agreed {
		m.disagreed.Add(1)
	}
}

func board(rows ...[]string) ir.Table {
	return append(ir.Table{{"name", "to_par", "gross"}}, rows...)
}

func newTestDriver(t *testing.T, src Source, cfg DriverConfig, opts ...DriverOption) *Driver {
	t.Helper()
	e := newTestEngine(t, nil)
	return NewDriver(e, src, normalize.New(nil), cfg, opts...)
}

func TestDriver_RunOnce(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{
		{table: board([]string{"Kim", "-2", "70"}, []string{"Lee", "E", "72"})},
	}}
	sink := &recordingSink{}
	journal := &memoryJournal{}
	d := newTestDriver(t, src, DriverConfig{},
		WithSinks(sink),
		WithJournal(journal),
		WithCycleIDs(NewFixedGenerator("cycle-1")))

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "cycle-1", cycle.ID)
	assert.Equal(t, int64(1), cycle.Seq)
	assert.Equal(t, "script", cycle.Source)
	assert.Equal(t, ir.OutcomeCommitted, cycle.Outcome)

	require.Len(t, sink.states, 1)
	assert.Equal(t, []string{"Kim", "Lee"}, sink.states[0].Names())
	require.Len(t, journal.cycles, 1)
	assert.Equal(t, "cycle-1", journal.cycles[0].ID)
}

func TestDriver_FailedReadRerendersPriorState(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{
		{table: board([]string{"Kim", "-2", "70"})},
		{err: ir.NewTransportError("script", "GET failed", errors.New("503"))},
		{table: ir.Table{{"who?"}, {"x"}}},
	}}
	sink := &recordingSink{}
	metrics := &countingMetrics{}
	d := newTestDriver(t, src, DriverConfig{}, WithSinks(sink), WithMetrics(metrics))
	ctx := context.Background()

	_, err := d.RunOnce(ctx)
	require.NoError(t, err)

	cycle, err := d.RunOnce(ctx)
	assert.True(t, ir.IsTransportError(err))
	assert.Equal(t, ir.OutcomeFailed, cycle.Outcome)
	assert.Equal(t, "transport", cycle.Reason)

	cycle, err = d.RunOnce(ctx)
	assert.True(t, ir.IsShapeError(err))
	assert.Equal(t, "shape", cycle.Reason)

	require.Len(t, sink.states, 3, "every cycle renders")
	for _, s := range sink.states {
		assert.Equal(t, []string{"Kim"}, s.Names())
		assert.Equal(t, int64(1), s.Seq)
	}
	assert.Equal(t, int32(3), metrics.cycles.Load())
}

func TestDriver_GuardRejectionIsReturned(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{{table: board()}}}
	d := newTestDriver(t, src, DriverConfig{})

	cycle, err := d.RunOnce(context.Background())
	assert.True(t, ir.IsGuardRejection(err))
	assert.Equal(t, ir.OutcomeRejected, cycle.Outcome)
}

func TestDriver_ConfirmationUsesLaterRead(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{
		{table: board([]string{"Kim", "-1", ""})},
		{table: board([]string{"Kim", "-3", ""})},
	}}
	metrics := &countingMetrics{}
	d := newTestDriver(t, src, DriverConfig{ConfirmDelay: time.Millisecond}, WithMetrics(metrics))

	_, err := d.RunOnce(context.Background())
	require.NoError(t, err)

	r, ok := d.engine.State().Lookup("Kim")
	require.True(t, ok)
	assert.Equal(t, ir.Int(-3), r.ToPar)
	assert.Equal(t, int32(1), metrics.disagreed.Load())
	assert.Equal(t, 2, src.calls)
}

func TestDriver_RenderFailureDoesNotFailCycle(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{{table: board([]string{"Kim", "0", ""})}}}
	metrics := &countingMetrics{}
	sink := &recordingSink{err: errors.New("disk full")}
	d := newTestDriver(t, src, DriverConfig{}, WithSinks(sink), WithMetrics(metrics))

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.OutcomeCommitted, cycle.Outcome)
	assert.Equal(t, int32(1), metrics.renderFailed.Load())
}

func TestDriver_ResumedClock(t *testing.T) {
	src := &scriptSource{reads: []scriptRead{{table: board([]string{"Kim", "0", ""})}}}
	d := newTestDriver(t, src, DriverConfig{}, WithClock(NewClockAt(41)))

	cycle, err := d.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), cycle.Seq)
}

func TestDriver_Run_SkipsTicksWhileInFlight(t *testing.T) {
	src := &scriptSource{
		reads: []scriptRead{{table: board([]string{"Kim", "0", ""})}},
		delay: 40 * time.Millisecond,
	}
	metrics := &countingMetrics{}
	d := newTestDriver(t, src, DriverConfig{Interval: 5 * time.Millisecond}, WithMetrics(metrics))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, int32(1), src.maxActive.Load(), "reads never overlap")
	assert.Greater(t, metrics.skipped.Load(), int32(0))
	assert.GreaterOrEqual(t, metrics.cycles.Load(), int32(1))
}
