package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/roach88/steadyboard/internal/ir"
)

// Source reads one raw snapshot per call.
// Implementations retry transport failures internally and return a shape
// error for partial or ambiguous reads.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (ir.RawSnapshot, error)
}

// Normalizer turns a raw snapshot into a candidate.
type Normalizer interface {
	Normalize(raw ir.RawSnapshot) (ir.Candidate, error)
}

// Sink renders the committed state. It receives its own deep copy.
type Sink interface {
	Name() string
	Render(ctx context.Context, state ir.CommittedState) error
}

// Journal persists each cycle and, for committed cycles, the new state.
type Journal interface {
	RecordCycle(ctx context.Context, cycle ir.Cycle, state ir.CommittedState) error
}

// Metrics observes the loop. All methods must be cheap and non-blocking.
type Metrics interface {
	CycleCompleted(cycle ir.Cycle, elapsed time.Duration)
	TickSkipped()
	ConfirmationChecked(agreed bool)
	RenderFailed(sink string)
}

// DriverConfig holds the loop timing.
type DriverConfig struct {
	// Interval between polls.
	Interval time.Duration

	// ConfirmDelay enables the double-read check when positive: a second
	// read is taken this long after the first and goes forward instead.
	ConfirmDelay time.Duration
}

// DefaultInterval is the poll interval when none is configured.
const DefaultInterval = 5 * time.Second

// Driver runs the poll loop around an Engine.
type Driver struct {
	engine     *Engine
	source     Source
	normalizer Normalizer
	sinks      []Sink
	journal    Journal
	metrics    Metrics
	clock      *Clock
	ids        CycleIDGenerator
	cfg        DriverConfig
	logger     *slog.Logger

	inFlight atomic.Bool
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithSinks adds render sinks, rendered in order after every cycle.
func WithSinks(sinks ...Sink) DriverOption {
	return func(d *Driver) {
		d.sinks = append(d.sinks, sinks...)
	}
}

// WithJournal sets the cycle journal (normally the SQLite store).
func WithJournal(j Journal) DriverOption {
	return func(d *Driver) {
		d.journal = j
	}
}

// WithMetrics sets the metrics observer.
func WithMetrics(m Metrics) DriverOption {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithClock sets the cycle clock, e.g. NewClockAt(lastSeq) on resume.
func WithClock(c *Clock) DriverOption {
	return func(d *Driver) {
		d.clock = c
	}
}

// WithCycleIDs sets the cycle ID generator. Default: UUIDv7Generator.
func WithCycleIDs(g CycleIDGenerator) DriverOption {
	return func(d *Driver) {
		d.ids = g
	}
}

// WithDriverLogger sets the logger. Default: slog.Default().
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver creates a driver reading from src through n into e.
func NewDriver(e *Engine, src Source, n Normalizer, cfg DriverConfig, opts ...DriverOption) *Driver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	d := &Driver{
		engine:     e,
		source:     src,
		normalizer: n,
		metrics:    noopMetrics{},
		clock:      NewClock(),
		ids:        UUIDv7Generator{},
		cfg:        cfg,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// readResult is what a worker hands back to the loop.
type readResult struct {
	id      string
	seq     int64
	started time.Time
	cand    ir.Candidate
	err     error
}

// Run polls until ctx is cancelled. The first poll starts immediately.
//
// Only the Run goroutine mutates engine state; reads run in a worker and
// report back over a channel. Run returns ctx.Err() on shutdown.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("driver starting",
		"source", d.source.Name(),
		"interval", d.cfg.Interval,
		"confirm_delay", d.cfg.ConfirmDelay)

	// Capacity 1 with at most one read in flight: the worker never blocks.
	results := make(chan readResult, 1)
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	d.startRead(ctx, results)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("driver stopping: context cancelled")
			return ctx.Err()

		case <-ticker.C:
			if !d.startRead(ctx, results) {
				d.logger.Debug("tick skipped: cycle in flight")
				d.metrics.TickSkipped()
			}

		case res := <-results:
			if ctx.Err() == nil {
				d.apply(ctx, res)
			}
			d.inFlight.Store(false)
		}
	}
}

// RunOnce performs one full cycle synchronously and returns its record.
// The error is the cycle's failure or guard rejection, if any; the cycle
// has already been journaled and rendered either way.
func (d *Driver) RunOnce(ctx context.Context) (ir.Cycle, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return ir.Cycle{}, errors.New("a cycle is already in flight")
	}
	defer d.inFlight.Store(false)

	res := d.read(ctx, d.ids.Generate(), d.clock.Next())
	return d.apply(ctx, res)
}

func (d *Driver) startRead(ctx context.Context, results chan<- readResult) bool {
	if !d.inFlight.CompareAndSwap(false, true) {
		return false
	}
	id, seq := d.ids.Generate(), d.clock.Next()
	go func() {
		results <- d.read(ctx, id, seq)
	}()
	return true
}

// read fetches and normalizes, with the confirmation re-read when enabled.
// It touches no engine state besides the stateless Confirm.
func (d *Driver) read(ctx context.Context, id string, seq int64) readResult {
	res := readResult{id: id, seq: seq, started: time.Now()}

	first, err := d.fetch(ctx)
	if err != nil || d.cfg.ConfirmDelay <= 0 {
		res.cand, res.err = first, err
		return res
	}

	timer := time.NewTimer(d.cfg.ConfirmDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		res.err = ctx.Err()
		return res
	case <-timer.C:
	}

	second, err := d.fetch(ctx)
	if err != nil {
		res.err = fmt.Errorf("confirmation read: %w", err)
		return res
	}

	cand, agreed, err := d.engine.Confirm(first, second)
	if err != nil {
		res.err = err
		return res
	}
	d.metrics.ConfirmationChecked(agreed)
	if !agreed {
		d.logger.Info("confirmation reads disagree, using later read", "cycle", id, "seq", seq)
	}
	res.cand = cand
	return res
}

func (d *Driver) fetch(ctx context.Context) (ir.Candidate, error) {
	raw, err := d.source.Fetch(ctx)
	if err != nil {
		return ir.Candidate{}, err
	}
	if raw.Source == "" {
		raw.Source = d.source.Name()
	}
	return d.normalizer.Normalize(raw)
}

// apply runs on the loop goroutine: reconcile, journal, render.
func (d *Driver) apply(ctx context.Context, res readResult) (ir.Cycle, error) {
	var (
		cycle ir.Cycle
		err   error
	)

	if res.err != nil {
		err = res.err
		cycle = ir.Cycle{
			Seq:     res.seq,
			Source:  d.source.Name(),
			Outcome: ir.OutcomeFailed,
			Reason:  failureReason(err),
			Pending: d.engine.PendingCount(),
		}
		d.logger.Warn("cycle failed", "cycle", res.id, "seq", res.seq, "error", err)
	} else {
		cycle, err = d.engine.Reconcile(res.seq, res.cand)
		switch {
		case ir.IsGuardRejection(err):
			d.logger.Info("candidate rejected", "cycle", res.id, "seq", res.seq, "reason", cycle.Reason)
		case err != nil:
			d.logger.Warn("cycle failed", "cycle", res.id, "seq", res.seq, "error", err)
		default:
			d.logger.Debug("cycle complete",
				"cycle", res.id,
				"seq", res.seq,
				"outcome", cycle.Outcome,
				"changes", len(cycle.Changes),
				"pending", cycle.Pending)
		}
	}
	cycle.ID = res.id

	state := d.engine.State()
	if d.journal != nil {
		if jerr := d.journal.RecordCycle(ctx, cycle, state); jerr != nil {
			d.logger.Error("failed to record cycle", "cycle", res.id, "seq", res.seq, "error", jerr)
		}
	}

	d.metrics.CycleCompleted(cycle, time.Since(res.started))
	d.render(ctx, state)
	return cycle, err
}

// render pushes the committed state to every sink. Rendering happens after
// every cycle so a sink that missed an update catches up.
func (d *Driver) render(ctx context.Context, state ir.CommittedState) {
	for _, s := range d.sinks {
		if err := s.Render(ctx, state.Clone()); err != nil {
			d.metrics.RenderFailed(s.Name())
			d.logger.Warn("render failed", "sink", s.Name(), "error", err)
		}
	}
}

func failureReason(err error) string {
	if code := ir.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return "error"
}

type noopMetrics struct{}

func (noopMetrics) CycleCompleted(ir.Cycle, time.Duration) {}
func (noopMetrics) TickSkipped()                           {}
func (noopMetrics) ConfirmationChecked(bool)               {}
func (noopMetrics) RenderFailed(string)                    {}
