package cli

import (
	"context"
	"log/slog"

	"github.com/roach88/steadyboard/internal/config"
	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/metrics"
	"github.com/roach88/steadyboard/internal/normalize"
	"github.com/roach88/steadyboard/internal/render"
	"github.com/roach88/steadyboard/internal/source"
	"github.com/roach88/steadyboard/internal/store"
)

// pipeline is a fully wired poll loop.
type pipeline struct {
	engine  *engine.Engine
	driver  *engine.Driver
	metrics *metrics.Metrics
	store   *store.Store   // nil when journaling is off
	server  *render.Server // nil unless render.listen is set
	resumed bool
}

// pipelineOptions are the per-command knobs on top of the config.
type pipelineOptions struct {
	// Source replaces the configured adapter (for testing).
	Source engine.Source

	// Journal opens cfg.Store.Path and records every cycle.
	Journal bool

	// Resume restores the last committed state from the journal.
	Resume bool

	// Serve builds the HTTP sink when render.listen is set.
	Serve bool

	Sinks  []engine.Sink
	Logger *slog.Logger
}

// buildPipeline wires config into a driver. Failures come back as
// ExitErrors already reported through f.
func buildPipeline(ctx context.Context, cfg config.Config, po pipelineOptions, f *OutputFormatter) (*pipeline, error) {
	logger := po.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &pipeline{metrics: metrics.New()}
	clock := engine.NewClock()
	engineOpts := []engine.Option{engine.WithLogger(logger)}

	if po.Journal {
		f.VerboseLog("Opening cycle log %s", cfg.Store.Path)
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open cycle log", err)
		}
		p.store = st

		// Sequence numbers continue past the journal even without
		// --resume: cycles are keyed by seq.
		last, err := st.LastSeq(ctx)
		if err != nil {
			p.Close()
			return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to read cycle log", err)
		}
		clock = engine.NewClockAt(last)

		if po.Resume {
			state, ok, err := st.LoadState(ctx)
			if err != nil {
				p.Close()
				return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to restore state", err)
			}
			if ok {
				engineOpts = append(engineOpts, engine.WithState(state))
				p.resumed = true
				logger.Info("restored committed state",
					"seq", state.Seq,
					"participants", len(state.Standings))
			}
		}
	}

	eng, err := engine.New(cfg.Engine, engineOpts...)
	if err != nil {
		p.Close()
		return nil, f.Fail(ExitFailure, ErrCodeConfig, "invalid engine config", err)
	}
	p.engine = eng

	src := po.Source
	if src == nil {
		src, err = source.New(ctx, cfg.Source,
			source.WithLogger(logger),
			source.WithRetryObserver(p.metrics.FetchRetried))
		if err != nil {
			p.Close()
			return nil, f.Fail(ExitCommandError, ErrCodeSource, "failed to build source", err)
		}
	}

	sinks := append([]engine.Sink(nil), po.Sinks...)
	if cfg.Render.File != "" {
		sinks = append(sinks, render.NewFileSink(cfg.Render.File, cfg.Render.DefaultLabel))
	}
	if po.Serve && cfg.Render.Listen != "" {
		p.server = render.NewServer(cfg.Render.DefaultLabel,
			render.WithMetricsHandler(p.metrics.Handler()),
			render.WithServerLogger(logger))
		sinks = append(sinks, p.server)
	}

	driverOpts := []engine.DriverOption{
		engine.WithSinks(sinks...),
		engine.WithMetrics(p.metrics),
		engine.WithClock(clock),
		engine.WithDriverLogger(logger),
	}
	if p.store != nil {
		driverOpts = append(driverOpts, engine.WithJournal(p.store))
	}

	p.driver = engine.NewDriver(eng, src, normalize.New(cfg.NormalizeSynonyms()), cfg.Poll, driverOpts...)
	return p, nil
}

// Close releases the journal.
func (p *pipeline) Close() {
	if p.store == nil {
		return
	}
	if err := p.store.Close(); err != nil {
		slog.Error("error closing cycle log", "error", err)
	}
	p.store = nil
}
