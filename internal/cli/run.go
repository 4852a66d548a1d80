package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/steadyboard/internal/config"
	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/render"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database  string
	Interval  time.Duration
	Listen    string
	BoardFile string
	Print     bool
	NoResume  bool

	// Source overrides the configured adapter (for testing).
	Source engine.Source
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the sheet and keep the board stable",
		Long: `Start the poll loop.

Every interval the configured source is read, normalized and reconciled
against the committed board. Committed boards are rendered to every
configured sink and every cycle is journaled to the SQLite cycle log.
On restart the last committed board is restored from the log.

Example:
  steadyboard run -c board.yaml
  steadyboard run -c board.yaml --listen :8080 --print
  steadyboard run -c board.yaml --db /var/lib/steadyboard.db --no-resume`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "cycle log path (overrides store.path)")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "poll interval (overrides poll.interval)")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "serve the board over HTTP on this address (overrides render.listen)")
	cmd.Flags().StringVar(&opts.BoardFile, "board-file", "", "write board JSON here (overrides render.file)")
	cmd.Flags().BoolVar(&opts.Print, "print", false, "print the board to stdout after every cycle")
	cmd.Flags().BoolVar(&opts.NoResume, "no-resume", false, "start from an empty board instead of the last committed one")

	return cmd
}

// applyRunFlags layers command-line overrides on the loaded config.
func applyRunFlags(cfg *config.Config, opts *RunOptions) {
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.Interval > 0 {
		cfg.Poll.Interval = opts.Interval
	}
	if opts.Listen != "" {
		cfg.Render.Listen = opts.Listen
	}
	if opts.BoardFile != "" {
		cfg.Render.File = opts.BoardFile
	}
}

func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	applyRunFlags(&cfg, opts)
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, "invalid config", err)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var sinks []engine.Sink
	if opts.Print {
		sinks = append(sinks, render.NewTextSink(cmd.OutOrStdout(), cfg.Render.DefaultLabel))
	}

	p, err := buildPipeline(ctx, cfg, pipelineOptions{
		Source:  opts.Source,
		Journal: true,
		Resume:  !opts.NoResume,
		Serve:   true,
		Sinks:   sinks,
		Logger:  logger,
	}, f)
	if err != nil {
		return err
	}
	defer p.Close()

	logger.Info("steadyboard starting",
		"source", cfg.Source.Kind,
		"db", cfg.Store.Path,
		"resumed", p.resumed)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.driver.Run(gctx)
	})
	if p.server != nil {
		g.Go(func() error {
			return p.server.Serve(gctx, cfg.Render.Listen)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return f.Fail(ExitFailure, ErrCodeGeneric, "poll loop stopped", err)
	}

	logger.Info("steadyboard stopped gracefully", "seq", p.engine.State().Seq)
	if f.JSON() {
		return f.Success(map[string]any{"seq": p.engine.State().Seq})
	}
	fmt.Fprintln(f.ErrWriter, "Stopped.")
	return nil
}
