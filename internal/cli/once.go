package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/render"
)

// OnceOptions holds flags for the once command.
type OnceOptions struct {
	*RootOptions
	Database string

	// Source overrides the configured adapter (for testing).
	Source engine.Source
}

// OnceResult is the JSON payload of the once command.
type OnceResult struct {
	Cycle ir.Cycle     `json:"cycle"`
	Board render.Board `json:"board"`
}

// NewOnceCommand creates the once command.
func NewOnceCommand(rootOpts *RootOptions) *cobra.Command {
	return newOnceCommand(&OnceOptions{RootOptions: rootOpts})
}

func newOnceCommand(opts *OnceOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single poll cycle and print the board",
		Long: `Read the source once, reconcile, and print the resulting board.

Without --db the cycle starts from an empty board, so the read is
committed as-is once it passes the guard. With --db the last committed
board is restored first and the cycle is journaled.

Exit codes:
  0 - Cycle completed (committed, pending or unchanged)
  1 - Cycle failed or the guard rejected the read
  2 - Command error (config unreadable, store won't open, etc.)`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal the cycle to this cycle log and resume from it")

	return cmd
}

func runOnce(opts *OnceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	journal := opts.Database != ""
	if journal {
		cfg.Store.Path = opts.Database
	}
	if err := cfg.Validate(); err != nil {
		return f.Fail(ExitFailure, ErrCodeConfig, "invalid config", err)
	}

	ctx := cmd.Context()
	p, err := buildPipeline(ctx, cfg, pipelineOptions{
		Source:  opts.Source,
		Journal: journal,
		Resume:  journal,
		Logger:  logger,
	}, f)
	if err != nil {
		return err
	}
	defer p.Close()

	cycle, cycleErr := p.driver.RunOnce(ctx)
	board := render.NewBoard(p.engine.State(), cfg.Render.DefaultLabel)

	if f.JSON() {
		if cycleErr != nil {
			return f.Fail(ExitFailure, ErrCodeCycleFailed, cycleMessage(cycle), cycleErr)
		}
		return f.Success(OnceResult{Cycle: cycle, Board: board})
	}

	if err := render.WriteText(f.Writer, board); err != nil {
		return WrapExitError(ExitCommandError, "failed to write board", err)
	}
	fmt.Fprintln(f.ErrWriter, cycleMessage(cycle))
	if cycleErr != nil {
		return WrapExitError(ExitFailure, cycleMessage(cycle), cycleErr)
	}
	return nil
}

// cycleMessage summarizes a cycle in one line.
func cycleMessage(c ir.Cycle) string {
	msg := fmt.Sprintf("cycle %d: %s", c.Seq, c.Outcome)
	if c.Reason != "" {
		msg += " (" + c.Reason + ")"
	}
	if n := len(c.Changes); n > 0 {
		msg += fmt.Sprintf(", %d change(s)", n)
	}
	if c.Pending > 0 {
		msg += fmt.Sprintf(", %d pending", c.Pending)
	}
	return msg
}
