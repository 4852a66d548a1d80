package cli

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/score"
	"github.com/roach88/steadyboard/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Limit    int
	Outcome  string
	Identity string
}

var validOutcomes = []ir.Outcome{
	ir.OutcomeCommitted,
	ir.OutcomeUnchanged,
	ir.OutcomePending,
	ir.OutcomeRejected,
	ir.OutcomeFailed,
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled poll cycles",
		Long: `Read poll cycles back from the cycle log, oldest first.

Examples:
  steadyboard history --limit 20
  steadyboard history --outcome rejected
  steadyboard history --identity "Kim" --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "cycle log path (overrides store.path)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 50, "show only the most recent N cycles (0 for all)")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "only cycles with this outcome")
	cmd.Flags().StringVar(&opts.Identity, "identity", "", "only cycles that committed a change for this participant")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Limit < 0 {
		return f.Fail(ExitCommandError, ErrCodeGeneric, "--limit must not be negative", nil)
	}
	outcome := ir.Outcome(opts.Outcome)
	if outcome != "" && !slices.Contains(validOutcomes, outcome) {
		return f.Fail(ExitCommandError, ErrCodeGeneric,
			fmt.Sprintf("invalid outcome %q: must be one of %v", opts.Outcome, validOutcomes), nil)
	}

	path := opts.Database
	if path == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
		}
		path = cfg.Store.Path
	}

	// store.Open creates missing files; history must not.
	if _, err := os.Stat(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("cycle log not found: %s", path), err)
	}

	st, err := store.Open(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to open cycle log", err)
	}
	defer st.Close()

	cycles, err := st.ReadCycles(cmd.Context(), store.CycleFilter{
		Limit:    opts.Limit,
		Outcome:  outcome,
		Identity: opts.Identity,
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "failed to read cycles", err)
	}
	f.VerboseLog("Read %d cycle(s) from %s", len(cycles), path)

	if f.JSON() {
		return f.Success(map[string]any{"cycles": cycles, "count": len(cycles)})
	}
	writeHistory(f.Writer, cycles)
	return nil
}

// writeHistory prints one line per cycle, then its changes indented.
func writeHistory(w io.Writer, cycles []ir.Cycle) {
	if len(cycles) == 0 {
		fmt.Fprintln(w, "No cycles recorded.")
		return
	}
	for _, c := range cycles {
		fmt.Fprintln(w, cycleMessage(c))
		for _, ch := range c.Changes {
			fmt.Fprintf(w, "  %s\n", describeChange(ch))
		}
		for _, v := range c.Vetoes {
			fmt.Fprintf(w, "  veto %s\n", describeVeto(v))
		}
	}
}

func describeChange(ch ir.Change) string {
	switch ch.Kind {
	case ir.ChangeAdded:
		return fmt.Sprintf("added %s %s", ch.Identity, recordText(ch.After))
	case ir.ChangeUpdated:
		return fmt.Sprintf("updated %s %s -> %s", ch.Identity, recordText(ch.Before), recordText(ch.After))
	case ir.ChangeRemoved:
		return fmt.Sprintf("removed %s", ch.Identity)
	case ir.ChangeEvent:
		return "event " + eventText(ch.EventBefore, ch.EventAfter)
	}
	return string(ch.Kind)
}

func describeVeto(v ir.Veto) string {
	if v.Identity != "" {
		return fmt.Sprintf("%s %s %d -> %d", v.Field, v.Identity, v.Committed, v.Candidate)
	}
	return fmt.Sprintf("%s %d -> %d", v.Field, v.Committed, v.Candidate)
}

func recordText(r *ir.ParticipantRecord) string {
	if r == nil {
		return "-"
	}
	toPar := score.FormatToPar(r.ToPar)
	if toPar == "" {
		toPar = "-"
	}
	gross := r.Gross
	if gross == "" {
		gross = "-"
	}
	return toPar + " " + gross
}

// eventText lists only the event fields that differ.
func eventText(before, after *ir.EventState) string {
	var b, a ir.EventState
	if before != nil {
		b = *before
	}
	if after != nil {
		a = *after
	}
	var parts []string
	if !ir.EqualInt(b.Progress, a.Progress) {
		parts = append(parts, fmt.Sprintf("progress %s -> %s", intText(b.Progress), intText(a.Progress)))
	}
	if !ir.EqualInt(b.Par, a.Par) {
		parts = append(parts, fmt.Sprintf("par %s -> %s", intText(b.Par), intText(a.Par)))
	}
	if b.Label != a.Label {
		parts = append(parts, fmt.Sprintf("label %q -> %q", b.Label, a.Label))
	}
	return strings.Join(parts, ", ")
}

func intText(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}
