package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/steadyboard/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool           `json:"valid"`
	Errors  []string       `json:"errors,omitempty"`
	Summary *ConfigSummary `json:"summary,omitempty"`
}

// ConfigSummary is the resolved config as the validate command reports it.
// Secrets are never echoed.
type ConfigSummary struct {
	Source           string `json:"source"`
	Interval         string `json:"interval"`
	ConfirmDelay     string `json:"confirm_delay"`
	ParticipantThres int    `json:"participant_threshold"`
	EventThres       int    `json:"event_threshold"`
	MinPopulation    int    `json:"min_population"`
	Collation        string `json:"collation"`
	Store            string `json:"store"`
	BoardFile        string `json:"board_file,omitempty"`
	Listen           string `json:"listen,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a config file without polling",
		Long: `Load a config file through the schema, apply environment overrides,
and check the result for consistency. Nothing is fetched.

The file may be given as an argument or with --config.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				rootOpts.ConfigPath = args[0]
			}
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	if opts.ConfigPath != "" {
		f.VerboseLog("Validating %s", opts.ConfigPath)
	} else {
		f.VerboseLog("No config file given, validating defaults")
	}

	cfg, err := loadConfig(opts)
	if errors.Is(err, fs.ErrNotExist) {
		return f.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("config file not found: %s", opts.ConfigPath), err)
	}
	if err == nil {
		err = cfg.Validate()
	}

	if err != nil {
		result := ValidationResult{Valid: false, Errors: splitErrors(err)}
		if f.JSON() {
			if outErr := f.Error(ErrCodeConfig, "config invalid", result); outErr != nil {
				return outErr
			}
		} else {
			fmt.Fprintln(f.Writer, "Config invalid:")
			for _, e := range result.Errors {
				fmt.Fprintf(f.Writer, "  - %s\n", e)
			}
		}
		return WrapExitError(ExitFailure, "config invalid", err)
	}

	summary := summarize(cfg)
	if f.JSON() {
		return f.Success(ValidationResult{Valid: true, Summary: &summary})
	}

	w := f.Writer
	fmt.Fprintln(w, "Config OK")
	fmt.Fprintf(w, "  source:     %s\n", summary.Source)
	fmt.Fprintf(w, "  poll:       every %s, confirm after %s\n", summary.Interval, summary.ConfirmDelay)
	fmt.Fprintf(w, "  stabilize:  %d participant / %d event reads\n", summary.ParticipantThres, summary.EventThres)
	fmt.Fprintf(w, "  guard:      min population %d\n", summary.MinPopulation)
	fmt.Fprintf(w, "  collation:  %s\n", summary.Collation)
	fmt.Fprintf(w, "  store:      %s\n", summary.Store)
	if summary.BoardFile != "" {
		fmt.Fprintf(w, "  board file: %s\n", summary.BoardFile)
	}
	if summary.Listen != "" {
		fmt.Fprintf(w, "  listen:     %s\n", summary.Listen)
	}
	return nil
}

func summarize(cfg config.Config) ConfigSummary {
	return ConfigSummary{
		Source:           cfg.Source.Kind,
		Interval:         cfg.Poll.Interval.String(),
		ConfirmDelay:     cfg.Poll.ConfirmDelay.String(),
		ParticipantThres: cfg.Engine.ParticipantThreshold,
		EventThres:       cfg.Engine.EventThreshold,
		MinPopulation:    cfg.Engine.Guard.MinPopulation,
		Collation:        cfg.Engine.Collation,
		Store:            cfg.Store.Path,
		BoardFile:        cfg.Render.File,
		Listen:           cfg.Render.Listen,
	}
}

// splitErrors flattens errors.Join and "; "-joined schema messages.
func splitErrors(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		for _, part := range strings.Split(line, "; ") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
