package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/ir"
	"github.com/roach88/steadyboard/internal/normalize"
)

// Scenario is a scripted sequence of polls with expectations.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the engine defaults.
	Config *EngineOverrides `yaml:"config,omitempty"`

	// Synonyms extends the header synonym table.
	Synonyms map[string][]string `yaml:"synonyms,omitempty"`

	// Initial is the committed state before the first poll, as after a
	// restart from the cycle log.
	Initial *InitialState `yaml:"initial,omitempty"`

	// Polls are consumed one per cycle.
	Polls []Poll `yaml:"polls"`

	// Assertions validate what was committed and rendered.
	Assertions []Assertion `yaml:"assertions"`
}

// EngineOverrides mirrors the stabilize, guard and rank config sections.
type EngineOverrides struct {
	ParticipantThreshold *int    `yaml:"participant_threshold,omitempty"`
	EventThreshold       *int    `yaml:"event_threshold,omitempty"`
	MonotonicProgress    *bool   `yaml:"monotonic_progress,omitempty"`
	MonotonicGross       *bool   `yaml:"monotonic_gross,omitempty"`
	MinPopulation        *int    `yaml:"min_population,omitempty"`
	NameSetStable        *bool   `yaml:"name_set_stable,omitempty"`
	RequireCoherence     *bool   `yaml:"require_coherence,omitempty"`
	Collation            *string `yaml:"collation,omitempty"`
}

// InitialState seeds the committed state.
type InitialState struct {
	Standings []StandingSpec `yaml:"standings"`
	Event     EventSpec      `yaml:"event"`
}

// StandingSpec is a participant row in a scenario. Rank and gross are
// only compared when set.
type StandingSpec struct {
	Identity string  `yaml:"identity"`
	ToPar    *int64  `yaml:"to_par"`
	Gross    *string `yaml:"gross,omitempty"`
	Rank     *int    `yaml:"rank,omitempty"`
}

// EventSpec is an event state in a scenario. Unset fields are ignored
// when comparing.
type EventSpec struct {
	Progress *int64  `yaml:"progress,omitempty"`
	Par      *int64  `yaml:"par,omitempty"`
	Label    *string `yaml:"label,omitempty"`
}

// Poll is one scripted source read.
type Poll struct {
	Participants ir.Table `yaml:"participants,omitempty"`
	Event        ir.Table `yaml:"event,omitempty"`
	Control      ir.Table `yaml:"control,omitempty"`
	Signature    string   `yaml:"signature,omitempty"`

	// Error injects a failed read instead: "transport" or "shape".
	Error string `yaml:"error,omitempty"`

	// Repeat runs this poll this many times (default 1).
	Repeat int `yaml:"repeat,omitempty"`

	// Expect checks the cycle outcome of every repetition.
	Expect *PollExpect `yaml:"expect,omitempty"`
}

// PollExpect is the expected cycle result for a poll.
type PollExpect struct {
	Outcome ir.Outcome `yaml:"outcome"`
	Reason  string     `yaml:"reason,omitempty"`
}

// Assertion validates the run as a whole.
type Assertion struct {
	Type string `yaml:"type"`

	// Standings is used by final_standings.
	Standings []StandingSpec `yaml:"standings,omitempty"`

	// Event is used by final_event.
	Event *EventSpec `yaml:"event,omitempty"`

	// Outcome is used by outcome_count.
	Outcome ir.Outcome `yaml:"outcome,omitempty"`

	// Field is used by veto_count.
	Field string `yaml:"field,omitempty"`

	// Count is used by outcome_count and veto_count.
	Count int `yaml:"count,omitempty"`

	// Identity is used by never_rendered.
	Identity string `yaml:"identity,omitempty"`

	// Values is used by rendered_progress; null means no progress shown.
	Values []*int64 `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalStandings   = "final_standings"
	AssertFinalEvent       = "final_event"
	AssertOutcomeCount     = "outcome_count"
	AssertVetoCount        = "veto_count"
	AssertNeverRendered    = "never_rendered"
	AssertRenderedProgress = "rendered_progress"
)

// Injected poll errors.
const (
	PollErrorTransport = "transport"
	PollErrorShape     = "shape"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if s.Description == "" {
		return errors.New("description is required")
	}
	if len(s.Polls) == 0 {
		return errors.New("polls list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return errors.New("assertions list is required and must be non-empty")
	}

	for field := range s.Synonyms {
		if !validField(field) {
			return fmt.Errorf("synonyms: unknown field %q", field)
		}
	}

	for i, p := range s.Polls {
		switch p.Error {
		case "":
			if len(p.Participants) == 0 {
				return fmt.Errorf("polls[%d]: participants or error is required", i)
			}
		case PollErrorTransport, PollErrorShape:
			if len(p.Participants) > 0 {
				return fmt.Errorf("polls[%d]: error and participants are mutually exclusive", i)
			}
		default:
			return fmt.Errorf("polls[%d]: unknown error %q", i, p.Error)
		}
		if p.Repeat < 0 {
			return fmt.Errorf("polls[%d]: repeat must be non-negative", i)
		}
		if p.Expect != nil && p.Expect.Outcome == "" {
			return fmt.Errorf("polls[%d].expect: outcome is required", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertFinalStandings:
		// An empty list asserts an empty board.
	case AssertFinalEvent:
		if a.Event == nil {
			return fmt.Errorf("assertions[%d]: event is required for final_event", index)
		}
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
	case AssertVetoCount:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for veto_count", index)
		}
	case AssertNeverRendered:
		if a.Identity == "" {
			return fmt.Errorf("assertions[%d]: identity is required for never_rendered", index)
		}
	case AssertRenderedProgress:
		if len(a.Values) == 0 {
			return fmt.Errorf("assertions[%d]: values is required for rendered_progress", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}

func validField(name string) bool {
	for _, f := range normalize.Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// engineConfig applies the overrides to the engine defaults.
func (o *EngineOverrides) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if o == nil {
		return cfg
	}
	set(&cfg.ParticipantThreshold, o.ParticipantThreshold)
	set(&cfg.EventThreshold, o.EventThreshold)
	set(&cfg.Monotonic.Progress, o.MonotonicProgress)
	set(&cfg.Monotonic.Gross, o.MonotonicGross)
	set(&cfg.Guard.MinPopulation, o.MinPopulation)
	set(&cfg.Guard.NameSetStable, o.NameSetStable)
	set(&cfg.Guard.RequireCoherence, o.RequireCoherence)
	set(&cfg.Collation, o.Collation)
	return cfg
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// state builds a ranked committed state from the seed.
func (s *InitialState) state(collation string) (ir.CommittedState, error) {
	ranker, err := engine.NewRanker(collation)
	if err != nil {
		return ir.CommittedState{}, err
	}
	records := make([]ir.ParticipantRecord, len(s.Standings))
	for i, st := range s.Standings {
		records[i] = ir.ParticipantRecord{Identity: st.Identity, ToPar: st.ToPar}
		if st.Gross != nil {
			records[i].Gross = *st.Gross
		}
	}
	state := ir.CommittedState{
		Standings: ranker.Rank(records),
		Event: ir.EventState{
			Progress: s.Event.Progress,
			Par:      s.Event.Par,
		},
	}
	if s.Event.Label != nil {
		state.Event.Label = *s.Event.Label
	}
	sig, err := ir.StateSignature(state)
	if err != nil {
		return ir.CommittedState{}, err
	}
	state.Signature = sig
	return state, nil
}
