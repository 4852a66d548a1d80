package harness

import (
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/steadyboard/internal/ir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Diff     string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "  Diff (-want +got):\n%s", e.Diff)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertFinalStandings:
		return assertFinalStandings(result.Final, a.Standings)
	case AssertFinalEvent:
		return assertFinalEvent(result.Final.Event, *a.Event)
	case AssertOutcomeCount:
		return assertOutcomeCount(result.Cycles, a.Outcome, a.Count)
	case AssertVetoCount:
		return assertVetoCount(result.Cycles, a.Field, a.Count)
	case AssertNeverRendered:
		return assertNeverRendered(result.Renders, a.Identity)
	case AssertRenderedProgress:
		return assertRenderedProgress(result.Renders, a.Values)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// standingView is the comparable projection of a standing. Gross and rank
// are blanked when the expectation leaves them unset.
type standingView struct {
	Identity string
	ToPar    string
	Gross    string
	Rank     string
}

func viewOf(st ir.Standing, want StandingSpec) standingView {
	v := standingView{Identity: st.Identity, ToPar: intString(st.ToPar)}
	if want.Gross != nil {
		v.Gross = st.Gross
	}
	if want.Rank != nil {
		v.Rank = fmt.Sprint(st.Rank)
	}
	return v
}

func expectedView(want StandingSpec) standingView {
	v := standingView{Identity: want.Identity, ToPar: intString(want.ToPar)}
	if want.Gross != nil {
		v.Gross = *want.Gross
	}
	if want.Rank != nil {
		v.Rank = fmt.Sprint(*want.Rank)
	}
	return v
}

// assertFinalStandings compares the committed standings in display order.
func assertFinalStandings(final ir.CommittedState, want []StandingSpec) error {
	wantViews := make([]standingView, len(want))
	gotViews := make([]standingView, len(final.Standings))
	for i, w := range want {
		wantViews[i] = expectedView(w)
	}
	for i, st := range final.Standings {
		spec := StandingSpec{}
		if i < len(want) {
			spec = want[i]
		}
		gotViews[i] = viewOf(st, spec)
	}

	if diff := cmp.Diff(wantViews, gotViews); diff != "" {
		return &AssertionError{
			Type:     AssertFinalStandings,
			Expected: fmt.Sprintf("%d standings", len(want)),
			Actual:   fmt.Sprintf("%d standings", len(final.Standings)),
			Diff:     diff,
		}
	}
	return nil
}

// assertFinalEvent compares only the fields the expectation sets.
func assertFinalEvent(got ir.EventState, want EventSpec) error {
	var mismatches []string
	if want.Progress != nil && !ir.EqualInt(got.Progress, want.Progress) {
		mismatches = append(mismatches, fmt.Sprintf("progress %s, want %d", intString(got.Progress), *want.Progress))
	}
	if want.Par != nil && !ir.EqualInt(got.Par, want.Par) {
		mismatches = append(mismatches, fmt.Sprintf("par %s, want %d", intString(got.Par), *want.Par))
	}
	if want.Label != nil && got.Label != *want.Label {
		mismatches = append(mismatches, fmt.Sprintf("label %q, want %q", got.Label, *want.Label))
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertFinalEvent,
			Expected: "matching event fields",
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func assertOutcomeCount(cycles []ir.Cycle, outcome ir.Outcome, want int) error {
	got := 0
	for _, c := range cycles {
		if c.Outcome == outcome {
			got++
		}
	}
	if got != want {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d %s cycles", want, outcome),
			Actual:   fmt.Sprintf("%d (outcomes: %s)", got, outcomes(cycles)),
		}
	}
	return nil
}

func assertVetoCount(cycles []ir.Cycle, field string, want int) error {
	got := 0
	for _, c := range cycles {
		for _, v := range c.Vetoes {
			if v.Field == field {
				got++
			}
		}
	}
	if got != want {
		return &AssertionError{
			Type:     AssertVetoCount,
			Expected: fmt.Sprintf("%d %s vetoes", want, field),
			Actual:   fmt.Sprint(got),
		}
	}
	return nil
}

func assertNeverRendered(renders []ir.CommittedState, identity string) error {
	for _, r := range renders {
		if _, ok := r.Lookup(identity); ok {
			return &AssertionError{
				Type:     AssertNeverRendered,
				Expected: fmt.Sprintf("%q never on the board", identity),
				Actual:   fmt.Sprintf("rendered in state seq %d", r.Seq),
			}
		}
	}
	return nil
}

func assertRenderedProgress(renders []ir.CommittedState, want []*int64) error {
	got := make([]string, len(renders))
	for i, r := range renders {
		got[i] = intString(r.Event.Progress)
	}
	wantStr := make([]string, len(want))
	for i, w := range want {
		wantStr[i] = intString(w)
	}

	if diff := cmp.Diff(wantStr, got); diff != "" {
		return &AssertionError{
			Type:     AssertRenderedProgress,
			Expected: "[" + strings.Join(wantStr, " ") + "]",
			Actual:   "[" + strings.Join(got, " ") + "]",
			Diff:     diff,
		}
	}
	return nil
}

func intString(v *int64) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(*v)
}

func outcomes(cycles []ir.Cycle) string {
	parts := make([]string, len(cycles))
	for i, c := range cycles {
		parts[i] = string(c.Outcome)
	}
	return strings.Join(parts, " ")
}
