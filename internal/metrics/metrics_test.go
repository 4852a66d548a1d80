package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/engine"
	"github.com/roach88/steadyboard/internal/ir"
)

var _ engine.Metrics = (*Metrics)(nil)

func TestCycleCompleted_Committed(t *testing.T) {
	m := New()
	m.CycleCompleted(ir.Cycle{
		Seq:          4,
		Outcome:      ir.OutcomeCommitted,
		Participants: 12,
		Pending:      2,
		Changes: []ir.Change{
			{Kind: ir.ChangeUpdated, Identity: "A"},
			{Kind: ir.ChangeUpdated, Identity: "B"},
			{Kind: ir.ChangeEvent},
		},
		Vetoes: []ir.Veto{{Field: "gross", Identity: "C", Committed: 72, Candidate: 70}},
	}, 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("committed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.changes.WithLabelValues("updated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.changes.WithLabelValues("event")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.vetoes.WithLabelValues("gross")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.committedSeq))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.participants))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pending))
}

func TestCycleCompleted_RejectedKeepsGauges(t *testing.T) {
	m := New()
	m.CycleCompleted(ir.Cycle{Seq: 1, Outcome: ir.OutcomeUnchanged, Participants: 10}, time.Millisecond)
	m.CycleCompleted(ir.Cycle{Seq: 2, Outcome: ir.OutcomeRejected, Reason: "min_population"}, time.Millisecond)
	m.CycleCompleted(ir.Cycle{Seq: 3, Outcome: ir.OutcomeFailed, Reason: "transport"}, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("min_population")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("transport")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.participants), "rejected candidates do not overwrite the gauge")
	assert.Equal(t, 3.0, testutil.ToFloat64(m.committedSeq))
}

func TestLoopCounters(t *testing.T) {
	m := New()
	m.TickSkipped()
	m.TickSkipped()
	m.ConfirmationChecked(true)
	m.ConfirmationChecked(false)
	m.ConfirmationChecked(false)
	m.RenderFailed("file")
	m.FetchRetried("csv", 1, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticksSkipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("agreed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.confirmations.WithLabelValues("disagreed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderFails.WithLabelValues("file")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetchRetries.WithLabelValues("csv")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.CycleCompleted(ir.Cycle{Seq: 1, Outcome: ir.OutcomeCommitted}, time.Millisecond)

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	m.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `steadyboard_cycles_total{outcome="committed"} 1`)
	assert.Contains(t, w.Body.String(), "steadyboard_cycle_duration_seconds_bucket")
}
