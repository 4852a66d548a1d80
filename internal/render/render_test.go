package render

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func standing(rank int, identity string, toPar *int64, gross string) ir.Standing {
	return ir.Standing{
		ParticipantRecord: ir.ParticipantRecord{Identity: identity, ToPar: toPar, Gross: gross},
		Rank:              rank,
	}
}

func sampleState() ir.CommittedState {
	return ir.CommittedState{
		Seq: 3,
		Standings: []ir.Standing{
			standing(1, "Kim", ir.Int(-2), "70"),
			standing(2, "이민호", ir.Int(0), "72"),
			standing(2, "Park", ir.Int(0), "72"),
			standing(3, "Yoon", ir.Int(12), "84"),
			standing(0, "Choi", nil, ""),
		},
		Event: ir.EventState{Progress: ir.Int(7), Par: ir.Int(4)},
	}
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestNewBoard(t *testing.T) {
	b := NewBoard(sampleState(), "Seoul CC")

	assert.Equal(t, int64(3), b.Seq)
	assert.Equal(t, "7", b.Hole)
	assert.Equal(t, "PAR 4", b.Par)
	assert.Equal(t, "Seoul CC", b.Label, "default label until the sheet supplies one")
	require.Len(t, b.Rows, 5)
	assert.Equal(t, Row{Rank: "1", Identity: "Kim", ToPar: "-2", Gross: "70"}, b.Rows[0])
	assert.Equal(t, "E", b.Rows[1].ToPar)
	assert.Equal(t, "+12", b.Rows[3].ToPar)
	assert.Equal(t, Row{Identity: "Choi"}, b.Rows[4], "unscored rows have no rank")
}

func TestNewBoard_SheetLabelWins(t *testing.T) {
	s := sampleState()
	s.Event.Label = "Augusta"
	assert.Equal(t, "Augusta", NewBoard(s, "Seoul CC").Label)
}

func TestBoard_HeaderSkipsMissingParts(t *testing.T) {
	b := NewBoard(ir.CommittedState{Event: ir.EventState{Par: ir.Int(3)}}, "")
	assert.Equal(t, []string{"PAR 3"}, b.Header())
	assert.Empty(t, NewBoard(ir.CommittedState{}, "").Header())
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, NewBoard(sampleState(), "Seoul CC")))
	golden(t).Assert(t, "board_text", buf.Bytes())
}

func TestWriteText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, NewBoard(ir.CommittedState{}, "")))
	assert.Equal(t, "#  NAME  SPT  GS\n", buf.String())
}

func TestDisplayWidth(t *testing.T) {
	assert.Equal(t, 3, displayWidth("Kim"))
	assert.Equal(t, 6, displayWidth("이민호"))
	assert.Equal(t, 4, displayWidth("ＡＢ"))
	assert.Equal(t, 0, displayWidth(""))
}

func TestTextSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewTextSink(&buf, "")

	require.NoError(t, sink.Render(context.Background(), sampleState()))
	assert.Equal(t, "text", sink.Name())
	assert.True(t, strings.HasPrefix(buf.String(), "7  PAR 4\n"))
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.json")
	sink := NewFileSink(path, "Seoul CC")

	require.NoError(t, sink.Render(context.Background(), sampleState()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Board
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, NewBoard(sampleState(), "Seoul CC"), got)

	// Re-render replaces the file.
	next := sampleState()
	next.Seq = 4
	require.NoError(t, sink.Render(context.Background(), next))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, int64(4), got.Seq)
}

func TestFileSink_MissingDirectory(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "missing", "board.json"), "")
	assert.Error(t, sink.Render(context.Background(), sampleState()))
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(w, req)
	return w
}

func TestServer_BoardBeforeFirstRender(t *testing.T) {
	s := NewServer("Seoul CC")

	w := get(t, s.Handler(), "/board")
	assert.Equal(t, http.StatusOK, w.Code)

	var b Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, "Seoul CC", b.Label)
	assert.Empty(t, b.Rows)

	var health map[string]any
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/healthz").Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["rendered"])
}

func TestServer_ServesLatestRender(t *testing.T) {
	s := NewServer("")
	require.NoError(t, s.Render(context.Background(), sampleState()))

	w := get(t, s.Handler(), "/board")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	var b Board
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	assert.Equal(t, NewBoard(sampleState(), ""), b)

	txt := get(t, s.Handler(), "/board.txt")
	assert.Equal(t, http.StatusOK, txt.Code)
	assert.Contains(t, txt.Body.String(), "이민호")

	var health map[string]any
	require.NoError(t, json.Unmarshal(get(t, s.Handler(), "/healthz").Body.Bytes(), &health))
	assert.Equal(t, true, health["rendered"])
	assert.Equal(t, float64(3), health["seq"])
}

func TestServer_MetricsRoute(t *testing.T) {
	without := NewServer("")
	assert.Equal(t, http.StatusNotFound, get(t, without.Handler(), "/metrics").Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("steadyboard_cycles_total 1\n"))
	})
	with := NewServer("", WithMetricsHandler(metrics))
	w := get(t, with.Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "steadyboard_cycles_total")
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := NewServer("")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, "127.0.0.1:0") }()

	cancel()
	assert.NoError(t, <-done)
}
