package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
)

func TestParseSnapshotJSON(t *testing.T) {
	doc := `{
		"participants": [
			{"name": "Kim", "spt": -2, "gross": "70"},
			{"name": "Lee", "spt": "E", "gross": null, "extra": {"nested": true}}
		],
		"event": {"hole": 7, "par": 4, "course": "Pebble"},
		"control": {"hole": 7},
		"signature": "rev-9"
	}`

	raw, err := ParseSnapshotJSON([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, ir.Table{
		{"extra", "gross", "name", "spt"},
		{"", "70", "Kim", "-2"},
		{"", "", "Lee", "E"},
	}, raw.Participants)
	assert.Equal(t, ir.Table{{"course", "hole", "par"}, {"Pebble", "7", "4"}}, raw.Event)
	assert.Equal(t, ir.Table{{"hole"}, {"7"}}, raw.Control)
	assert.Equal(t, "rev-9", raw.Signature)
}

func TestParseSnapshotJSON_KeepsNumberText(t *testing.T) {
	raw, err := ParseSnapshotJSON([]byte(`{"participants":[{"name":"A","spt":1.5,"gross":72}]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"72", "A", "1.5"}, raw.Participants[1])
	assert.Nil(t, raw.Event, "no event object means merged layout")
}

func TestParseSnapshotJSON_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		shape bool
	}{
		{"not json", `<html>`, true},
		{"no participants", `{"event":{}}`, true},
		{"participants not an array", `{"participants":{"name":"A"}}`, true},
		{"empty participants", `{"participants":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseSnapshotJSON([]byte(tt.doc))
			if tt.shape {
				assert.True(t, ir.IsShapeError(err))
				return
			}
			require.NoError(t, err)
			assert.Empty(t, raw.Participants)
		})
	}
}

func TestJSONSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("t"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"participants":[{"name":"Kim","spt":"-1"}]}`))
	}))
	defer srv.Close()

	src, err := NewJSONSource(JSONConfig{URL: srv.URL + "/board.json"}, fastRetry(), time.Second)
	require.NoError(t, err)

	raw, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "json", raw.Source)
	assert.Equal(t, ir.Table{{"name", "spt"}, {"Kim", "-1"}}, raw.Participants)
}
