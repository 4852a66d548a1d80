package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/steadyboard/internal/ir"
)

func TestNormalize_SeparateTables(t *testing.T) {
	n := New(nil)
	raw := ir.RawSnapshot{
		Source: "csv",
		Participants: ir.Table{
			{"name", "SPT", "GS"},
			{" Kim ", "-2", "70"},
			{"Lee", "E", "72"},
			{"", "+1", "73"},
			{"Park", "abc"},
		},
		Event: ir.Table{
			{"current_hole", "current_par", "golf_course"},
			{"7", "4", " Augusta National "},
		},
	}

	cand, err := n.Normalize(raw)
	require.NoError(t, err)

	require.Len(t, cand.Participants, 3, "row without identity is dropped")
	assert.Equal(t, ir.ParticipantRecord{Identity: "Kim", ToPar: ir.Int(-2), Gross: "70"}, cand.Participants[0])
	assert.Equal(t, ir.ParticipantRecord{Identity: "Lee", ToPar: ir.Int(0), Gross: "72"}, cand.Participants[1])
	assert.Equal(t, ir.ParticipantRecord{Identity: "Park", ToPar: nil, Gross: ""}, cand.Participants[2])

	assert.Equal(t, ir.EventState{Progress: ir.Int(7), Par: ir.Int(4), Label: "Augusta National"}, cand.Event)
	assert.Nil(t, cand.Control)
	assert.Equal(t, "csv", cand.Source)
}

func TestNormalize_SynonymPriority(t *testing.T) {
	// "name" outranks "player" even though "player" comes first in the header.
	raw := ir.RawSnapshot{Participants: ir.Table{
		{"Player", "Name", "to_par"},
		{"ignored", "Choi", "+4"},
	}}

	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.Len(t, cand.Participants, 1)
	assert.Equal(t, "Choi", cand.Participants[0].Identity)
	assert.Equal(t, ir.Int(4), cand.Participants[0].ToPar)
}

func TestNormalize_KoreanHeaders(t *testing.T) {
	raw := ir.RawSnapshot{
		Participants: ir.Table{
			{"\uFEFF이름", "스코어", "합계"},
			{"김철수", "−3", "69"},
		},
		Event: ir.Table{
			{"홀", "파", "골프장"},
			{"12", "3", "골프장 이름"},
		},
	}

	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.Len(t, cand.Participants, 1)
	assert.Equal(t, ir.ParticipantRecord{Identity: "김철수", ToPar: ir.Int(-3), Gross: "69"}, cand.Participants[0])
	assert.Equal(t, ir.Int(12), cand.Event.Progress)
	assert.Equal(t, "골프장 이름", cand.Event.Label)
}

func TestNormalize_DuplicateIdentityLastWriteWins(t *testing.T) {
	raw := ir.RawSnapshot{Participants: ir.Table{
		{"name", "spt"},
		{"A", "+1"},
		{"B", "-1"},
		{"A", "+2"},
	}}

	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.Len(t, cand.Participants, 2)
	assert.Equal(t, "A", cand.Participants[0].Identity)
	assert.Equal(t, ir.Int(2), cand.Participants[0].ToPar)
}

func TestNormalize_MissingIdentityColumnIsShapeError(t *testing.T) {
	raw := ir.RawSnapshot{Source: "csv", Participants: ir.Table{{"foo", "bar"}, {"1", "2"}}}

	_, err := New(nil).Normalize(raw)
	require.Error(t, err)
	assert.True(t, ir.IsShapeError(err))
}

func TestNormalize_EmptyTableIsEmptyCandidate(t *testing.T) {
	cand, err := New(nil).Normalize(ir.RawSnapshot{})
	require.NoError(t, err)
	assert.Empty(t, cand.Participants)
}

func TestNormalize_HeaderOnlyEventTable(t *testing.T) {
	raw := ir.RawSnapshot{
		Participants: ir.Table{{"name"}, {"A"}},
		Event:        ir.Table{{"hole", "par"}},
	}
	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	assert.True(t, cand.Event.IsZero())
}

func TestNormalize_EmptyEventTableIsNotMerged(t *testing.T) {
	raw := ir.RawSnapshot{
		Participants: ir.Table{{"name", "hole"}, {"A", "7"}, {"B", "7"}},
		Event:        ir.Table{},
	}
	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	assert.True(t, cand.Event.IsZero(), "event fields come only from the event table")
}

func TestNormalize_EventTableWithoutEventColumns(t *testing.T) {
	raw := ir.RawSnapshot{
		Participants: ir.Table{{"name"}, {"A"}},
		Event:        ir.Table{{"unrelated"}, {"x"}},
	}
	_, err := New(nil).Normalize(raw)
	assert.True(t, ir.IsShapeError(err))
}

func TestNormalize_ControlTable(t *testing.T) {
	raw := ir.RawSnapshot{
		Participants: ir.Table{{"name"}, {"A"}},
		Event:        ir.Table{{"hole"}, {"5"}},
		Control:      ir.Table{{"hole"}, {"5"}},
	}
	cand, err := New(nil).Normalize(raw)
	require.NoError(t, err)
	require.NotNil(t, cand.Control)
	assert.Equal(t, ir.Int(5), cand.Control.Progress)
}

func TestNormalize_MergedTableMajorityVote(t *testing.T) {
	tests := []struct {
		name  string
		rows  ir.Table
		event ir.EventState
	}{
		{
			name: "clear majority",
			rows: ir.Table{
				{"name", "spt", "hole", "par", "course"},
				{"A", "1", "5", "4", "Pebble"},
				{"B", "2", "5", "4", "Pebble"},
				{"C", "3", "4", "3", "Old Course"},
			},
			event: ir.EventState{Progress: ir.Int(5), Par: ir.Int(4), Label: "Pebble"},
		},
		{
			name: "progress tie breaks toward larger",
			rows: ir.Table{
				{"name", "hole", "course"},
				{"A", "5", "Old Course"},
				{"B", "6", "Pebble"},
			},
			event: ir.EventState{Progress: ir.Int(6), Label: "Old Course"},
		},
		{
			name: "empty cells do not vote",
			rows: ir.Table{
				{"name", "hole", "course"},
				{"A", "", ""},
				{"B", "3", ""},
				{"C", "", "Pebble"},
			},
			event: ir.EventState{Progress: ir.Int(3), Label: "Pebble"},
		},
		{
			name:  "no event columns",
			rows:  ir.Table{{"name"}, {"A"}},
			event: ir.EventState{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, err := New(nil).Normalize(ir.RawSnapshot{Participants: tt.rows})
			require.NoError(t, err)
			assert.Equal(t, tt.event, cand.Event)
		})
	}
}

func TestSynonyms_Merge(t *testing.T) {
	syn := DefaultSynonyms().Merge(map[string][]string{"identity": {"golfer"}})

	cand, err := New(syn).Normalize(ir.RawSnapshot{Participants: ir.Table{{"Golfer"}, {"Han"}}})
	require.NoError(t, err)
	require.Len(t, cand.Participants, 1)
	assert.Equal(t, "Han", cand.Participants[0].Identity)

	// Merge must not alias the defaults.
	assert.NotContains(t, DefaultSynonyms()[FieldIdentity], "golfer")
}
