package ir

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeysAndAllowsNull(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b": Int(-3),
		"a": nil,
		"c": []any{"x", true, 7},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":-3,"c":["x",true,7]}`, string(got))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	got, err := MarshalCanonical("<a&b> \"\\\n")
	require.NoError(t, err)
	assert.Equal(t, "\"<a&b> \\\"\\\\\\n\"", string(got))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	got, err := MarshalCanonical("é")
	require.NoError(t, err)
	assert.Equal(t, "\"é\"", string(got))
}

func TestMarshalCanonical_RejectsFloat(t *testing.T) {
	_, err := MarshalCanonical(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestCandidateSignature_Deterministic(t *testing.T) {
	c := Candidate{
		Participants: []ParticipantRecord{
			{Identity: "Kim", ToPar: Int(-2), Gross: "70"},
			{Identity: "Lee", ToPar: nil, Gross: ""},
		},
		Event: EventState{Progress: Int(7), Par: Int(4), Label: "Augusta"},
	}

	sig1, err := CandidateSignature(c)
	require.NoError(t, err)
	sig2, err := CandidateSignature(c)
	require.NoError(t, err)

	assert.Equal(t, sig1, sig2)
	assert.Len(t, sig1, 64, "SHA-256 hex is 64 characters")
}

func TestCandidateSignature_IgnoresRowOrder(t *testing.T) {
	a := Candidate{Participants: []ParticipantRecord{
		{Identity: "A", ToPar: Int(1)},
		{Identity: "B", ToPar: Int(-1)},
	}}
	b := Candidate{Participants: []ParticipantRecord{
		{Identity: "B", ToPar: Int(-1)},
		{Identity: "A", ToPar: Int(1)},
	}}

	assert.Equal(t, MustCandidateSignature(a), MustCandidateSignature(b))
}

func TestCandidateSignature_ChangesWithContent(t *testing.T) {
	base := Candidate{
		Participants: []ParticipantRecord{{Identity: "A", ToPar: Int(1), Gross: "73"}},
		Event:        EventState{Progress: Int(3)},
	}
	score := base
	score.Participants = []ParticipantRecord{{Identity: "A", ToPar: Int(0), Gross: "73"}}
	gross := base
	gross.Participants = []ParticipantRecord{{Identity: "A", ToPar: Int(1), Gross: "74"}}
	event := base
	event.Event = EventState{Progress: Int(4)}

	sig := MustCandidateSignature(base)
	assert.NotEqual(t, sig, MustCandidateSignature(score))
	assert.NotEqual(t, sig, MustCandidateSignature(gross))
	assert.NotEqual(t, sig, MustCandidateSignature(event))
}

func TestCandidateSignature_SourceProvidedWins(t *testing.T) {
	c := Candidate{Signature: "rev-42"}
	assert.Equal(t, "rev-42", MustCandidateSignature(c))
}

func TestCommittedState_CloneIsDeep(t *testing.T) {
	s := CommittedState{
		Seq:       1,
		Standings: []Standing{{ParticipantRecord: ParticipantRecord{Identity: "A", ToPar: Int(2)}, Rank: 1}},
		Event:     EventState{Progress: Int(5)},
	}
	c := s.Clone()
	*c.Standings[0].ToPar = 9
	*c.Event.Progress = 9
	c.Standings[0].Identity = "Z"

	assert.Equal(t, int64(2), *s.Standings[0].ToPar)
	assert.Equal(t, int64(5), *s.Event.Progress)
	assert.Equal(t, "A", s.Standings[0].Identity)
}

func TestCommittedState_Empty(t *testing.T) {
	assert.True(t, CommittedState{}.Empty())
	assert.False(t, CommittedState{Event: EventState{Label: "x"}}.Empty())
}

func TestEqualInt(t *testing.T) {
	assert.True(t, EqualInt(nil, nil))
	assert.True(t, EqualInt(Int(3), Int(3)))
	assert.False(t, EqualInt(Int(3), nil))
	assert.False(t, EqualInt(Int(3), Int(4)))
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
	}{
		{"transport", NewTransportError("csv", "GET failed", errors.New("eof")), ErrCodeTransport},
		{"shape", NewShapeError("csv", "no header"), ErrCodeShape},
		{"guard", NewGuardRejection("min_population", "too few"), ErrCodeGuardRejected},
		{"monotonic", NewMonotonicViolation("progress", 3, 2), ErrCodeMonotonicViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("cycle 7: %w", tt.err)
			assert.Equal(t, tt.code, CodeOf(wrapped))
		})
	}

	assert.True(t, IsTransportError(NewTransportError("x", "y", nil)))
	assert.True(t, IsGuardRejection(NewGuardRejection("r", "m")))
	assert.Equal(t, "progress", ReasonOf(NewMonotonicViolation("progress", 3, 2)))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
}

func TestError_Message(t *testing.T) {
	err := NewTransportError("sheets", "batch get failed", errors.New("503"))
	assert.Equal(t, "TRANSPORT: batch get failed (source=sheets): 503", err.Error())
	assert.ErrorContains(t, NewMonotonicViolation("progress", 3, 2), "progress would regress from 3 to 2")
}
